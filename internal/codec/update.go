package codec

import (
	"time"

	"github.com/desertthunder/glance/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	updateCards protowire.Number = 1

	wrapperCard        protowire.Number = 1
	wrapperPublishTime protowire.Number = 2
	wrapperIcon        protowire.Number = 3
	wrapperIconGray    protowire.Number = 4
)

// Entry is one card from an Update payload, classified fields pulled out and the raw bytes kept for persistence.
type Entry struct {
	Priority  int
	Discard   bool
	Raw       []byte
	Icon      []byte
	Grayscale bool
}

// DecodeUpdate splits an Update payload into its card entries, in payload order.
//
// Every entry is fully decoded so that a single malformed card rejects the whole payload.
func DecodeUpdate(b []byte) ([]Entry, error) {
	var entries []Entry
	err := walk(b, func(f field) error {
		if f.num != updateCards {
			return nil
		}
		raw, err := f.bytes()
		if err != nil {
			return err
		}
		c, err := DecodeCard(raw)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Priority:  c.Priority,
			Discard:   c.Discard,
			Raw:       append([]byte(nil), raw...),
			Icon:      c.Icon,
			Grayscale: c.IconGrayscale,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// EncodeUpdate builds an Update payload from cards.
func EncodeUpdate(cards ...*models.Card) []byte {
	var b []byte
	for _, c := range cards {
		b = appendMessage(b, updateCards, EncodeCard(c))
	}
	return b
}

// Wrapper is the persisted form of a card.
type Wrapper struct {
	Card        []byte
	PublishTime time.Time
	Icon        []byte
	Grayscale   bool
}

// NewWrapper wraps an entry's raw card bytes with the time it was received.
func NewWrapper(e Entry, publishTime time.Time) Wrapper {
	return Wrapper{Card: e.Raw, PublishTime: publishTime, Icon: e.Icon, Grayscale: e.Grayscale}
}

// EncodeWrapper serializes w.
func EncodeWrapper(w Wrapper) []byte {
	var b []byte
	b = appendMessage(b, wrapperCard, w.Card)
	b = appendInt(b, wrapperPublishTime, timeToMillis(w.PublishTime))
	b = appendBytes(b, wrapperIcon, w.Icon)
	b = appendBool(b, wrapperIconGray, w.Grayscale)
	return b
}

// DecodeWrapper parses a persisted wrapper.
func DecodeWrapper(b []byte) (Wrapper, error) {
	var w Wrapper
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case wrapperCard:
			var v []byte
			v, err = f.bytes()
			w.Card = append([]byte(nil), v...)
		case wrapperPublishTime:
			var v int64
			v, err = f.int64()
			w.PublishTime = millisToTime(v)
		case wrapperIcon:
			var v []byte
			v, err = f.bytes()
			w.Icon = append([]byte(nil), v...)
		case wrapperIconGray:
			w.Grayscale, err = f.bool()
		}
		return err
	})
	return w, err
}

// CardFromWrapper decodes a persisted wrapper into a [models.Card] for slot.
//
// The wrapper's publish time and icon take precedence over the values inside the card.
func CardFromWrapper(b []byte, slot models.Slot) (*models.Card, error) {
	w, err := DecodeWrapper(b)
	if err != nil {
		return nil, err
	}
	c, err := DecodeCard(w.Card)
	if err != nil {
		return nil, err
	}
	c.Slot = slot
	c.PublishTime = w.PublishTime
	if len(w.Icon) > 0 {
		c.Icon = w.Icon
		c.IconGrayscale = w.Grayscale
	}
	return c, nil
}
