package codec

import (
	"time"

	"github.com/desertthunder/glance/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	cardPriority      protowire.Number = 1
	cardDiscard       protowire.Number = 2
	cardID            protowire.Number = 3
	cardPreEvent      protowire.Number = 4
	cardDuringEvent   protowire.Number = 5
	cardPostEvent     protowire.Number = 6
	cardEventTime     protowire.Number = 7
	cardEventDuration protowire.Number = 8
	cardExpiry        protowire.Number = 9
	cardTapAction     protowire.Number = 10
	cardType          protowire.Number = 11
	cardIcon          protowire.Number = 12
	cardIconGray      protowire.Number = 13

	expiryTime protowire.Number = 1

	actionType   protowire.Number = 1
	actionTarget protowire.Number = 2

	messageTitle    protowire.Number = 1
	messageSubtitle protowire.Number = 2

	textText   protowire.Number = 1
	textParams protowire.Number = 2

	paramText protowire.Number = 1
	paramArgs protowire.Number = 2
)

// EncodeCard serializes c. Slot and PublishTime are not part of the card message.
func EncodeCard(c *models.Card) []byte {
	var b []byte
	b = appendInt(b, cardPriority, int64(c.Priority))
	b = appendBool(b, cardDiscard, c.Discard)
	b = appendInt(b, cardID, c.ID)
	if c.PreEvent != nil {
		b = appendMessage(b, cardPreEvent, encodeMessage(c.PreEvent))
	}
	if c.DuringEvent != nil {
		b = appendMessage(b, cardDuringEvent, encodeMessage(c.DuringEvent))
	}
	if c.PostEvent != nil {
		b = appendMessage(b, cardPostEvent, encodeMessage(c.PostEvent))
	}
	b = appendInt(b, cardEventTime, timeToMillis(c.EventTime))
	b = appendInt(b, cardEventDuration, c.EventDuration.Milliseconds())
	if !c.ExpiresAt.IsZero() {
		b = appendMessage(b, cardExpiry, appendInt(nil, expiryTime, timeToMillis(c.ExpiresAt)))
	}
	if c.Action != nil {
		var a []byte
		a = appendInt(a, actionType, int64(c.Action.Kind))
		a = appendString(a, actionTarget, c.Action.Target)
		b = appendMessage(b, cardTapAction, a)
	}
	b = appendInt(b, cardType, int64(c.CardType))
	b = appendBytes(b, cardIcon, c.Icon)
	b = appendBool(b, cardIconGray, c.IconGrayscale)
	return b
}

// DecodeCard parses a card message. The returned card's Slot is derived from its priority.
func DecodeCard(b []byte) (*models.Card, error) {
	c := &models.Card{}
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case cardPriority:
			var v int64
			v, err = f.int64()
			c.Priority = int(v)
		case cardDiscard:
			c.Discard, err = f.bool()
		case cardID:
			c.ID, err = f.int64()
		case cardPreEvent:
			c.PreEvent, err = decodeMessageField(f)
		case cardDuringEvent:
			c.DuringEvent, err = decodeMessageField(f)
		case cardPostEvent:
			c.PostEvent, err = decodeMessageField(f)
		case cardEventTime:
			var v int64
			v, err = f.int64()
			c.EventTime = millisToTime(v)
		case cardEventDuration:
			var v int64
			v, err = f.int64()
			c.EventDuration = time.Duration(v) * time.Millisecond
		case cardExpiry:
			c.ExpiresAt, err = decodeExpiry(f)
		case cardTapAction:
			c.Action, err = decodeAction(f)
		case cardType:
			var v int64
			v, err = f.int64()
			c.CardType = int(v)
		case cardIcon:
			var v []byte
			v, err = f.bytes()
			c.Icon = append([]byte(nil), v...)
		case cardIconGray:
			c.IconGrayscale, err = f.bool()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	c.Slot, _ = models.SlotForPriority(c.Priority)
	return c, nil
}

func decodeExpiry(f field) (time.Time, error) {
	b, err := f.bytes()
	if err != nil {
		return time.Time{}, err
	}
	var at time.Time
	err = walk(b, func(f field) error {
		if f.num != expiryTime {
			return nil
		}
		v, err := f.int64()
		at = millisToTime(v)
		return err
	})
	return at, err
}

func decodeAction(f field) (*models.Action, error) {
	b, err := f.bytes()
	if err != nil {
		return nil, err
	}
	a := &models.Action{}
	err = walk(b, func(f field) error {
		var err error
		switch f.num {
		case actionType:
			var v int64
			v, err = f.int64()
			a.Kind = models.ActionKind(v)
		case actionTarget:
			a.Target, err = f.string()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func encodeMessage(m *models.Message) []byte {
	var b []byte
	b = appendMessage(b, messageTitle, encodeText(m.Title))
	b = appendMessage(b, messageSubtitle, encodeText(m.Subtitle))
	return b
}

func decodeMessageField(f field) (*models.Message, error) {
	b, err := f.bytes()
	if err != nil {
		return nil, err
	}
	m := &models.Message{}
	err = walk(b, func(f field) error {
		var err error
		switch f.num {
		case messageTitle:
			m.Title, err = decodeTextField(f)
		case messageSubtitle:
			m.Subtitle, err = decodeTextField(f)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func encodeText(t models.FormattedText) []byte {
	var b []byte
	b = appendString(b, textText, t.Text)
	for _, p := range t.Params {
		var pb []byte
		pb = appendString(pb, paramText, p.Text)
		pb = appendInt(pb, paramArgs, int64(p.Args))
		b = appendMessage(b, textParams, pb)
	}
	return b
}

func decodeTextField(f field) (models.FormattedText, error) {
	var t models.FormattedText
	b, err := f.bytes()
	if err != nil {
		return t, err
	}
	err = walk(b, func(f field) error {
		switch f.num {
		case textText:
			var err error
			t.Text, err = f.string()
			return err
		case textParams:
			p, err := decodeParamField(f)
			if err != nil {
				return err
			}
			t.Params = append(t.Params, p)
		}
		return nil
	})
	return t, err
}

func decodeParamField(f field) (models.FormatParam, error) {
	var p models.FormatParam
	b, err := f.bytes()
	if err != nil {
		return p, err
	}
	err = walk(b, func(f field) error {
		var err error
		switch f.num {
		case paramText:
			p.Text, err = f.string()
		case paramArgs:
			var v int64
			v, err = f.int64()
			p.Args = int(v)
		}
		return err
	})
	return p, err
}
