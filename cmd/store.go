package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/repositories"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/urfave/cli/v3"
)

// SlotRecord describes what the store holds for one slot.
type SlotRecord struct {
	Key       string              `json:"key"`
	Slot      string              `json:"slot"`
	Status    string              `json:"status"`
	Card      *formatter.CardView `json:"card,omitempty"`
	Error     string              `json:"error,omitempty"`
	Expired   bool                `json:"expired,omitempty"`
	Published int64               `json:"published_at_ms,omitempty"`
}

// Slot record statuses.
const (
	StatusEmpty     = "empty"
	StatusTombstone = "tombstone"
	StatusCard      = "card"
	StatusCorrupt   = "corrupt"
)

// InspectSlots decodes both persisted slots for userID.
func InspectSlots(store *repositories.CardStore, userID int, now time.Time) ([]SlotRecord, error) {
	records := make([]SlotRecord, 0, 2)
	for _, slot := range []models.Slot{models.SlotPrimary, models.SlotSecondary} {
		rec := SlotRecord{Key: store.Key(userID, slot), Slot: slot.String()}

		tomb, err := store.IsTombstone(userID, slot)
		if err != nil {
			return nil, err
		}

		data, err := store.Get(userID, slot)
		switch {
		case tomb:
			rec.Status = StatusTombstone
		case errors.Is(err, shared.ErrBlobNotFound):
			rec.Status = StatusEmpty
		case err != nil:
			return nil, err
		default:
			card, err := codec.CardFromWrapper(data, slot)
			if err != nil {
				rec.Status = StatusCorrupt
				rec.Error = err.Error()
				break
			}
			rec.Status = StatusCard
			rec.Card = formatter.NewCardView(card, now)
			rec.Expired = card.Expired(now)
			rec.Published = card.PublishTime.UnixMilli()
		}
		records = append(records, rec)
	}
	return records, nil
}

// StoreInspect prints the persisted slots for --user.
func (r *Runner) StoreInspect(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Int("user")
	if userID < 0 {
		return fmt.Errorf("%w: --user must not be negative", shared.ErrInvalidFlag)
	}

	backend, err := repositories.OpenBackend(r.config)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := repositories.NewCardStore(backend, r.config.Instance.Namespace)
	records, err := InspectSlots(store, userID, time.Now())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	keys, err := backend.Keys(store.Prefix(userID))
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("User %d (%s store, %d keys)", userID, r.config.Store.Driver, len(keys)))
	for _, rec := range records {
		switch rec.Status {
		case StatusCard:
			suffix := ""
			if rec.Expired {
				suffix = " (expired)"
			}
			r.writePlain("%s: %s%s\n", rec.Slot, rec.Card.Title, suffix)
			if rec.Card.Subtitle != "" {
				r.writePlain("  subtitle: %s\n", rec.Card.Subtitle)
			}
			r.writePlain("  key: %s\n  expires_at_ms: %d\n  published_at_ms: %d\n", rec.Key, rec.Card.ExpiresAt, rec.Published)
		case StatusCorrupt:
			r.writePlain("%s: corrupt (%s)\n  key: %s\n", rec.Slot, rec.Error, rec.Key)
		default:
			r.writePlain("%s: %s\n  key: %s\n", rec.Slot, rec.Status, rec.Key)
		}
	}
	return nil
}
