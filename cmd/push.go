package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/services"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/urfave/cli/v3"
)

// CardFlags is the flag set `push` turns into a card.
type CardFlags struct {
	ID            int64
	Title         string
	Subtitle      string
	Priority      int
	CardType      int
	ExpiresIn     time.Duration
	Discard       bool
	EventIn       time.Duration
	EventDuration time.Duration
	ActionType    string
	ActionTarget  string
}

// BuildCard turns f into a card relative to now. The same message is used for every event phase.
func BuildCard(f CardFlags, now time.Time) (*models.Card, error) {
	if f.ExpiresIn < 0 {
		return nil, fmt.Errorf("%w: --expires-in must not be negative", shared.ErrInvalidFlag)
	}

	c := &models.Card{
		ID:            f.ID,
		Priority:      f.Priority,
		CardType:      f.CardType,
		Discard:       f.Discard,
		EventDuration: f.EventDuration,
		PublishTime:   now,
	}
	if f.EventIn != 0 || f.EventDuration != 0 {
		c.EventTime = now.Add(f.EventIn)
	}
	if f.ExpiresIn > 0 {
		c.ExpiresAt = now.Add(f.ExpiresIn)
	}

	if f.Title != "" || f.Subtitle != "" {
		msg := &models.Message{
			Title:    models.FormattedText{Text: f.Title},
			Subtitle: models.FormattedText{Text: f.Subtitle},
		}
		c.PreEvent, c.DuringEvent, c.PostEvent = msg, msg, msg
	}

	kind, err := parseActionKind(f.ActionType)
	if err != nil {
		return nil, err
	}
	if kind != models.ActionNone {
		c.Action = &models.Action{Kind: kind, Target: f.ActionTarget}
	}
	return c, nil
}

func parseActionKind(s string) (models.ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return models.ActionNone, nil
	case "broadcast":
		return models.ActionBroadcast, nil
	case "activity":
		return models.ActionActivity, nil
	default:
		return models.ActionNone, fmt.Errorf("%w: unknown action type %q", shared.ErrInvalidFlag, s)
	}
}

// Push encodes a card from flags and delivers it over HTTP or NATS.
func (r *Runner) Push(ctx context.Context, cmd *cli.Command) error {
	card, err := BuildCard(CardFlags{
		ID:            cmd.Int64("id"),
		Title:         cmd.String("title"),
		Subtitle:      cmd.String("subtitle"),
		Priority:      cmd.Int("priority"),
		CardType:      cmd.Int("card-type"),
		ExpiresIn:     cmd.Duration("expires-in"),
		Discard:       cmd.Bool("discard"),
		EventIn:       cmd.Duration("event-in"),
		EventDuration: cmd.Duration("event-duration"),
		ActionType:    cmd.String("action-type"),
		ActionTarget:  cmd.String("action-target"),
	}, time.Now())
	if err != nil {
		return err
	}

	payload := codec.EncodeUpdate(card)
	meta := gateway.Meta{UserID: cmd.Int("user"), Forwarded: cmd.Bool("forwarded")}

	switch via := cmd.String("via"); via {
	case "http":
		res, err := r.api.Push(ctx, payload, meta)
		if err != nil {
			return err
		}
		r.logger.Debug("pushed update", "bytes", len(payload), "accepted", res.Accepted)
		return r.writePlain("accepted %d\n", res.Accepted)
	case "nats":
		conn, err := services.Connect(r.config.NATS, "glance-push")
		if err != nil {
			return err
		}
		defer conn.Close()

		transport := gateway.NewNATSTransport(conn, nil, r.config.NATS, r.logger)
		if err := transport.Publish(payload, meta); err != nil {
			return err
		}
		return r.writePlain("published %d bytes to %s\n", len(payload), r.config.NATS.UpdateSubject)
	default:
		return fmt.Errorf("%w: --via must be http or nats, got %q", shared.ErrInvalidFlag, via)
	}
}
