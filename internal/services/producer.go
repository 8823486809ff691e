package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/nats-io/nats.go"
)

// Connect opens a NATS connection for the given config. name identifies the client to the server.
func Connect(c shared.NATSConfig, name string) (*nats.Conn, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: nats url not configured", shared.ErrServiceUnavailable)
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}

	conn, err := nats.Connect(c.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return conn, nil
}

// NATSProducer sends producer signals as empty NATS messages.
type NATSProducer struct {
	conn           *nats.Conn
	enableSubject  string
	expiredSubject string
	userID         int
}

// NewNATSProducer creates a producer publishing on the enable and expired subjects of c.
func NewNATSProducer(conn *nats.Conn, c shared.NATSConfig, userID int) *NATSProducer {
	return &NATSProducer{
		conn:           conn,
		enableSubject:  c.EnableSubject,
		expiredSubject: c.ExpiredSubject,
		userID:         userID,
	}
}

func (p *NATSProducer) EnableUpdates(ctx context.Context) error {
	return p.publish(ctx, p.enableSubject)
}

func (p *NATSProducer) Expired(ctx context.Context) error {
	return p.publish(ctx, p.expiredSubject)
}

func (p *NATSProducer) publish(ctx context.Context, subject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set("Glance-User", fmt.Sprint(p.userID))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: publish %s: %v", shared.ErrServiceUnavailable, subject, err)
	}
	return nil
}

// LogProducer records producer signals in the log and never fails.
type LogProducer struct {
	logger *log.Logger
}

// NewLogProducer creates a [LogProducer].
func NewLogProducer(logger *log.Logger) *LogProducer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LogProducer{logger: shared.WithLogger(logger, "component", "producer")}
}

func (p *LogProducer) EnableUpdates(ctx context.Context) error {
	p.logger.Info("producer signal", "signal", "enable")
	return nil
}

func (p *LogProducer) Expired(ctx context.Context) error {
	p.logger.Info("producer signal", "signal", "expired")
	return nil
}
