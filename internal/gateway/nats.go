package gateway

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/nats-io/nats.go"
)

// HeaderPrefix prefixes the metadata headers on NATS messages.
const HeaderPrefix = "Glance-"

// NATSTransport feeds NATS messages into a [Gateway] and publishes rebroadcasts.
type NATSTransport struct {
	conn           *nats.Conn
	gateway        *Gateway
	updateSubject  string
	forwardSubject string
	logger         *log.Logger
	subs           []*nats.Subscription
}

// NewNATSTransport creates a transport over an open connection.
func NewNATSTransport(conn *nats.Conn, g *Gateway, c shared.NATSConfig, logger *log.Logger) *NATSTransport {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &NATSTransport{
		conn:           conn,
		gateway:        g,
		updateSubject:  c.UpdateSubject,
		forwardSubject: c.ForwardSubject,
		logger:         shared.WithLogger(logger, "component", "nats"),
	}
}

// Subscribe listens on the update and forward subjects.
func (t *NATSTransport) Subscribe(ctx context.Context) error {
	for _, subject := range []string{t.updateSubject, t.forwardSubject} {
		sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) { t.handle(ctx, m) })
		if err != nil {
			t.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		t.subs = append(t.subs, sub)
		t.logger.Info("subscribed", "subject", subject)
	}
	return nil
}

func (t *NATSTransport) handle(ctx context.Context, m *nats.Msg) {
	get := func(key string) string { return "" }
	if m.Header != nil {
		get = m.Header.Get
	}

	meta, err := MetaFromHeader(get, HeaderPrefix)
	if err != nil {
		t.logger.Warn("dropping message with bad metadata", "subject", m.Subject, "error", err)
		return
	}
	t.gateway.HandleIncoming(ctx, m.Data, meta)
}

// Forward publishes payload on the forward subject, tagged as forwarded for userID.
func (t *NATSTransport) Forward(ctx context.Context, payload []byte, userID int) error {
	msg := nats.NewMsg(t.forwardSubject)
	msg.Data = payload
	for k, v := range (Meta{UserID: userID, Forwarded: true}).Headers(HeaderPrefix) {
		msg.Header.Set(k, v)
	}
	if err := t.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

// Publish sends an Update payload on the update subject. It is what `glance push --via nats` uses.
func (t *NATSTransport) Publish(payload []byte, meta Meta) error {
	msg := nats.NewMsg(t.updateSubject)
	msg.Data = payload
	for k, v := range meta.Headers(HeaderPrefix) {
		msg.Header.Set(k, v)
	}
	if err := t.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return t.conn.Flush()
}

// Close drops every subscription. The connection belongs to the caller.
func (t *NATSTransport) Close() {
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Debug("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	t.subs = nil
}
