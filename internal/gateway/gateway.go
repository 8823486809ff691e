package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/metrics"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/jonboulle/clockwork"
)

// NoUser marks a [Meta] that carries no user id.
const NoUser = -1

// Header names, without transport prefix.
const (
	HeaderUser      = "User"
	HeaderForwarded = "Forwarded"
)

// Meta is the delivery metadata that travels next to a payload.
type Meta struct {
	UserID    int
	Forwarded bool
}

// MetaFromHeader reads "<prefix>User" and "<prefix>Forwarded" through get.
//
// A missing user yields [NoUser]. A malformed value is an [shared.ErrInvalidArgument].
func MetaFromHeader(get func(string) string, prefix string) (Meta, error) {
	meta := Meta{UserID: NoUser}

	if v := strings.TrimSpace(get(prefix + HeaderUser)); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 {
			return meta, fmt.Errorf("%w: user %q", shared.ErrInvalidArgument, v)
		}
		meta.UserID = id
	}

	if v := strings.TrimSpace(get(prefix + HeaderForwarded)); v != "" {
		forwarded, err := strconv.ParseBool(v)
		if err != nil {
			return meta, fmt.Errorf("%w: forwarded %q", shared.ErrInvalidArgument, v)
		}
		meta.Forwarded = forwarded
	}
	return meta, nil
}

// Headers returns the header pairs that encode m under prefix.
func (m Meta) Headers(prefix string) map[string]string {
	h := map[string]string{prefix + HeaderForwarded: strconv.FormatBool(m.Forwarded)}
	if m.UserID != NoUser {
		h[prefix+HeaderUser] = strconv.Itoa(m.UserID)
	}
	return h
}

// Forwarder rebroadcasts a payload to every instance, marked as forwarded.
type Forwarder interface {
	Forward(ctx context.Context, payload []byte, userID int) error
}

// Ingester accepts classified updates. [controller.Controller] implements it.
type Ingester interface {
	Ingest(u models.PendingUpdate) bool
}

// Options configures a [Gateway].
type Options struct {
	InstanceUserID int
	Forwarder      Forwarder
	Ingester       Ingester
	Clock          clockwork.Clock
	Metrics        metrics.Recorder
	Logger         *log.Logger
}

// Gateway turns raw producer payloads into pending updates.
type Gateway struct {
	instanceUserID int
	forwarder      Forwarder
	ingester       Ingester
	clock          clockwork.Clock
	metrics        metrics.Recorder
	logger         *log.Logger
}

// New creates a [Gateway]. Forwarder may be nil when no transport can rebroadcast.
func New(opts Options) *Gateway {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Gateway{
		instanceUserID: opts.InstanceUserID,
		forwarder:      opts.Forwarder,
		ingester:       opts.Ingester,
		clock:          opts.Clock,
		metrics:        opts.Metrics,
		logger:         shared.WithLogger(opts.Logger, "component", "gateway"),
	}
}

// SetForwarder replaces the forwarder. Transports that also forward are built after the gateway.
func (g *Gateway) SetForwarder(f Forwarder) {
	g.forwarder = f
}

// IsPrimaryInstance reports whether this gateway decodes payloads itself.
func (g *Gateway) IsPrimaryInstance() bool {
	return g.instanceUserID == 0
}

// HandleIncoming processes one payload and returns how many cards were handed to the ingester.
//
// Malformed payloads are logged and dropped.
func (g *Gateway) HandleIncoming(ctx context.Context, payload []byte, meta Meta) int {
	if !g.IsPrimaryInstance() {
		if !meta.Forwarded {
			g.forward(ctx, payload)
		}
		return 0
	}

	user := meta.UserID
	if user == NoUser {
		user = g.instanceUserID
	}

	entries, err := codec.DecodeUpdate(payload)
	if err != nil {
		g.logger.Warn("dropping malformed update", "bytes", len(payload), "error", err)
		g.metrics.IncDecodeFailure()
		return 0
	}

	now := g.clock.Now()
	accepted := 0
	for _, e := range entries {
		slot, ok := models.SlotForPriority(e.Priority)
		if !ok {
			g.logger.Warn("unrecognized card priority", "priority", e.Priority)
		}

		u := models.PendingUpdate{
			Slot:        slot,
			Payload:     codec.EncodeWrapper(codec.NewWrapper(e, now)),
			Discard:     e.Discard,
			UserID:      user,
			PublishTime: now,
		}
		if g.ingester.Ingest(u) {
			accepted++
		}
	}

	g.logger.Debug("update handled", "cards", len(entries), "accepted", accepted, "user", user)
	return accepted
}

func (g *Gateway) forward(ctx context.Context, payload []byte) {
	if g.forwarder == nil {
		g.logger.Warn("cannot rebroadcast update", "error", shared.ErrForwardingDisabled)
		return
	}
	if err := g.forwarder.Forward(ctx, payload, g.instanceUserID); err != nil {
		g.logger.Error("failed to rebroadcast update", "user", g.instanceUserID, "error", err)
		return
	}
	g.logger.Debug("update rebroadcast", "user", g.instanceUserID)
}
