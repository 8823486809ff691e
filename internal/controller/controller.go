package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/alarm"
	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/metrics"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/repositories"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/jonboulle/clockwork"
)

// PrimaryUserID is the user id of the instance that talks to the producer.
const PrimaryUserID = 0

// Producer receives the one-way signals a primary instance sends upstream.
type Producer interface {
	EnableUpdates(ctx context.Context) error
	Expired(ctx context.Context) error
}

// Options configures a [Controller].
type Options struct {
	InstanceUserID int
	Store          *repositories.CardStore
	Producer       Producer
	Alarm          alarm.Alarm
	Clock          clockwork.Clock
	Metrics        metrics.Recorder
	Logger         *log.Logger
	Disabled       bool
	HidePrivate    bool
}

// Controller is the card state manager.
type Controller struct {
	instanceUserID int
	store          *repositories.CardStore
	producer       Producer
	alarm          alarm.Alarm
	clock          clockwork.Clock
	metrics        metrics.Recorder
	logger         *log.Logger
	disabled       bool

	currentUser atomic.Int32
	hidePrivate atomic.Bool
	enableSent  atomic.Bool
	started     atomic.Bool

	ctx        context.Context
	main       *Looper
	background *Looper

	// main loop only
	state       models.State
	subscribers []Subscriber
}

// New builds a [Controller]. Store and Producer are required; the rest have defaults.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Alarm == nil {
		opts.Alarm = alarm.NewClockAlarm(opts.Clock)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	c := &Controller{
		instanceUserID: opts.InstanceUserID,
		store:          opts.Store,
		producer:       opts.Producer,
		alarm:          opts.Alarm,
		clock:          opts.Clock,
		metrics:        opts.Metrics,
		logger:         shared.WithLogger(opts.Logger, "component", "controller"),
		disabled:       opts.Disabled,
		ctx:            context.Background(),
	}
	c.main = NewLooper("main", c.logger)
	c.background = NewLooper("background", c.logger)
	c.currentUser.Store(int32(opts.InstanceUserID))
	c.hidePrivate.Store(opts.HidePrivate)
	return c
}

// Start runs both loops. When the feature is enabled it also reloads persisted state and tells the producer this
// instance is ready.
func (c *Controller) Start(ctx context.Context) {
	c.ctx = ctx
	c.started.Store(true)
	c.main.Start(ctx)
	c.background.Start(ctx)

	if c.disabled {
		c.logger.Info("card controller disabled by feature constants")
		return
	}
	c.ReloadData()
	c.OnProducerAvailabilityChanged()
}

// Stop cancels the alarm and drains both loops.
func (c *Controller) Stop() {
	c.background.Stop()
	if c.started.Load() {
		c.main.Call(func() { c.alarm.Cancel() })
	}
	c.main.Stop()
}

// Flush waits until everything posted so far, including the hand-offs it triggers, has run.
func (c *Controller) Flush() {
	c.background.Flush()
	c.main.Flush()
	c.background.Flush()
	c.main.Flush()
}

// Enabled reports whether the feature flag activated the controller.
func (c *Controller) Enabled() bool { return !c.disabled }

// CurrentUser returns the user whose cards are shown.
func (c *Controller) CurrentUser() int { return int(c.currentUser.Load()) }

// PrivacyMode reports whether persistence of card content is suppressed.
func (c *Controller) PrivacyMode() bool { return c.hidePrivate.Load() }

// IsPrimaryInstance reports whether this instance runs as the primary user.
func (c *Controller) IsPrimaryInstance() bool { return c.instanceUserID == PrimaryUserID }

// Ingest accepts a classified update. It persists on the background loop and applies on the main loop.
//
// Updates for a user other than the current one are dropped and reported as false.
func (c *Controller) Ingest(u models.PendingUpdate) bool {
	if c.disabled {
		c.metrics.IncUpdateRejected(metrics.ReasonDisabled)
		return false
	}
	if !c.acceptsUser(u.UserID) {
		c.reject(u)
		return false
	}

	ok := c.background.Post(func() {
		if !c.acceptsUser(u.UserID) {
			c.reject(u)
			return
		}
		c.persist(u)
		c.metrics.IncUpdateIngested(u.Slot.String())
		c.main.Post(func() { c.apply(u) })
	})
	if !ok {
		c.metrics.IncUpdateRejected(metrics.ReasonStopped)
	}
	return ok
}

func (c *Controller) acceptsUser(id int) bool {
	return int32(id) == c.currentUser.Load()
}

func (c *Controller) reject(u models.PendingUpdate) {
	c.logger.Debug("dropping update for other user", "user", u.UserID, "current", c.CurrentUser(), "slot", u.Slot)
	c.metrics.IncUpdateRejected(metrics.ReasonForeignUser)
}

// persist runs on the background loop. Blobs are keyed by the update's own user, which the caller has
// already matched against the current user.
func (c *Controller) persist(u models.PendingUpdate) {
	if c.hidePrivate.Load() {
		return
	}
	user := u.UserID
	if u.Discard {
		if err := c.store.Tombstone(user, u.Slot); err != nil {
			c.logger.Error("failed to tombstone slot", "slot", u.Slot, "error", err)
			c.metrics.IncStoreError(metrics.OpTombstone)
		}
		return
	}
	if err := c.store.Put(user, u.Slot, u.Payload); err != nil {
		c.logger.Error("failed to persist card", "slot", u.Slot, "error", err)
		c.metrics.IncStoreError(metrics.OpPut)
	}
}

// apply runs on the main loop.
func (c *Controller) apply(u models.PendingUpdate) {
	if !c.acceptsUser(u.UserID) {
		c.reject(u)
		return
	}

	var card *models.Card
	if !u.Discard {
		var err error
		card, err = codec.CardFromWrapper(u.Payload, u.Slot)
		if err != nil {
			c.logger.Warn("dropping undecodable card", "slot", u.Slot, "error", err)
			c.metrics.IncDecodeFailure()
			return
		}
	}

	c.state.Set(u.Slot, card)
	c.state.HandleExpire(c.clock.Now())
	c.refreshAndNotify()
}

// refreshAndNotify runs on the main loop.
func (c *Controller) refreshAndNotify() {
	c.alarm.Cancel()
	next, ok := c.state.NextExpiry()
	if ok {
		if err := c.alarm.Set(next, c.alarmFired); err != nil {
			c.logger.Error("failed to arm expiry alarm", "at", next, "error", err)
		}
		c.metrics.SetNextExpiry(next)
	} else {
		c.metrics.SetNextExpiry(time.Time{})
	}

	state := c.state
	for _, s := range slices.Clone(c.subscribers) {
		s.OnStateUpdated(state)
	}
	c.metrics.IncNotification()
}

func (c *Controller) alarmFired() {
	c.main.Post(func() { c.onExpire(false) })
}

// onExpire runs on the main loop.
func (c *Controller) onExpire(force bool) {
	cleared := c.state.HandleExpire(c.clock.Now())
	if cleared {
		c.metrics.IncExpiration()
	}
	if !cleared && !force {
		return
	}
	c.refreshAndNotify()
	if c.IsPrimaryInstance() {
		c.signal("expired", c.producer.Expired)
	}
}

// signal sends a producer signal from the background loop.
func (c *Controller) signal(name string, send func(context.Context) error) bool {
	return c.background.Post(func() {
		if err := send(c.ctx); err != nil {
			c.logger.Warn("producer signal failed", "signal", name, "error", err)
			return
		}
		if name == "enable" {
			c.enableSent.Store(true)
		}
	})
}

// ReloadData replaces both slots with the persisted cards of the current user. It does nothing while disabled.
func (c *Controller) ReloadData() {
	if c.disabled {
		return
	}
	c.background.Post(func() {
		user := c.CurrentUser()
		primary := c.load(user, models.SlotPrimary)
		secondary := c.load(user, models.SlotSecondary)

		c.main.Post(func() {
			if !c.acceptsUser(user) {
				return
			}
			c.state.Primary = primary
			c.state.Secondary = secondary
			c.state.HandleExpire(c.clock.Now())
			c.refreshAndNotify()
		})
	})
}

// load runs on the background loop. Any failure leaves the slot empty.
func (c *Controller) load(user int, slot models.Slot) *models.Card {
	data, err := c.store.Get(user, slot)
	if errors.Is(err, shared.ErrBlobNotFound) {
		return nil
	}
	if err != nil {
		c.logger.Warn("failed to load card", "user", user, "slot", slot, "error", err)
		c.metrics.IncStoreError(metrics.OpLoad)
		return nil
	}
	card, err := codec.CardFromWrapper(data, slot)
	if err != nil {
		c.logger.Warn("failed to decode stored card", "user", user, "slot", slot, "error", err)
		c.metrics.IncDecodeFailure()
		return nil
	}
	return card
}

// OnUserSwitch makes id the current user, empties state and forces a notification.
//
// Persisted blobs are left alone. Updates in flight for the previous user are dropped. While disabled only the
// user id is recorded.
func (c *Controller) OnUserSwitch(id int) {
	c.currentUser.Store(int32(id))
	if c.disabled {
		return
	}
	c.main.Post(func() {
		c.state.Clear()
		c.onExpire(true)
	})
}

// SetPrivacyMode toggles persistence of card content. Enabling it tombstones both slots of the current user.
// In-memory cards are kept.
func (c *Controller) SetPrivacyMode(enabled bool) {
	c.hidePrivate.Store(enabled)
	if enabled {
		c.background.Post(func() {
			user := c.CurrentUser()
			for _, slot := range []models.Slot{models.SlotPrimary, models.SlotSecondary} {
				if err := c.store.Tombstone(user, slot); err != nil {
					c.logger.Error("failed to tombstone slot", "slot", slot, "error", err)
					c.metrics.IncStoreError(metrics.OpTombstone)
				}
			}
		})
	}
	c.main.Post(func() {
		for _, s := range slices.Clone(c.subscribers) {
			if p, ok := s.(PrivacyAware); ok {
				p.OnPrivacyModeChanged(enabled)
			}
		}
	})
}

// OnProducerAvailabilityChanged tells the producer this instance wants updates and notifies subscribers.
func (c *Controller) OnProducerAvailabilityChanged() {
	if c.IsPrimaryInstance() {
		c.signal("enable", c.producer.EnableUpdates)
	}
	c.main.Post(func() {
		for _, s := range slices.Clone(c.subscribers) {
			if p, ok := s.(ProducerAware); ok {
				p.OnProducerAvailabilityChanged()
			}
		}
	})
}

// OnTimeChanged re-arms the alarm after a wall-clock change while the primary card is still live.
func (c *Controller) OnTimeChanged() {
	if c.disabled {
		return
	}
	c.main.Post(func() {
		if c.state.Primary.ExpirationRemaining(c.clock.Now()) > 0 {
			c.refreshAndNotify()
		}
	})
}

// Refresh re-arms the alarm and notifies subscribers with the current state.
func (c *Controller) Refresh() {
	c.main.Post(c.refreshAndNotify)
}

// AddSubscriber registers s and sends it the current state.
func (c *Controller) AddSubscriber(s Subscriber) {
	c.main.Post(func() {
		c.subscribers = append(c.subscribers, s)
		s.OnStateUpdated(c.state)
	})
}

// RemoveSubscriber unregisters s.
func (c *Controller) RemoveSubscriber(s Subscriber) {
	c.main.Post(func() {
		c.subscribers = slices.DeleteFunc(c.subscribers, func(x Subscriber) bool { return x == s })
	})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.State {
	var state models.State
	c.main.Call(func() { state = c.state })
	return state
}

// Dump writes a text summary of the controller.
func (c *Controller) Dump(w io.Writer) error {
	state := c.Snapshot()
	now := c.clock.Now()
	_, err := fmt.Fprintf(w, "CardController\n  broadcast: %t\n  weather: %s\n  current: %s\n  disabled: %t\n",
		c.enableSent.Load(),
		formatter.Summary(state.Secondary, now),
		formatter.Summary(state.Primary, now),
		c.disabled,
	)
	return err
}
