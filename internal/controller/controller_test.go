package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/repositories"
	"github.com/desertthunder/glance/internal/shared"
	th "github.com/desertthunder/glance/internal/testing"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type harness struct {
	ctrl     *Controller
	clock    *clockwork.FakeClock
	alarm    *th.ManualAlarm
	producer *th.MockProducer
	sub      *th.RecordingSubscriber
	blobs    *repositories.MemoryStore
	store    *repositories.CardStore
}

type harnessOpts struct {
	instanceUser int
	disabled     bool
	hidePrivate  bool
	blobs        *repositories.MemoryStore
	clock        *clockwork.FakeClock
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	if o.blobs == nil {
		o.blobs = repositories.NewMemoryStore()
	}
	if o.clock == nil {
		o.clock = clockwork.NewFakeClockAt(epoch)
	}

	h := &harness{
		clock:    o.clock,
		alarm:    &th.ManualAlarm{},
		producer: &th.MockProducer{},
		sub:      &th.RecordingSubscriber{},
		blobs:    o.blobs,
		store:    repositories.NewCardStore(o.blobs, "glance"),
	}
	h.ctrl = New(Options{
		InstanceUserID: o.instanceUser,
		Store:          h.store,
		Producer:       h.producer,
		Alarm:          h.alarm,
		Clock:          h.clock,
		Logger:         shared.NewLogger(&bytes.Buffer{}),
		Disabled:       o.disabled,
		HidePrivate:    o.hidePrivate,
	})

	h.ctrl.AddSubscriber(h.sub)
	h.ctrl.Start(context.Background())
	h.ctrl.Flush()
	t.Cleanup(h.ctrl.Stop)
	return h
}

func card(priority int, title string, expiresAt time.Time) *models.Card {
	return &models.Card{
		ID:          1,
		Priority:    priority,
		DuringEvent: &models.Message{Title: models.FormattedText{Text: title}},
		EventTime:   epoch,
		ExpiresAt:   expiresAt,
	}
}

// pending classifies a card the way the gateway does.
func (h *harness) pending(t *testing.T, c *models.Card, user int) models.PendingUpdate {
	t.Helper()
	entries, err := codec.DecodeUpdate(codec.EncodeUpdate(c))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	slot, _ := models.SlotForPriority(e.Priority)
	now := h.clock.Now()
	return models.PendingUpdate{
		Slot:        slot,
		Payload:     codec.EncodeWrapper(codec.NewWrapper(e, now)),
		Discard:     e.Discard,
		UserID:      user,
		PublishTime: now,
	}
}

func (h *harness) ingest(t *testing.T, c *models.Card, user int) bool {
	t.Helper()
	ok := h.ctrl.Ingest(h.pending(t, c, user))
	h.ctrl.Flush()
	return ok
}

func title(c *models.Card) string {
	if c == nil || c.DuringEvent == nil {
		return ""
	}
	return c.DuringEvent.Title.Text
}

func TestControllerStart(t *testing.T) {
	t.Run("primary instance enables updates", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})

		assert.Equal(t, 1, h.producer.EnableCalls())
		assert.Equal(t, 1, h.sub.ProducerChanges())
		assert.True(t, h.ctrl.Enabled())
		assert.True(t, h.ctrl.IsPrimaryInstance())

		last, ok := h.sub.Last()
		require.True(t, ok)
		assert.True(t, last.Empty())
	})

	t.Run("secondary instance stays quiet", func(t *testing.T) {
		h := newHarness(t, harnessOpts{instanceUser: 10})

		assert.Equal(t, 0, h.producer.EnableCalls())
		assert.Equal(t, 1, h.sub.ProducerChanges())
		assert.Equal(t, 10, h.ctrl.CurrentUser())
	})

	t.Run("disabled controller rejects everything", func(t *testing.T) {
		h := newHarness(t, harnessOpts{disabled: true})

		assert.False(t, h.ctrl.Enabled())
		assert.Equal(t, 0, h.producer.EnableCalls())
		assert.False(t, h.ingest(t, card(models.PriorityPrimary, "x", time.Time{}), 0))
		assert.Nil(t, h.ctrl.Snapshot().Primary)
	})

	t.Run("disabled controller ignores lifecycle calls", func(t *testing.T) {
		h := newHarness(t, harnessOpts{disabled: true})
		stored := h.pending(t, card(models.PriorityPrimary, "persisted", time.Time{}), 0)
		require.NoError(t, h.store.Put(0, models.SlotPrimary, stored.Payload))
		notified := len(h.sub.States())

		h.ctrl.ReloadData()
		h.ctrl.OnTimeChanged()
		h.ctrl.OnUserSwitch(10)
		h.ctrl.Flush()

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		assert.Len(t, h.sub.States(), notified)
		assert.Zero(t, h.producer.ExpiredCalls())
		assert.Equal(t, 10, h.ctrl.CurrentUser())
	})
}

func TestControllerIngest(t *testing.T) {
	t.Run("slots are independent", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})

		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))
		require.True(t, h.ingest(t, card(models.PrioritySecondary, "sunny", time.Time{}), 0))

		state := h.ctrl.Snapshot()
		assert.Equal(t, "meeting", title(state.Primary))
		assert.Equal(t, "sunny", title(state.Secondary))
		assert.Equal(t, models.SlotSecondary, state.Secondary.Slot)
		assert.True(t, epoch.Equal(state.Primary.PublishTime))

		require.True(t, h.ingest(t, card(models.PriorityPrimary, "lunch", time.Time{}), 0))
		state = h.ctrl.Snapshot()
		assert.Equal(t, "lunch", title(state.Primary))
		assert.Equal(t, "sunny", title(state.Secondary))
	})

	t.Run("updates are persisted under the current user", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

		data, err := h.store.Get(0, models.SlotPrimary)
		require.NoError(t, err)
		stored, err := codec.CardFromWrapper(data, models.SlotPrimary)
		require.NoError(t, err)
		assert.Equal(t, "meeting", title(stored))

		_, err = h.store.Get(0, models.SlotSecondary)
		assert.ErrorIs(t, err, shared.ErrBlobNotFound)
	})

	t.Run("foreign user is rejected without side effects", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		notified := len(h.sub.States())

		assert.False(t, h.ingest(t, card(models.PriorityPrimary, "intruder", time.Time{}), 10))

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		assert.Len(t, h.sub.States(), notified)
		keys, err := h.blobs.Keys("glance_")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("discard clears slot and writes tombstone", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

		discard := &models.Card{Priority: models.PriorityPrimary, Discard: true}
		require.True(t, h.ingest(t, discard, 0))

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		tomb, err := h.store.IsTombstone(0, models.SlotPrimary)
		require.NoError(t, err)
		assert.True(t, tomb)

		reloaded := newHarness(t, harnessOpts{blobs: h.blobs})
		assert.Nil(t, reloaded.ctrl.Snapshot().Primary)
	})

	t.Run("card already expired on arrival is dropped", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "stale", epoch.Add(-time.Second)), 0))

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		_, armed := h.alarm.Deadline()
		assert.False(t, armed)
	})

	t.Run("undecodable payload is dropped", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		notified := len(h.sub.States())

		h.ctrl.Ingest(models.PendingUpdate{Slot: models.SlotPrimary, Payload: []byte{0xff, 0xff}, UserID: 0})
		h.ctrl.Flush()

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		assert.Len(t, h.sub.States(), notified)
	})
}

func TestControllerExpiry(t *testing.T) {
	t.Run("primary card expires at its deadline", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		deadline := epoch.Add(1000 * time.Millisecond)
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", deadline), 0))

		at, armed := h.alarm.Deadline()
		require.True(t, armed)
		assert.True(t, deadline.Equal(at))

		h.clock.Advance(1001 * time.Millisecond)
		require.True(t, h.alarm.Fire())
		h.ctrl.Flush()

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		assert.Equal(t, 1, h.producer.ExpiredCalls())
		last, ok := h.sub.Last()
		require.True(t, ok)
		assert.Nil(t, last.Primary)
	})

	t.Run("early alarm leaves state alone", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", epoch.Add(time.Minute)), 0))
		notified := len(h.sub.States())

		require.True(t, h.alarm.Fire())
		h.ctrl.Flush()

		assert.NotNil(t, h.ctrl.Snapshot().Primary)
		assert.Equal(t, 0, h.producer.ExpiredCalls())
		assert.Len(t, h.sub.States(), notified)
	})

	t.Run("alarm tracks the earliest deadline", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "later", epoch.Add(10*time.Minute)), 0))
		require.True(t, h.ingest(t, card(models.PrioritySecondary, "sooner", epoch.Add(2*time.Minute)), 0))

		at, armed := h.alarm.Deadline()
		require.True(t, armed)
		assert.True(t, epoch.Add(2*time.Minute).Equal(at))

		h.clock.Advance(2 * time.Minute)
		require.True(t, h.alarm.Fire())
		h.ctrl.Flush()

		state := h.ctrl.Snapshot()
		assert.Nil(t, state.Secondary)
		assert.Equal(t, "later", title(state.Primary))

		at, armed = h.alarm.Deadline()
		require.True(t, armed)
		assert.True(t, epoch.Add(10*time.Minute).Equal(at))
	})

	t.Run("secondary instance does not signal expiry", func(t *testing.T) {
		h := newHarness(t, harnessOpts{instanceUser: 10})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "x", epoch.Add(time.Second)), 10))

		h.clock.Advance(time.Second)
		require.True(t, h.alarm.Fire())
		h.ctrl.Flush()

		assert.Nil(t, h.ctrl.Snapshot().Primary)
		assert.Equal(t, 0, h.producer.ExpiredCalls())
	})

	t.Run("time change re-arms while primary is live", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "x", epoch.Add(time.Hour)), 0))
		sets := h.alarm.Sets()

		h.ctrl.OnTimeChanged()
		h.ctrl.Flush()
		assert.Equal(t, sets+1, h.alarm.Sets())
	})

	t.Run("time change without live primary is ignored", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		notified := len(h.sub.States())

		h.ctrl.OnTimeChanged()
		h.ctrl.Flush()
		assert.Len(t, h.sub.States(), notified)
	})
}

func TestControllerReload(t *testing.T) {
	t.Run("fresh controller restores persisted cards", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", epoch.Add(time.Hour)), 0))
		require.True(t, h.ingest(t, card(models.PrioritySecondary, "sunny", time.Time{}), 0))

		restored := newHarness(t, harnessOpts{blobs: h.blobs})
		state := restored.ctrl.Snapshot()
		assert.Equal(t, "meeting", title(state.Primary))
		assert.Equal(t, "sunny", title(state.Secondary))

		at, armed := restored.alarm.Deadline()
		require.True(t, armed)
		assert.True(t, epoch.Add(time.Hour).Equal(at))
	})

	t.Run("expired persisted cards are not restored", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", epoch.Add(time.Minute)), 0))

		later := clockwork.NewFakeClockAt(epoch.Add(time.Hour))
		restored := newHarness(t, harnessOpts{blobs: h.blobs, clock: later})
		assert.Nil(t, restored.ctrl.Snapshot().Primary)
	})

	t.Run("corrupt blob leaves slot empty", func(t *testing.T) {
		blobs := repositories.NewMemoryStore()
		store := repositories.NewCardStore(blobs, "glance")
		require.NoError(t, store.Put(0, models.SlotPrimary, []byte{0x0a, 0x05, 0x01}))

		h := newHarness(t, harnessOpts{blobs: blobs})
		assert.Nil(t, h.ctrl.Snapshot().Primary)
	})

	t.Run("store failures are survivable", func(t *testing.T) {
		ctrl := New(Options{
			Store:    repositories.NewCardStore(th.FailingBlobStore{}, "glance"),
			Producer: &th.MockProducer{},
			Alarm:    &th.ManualAlarm{},
			Clock:    clockwork.NewFakeClockAt(epoch),
			Logger:   shared.NewLogger(&bytes.Buffer{}),
		})
		ctrl.Start(context.Background())
		defer ctrl.Stop()

		h := &harness{ctrl: ctrl, clock: clockwork.NewFakeClockAt(epoch)}
		assert.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))
		assert.Equal(t, "meeting", title(ctrl.Snapshot().Primary))
	})
}

func TestControllerPrivacy(t *testing.T) {
	t.Run("enabling privacy tombstones and stops persisting", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

		h.ctrl.SetPrivacyMode(true)
		h.ctrl.Flush()

		assert.True(t, h.ctrl.PrivacyMode())
		assert.Equal(t, []bool{true}, h.sub.PrivacyChanges())
		assert.Equal(t, "meeting", title(h.ctrl.Snapshot().Primary))

		for _, slot := range []models.Slot{models.SlotPrimary, models.SlotSecondary} {
			tomb, err := h.store.IsTombstone(0, slot)
			require.NoError(t, err)
			assert.True(t, tomb, slot.String())
		}

		require.True(t, h.ingest(t, card(models.PrioritySecondary, "sunny", time.Time{}), 0))
		assert.Equal(t, "sunny", title(h.ctrl.Snapshot().Secondary))
		_, err := h.store.Get(0, models.SlotSecondary)
		assert.ErrorIs(t, err, shared.ErrBlobNotFound)
	})

	t.Run("disabling privacy resumes persistence", func(t *testing.T) {
		h := newHarness(t, harnessOpts{hidePrivate: true})

		h.ctrl.SetPrivacyMode(false)
		h.ctrl.Flush()
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

		_, err := h.store.Get(0, models.SlotPrimary)
		assert.NoError(t, err)
		assert.Equal(t, []bool{false}, h.sub.PrivacyChanges())
	})
}

func TestControllerUserSwitch(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	require.True(t, h.ingest(t, card(models.PriorityPrimary, "owner", time.Time{}), 0))
	notified := len(h.sub.States())

	h.ctrl.OnUserSwitch(10)
	h.ctrl.Flush()

	assert.Equal(t, 10, h.ctrl.CurrentUser())
	assert.True(t, h.ctrl.Snapshot().Empty())
	assert.Len(t, h.sub.States(), notified+1)
	assert.Equal(t, 1, h.producer.ExpiredCalls())

	_, err := h.store.Get(0, models.SlotPrimary)
	assert.NoError(t, err, "previous user's blob is kept")

	assert.False(t, h.ingest(t, card(models.PriorityPrimary, "stale", time.Time{}), 0))
	assert.True(t, h.ctrl.Snapshot().Empty())

	require.True(t, h.ingest(t, card(models.PriorityPrimary, "guest", time.Time{}), 10))
	assert.Equal(t, "guest", title(h.ctrl.Snapshot().Primary))
	_, err = h.store.Get(10, models.SlotPrimary)
	assert.NoError(t, err)
}

// gatedBlobs blocks the first Store call until released.
type gatedBlobs struct {
	*repositories.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBlobs) Store(key string, data []byte) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.MemoryStore.Store(key, data)
}

func TestControllerUserSwitchDuringPersist(t *testing.T) {
	blobs := &gatedBlobs{
		MemoryStore: repositories.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	store := repositories.NewCardStore(blobs, "glance")
	h := &harness{clock: clockwork.NewFakeClockAt(epoch)}
	ctrl := New(Options{
		Store:    store,
		Producer: &th.MockProducer{},
		Alarm:    &th.ManualAlarm{},
		Clock:    h.clock,
		Logger:   shared.NewLogger(&bytes.Buffer{}),
	})
	ctrl.Start(context.Background())
	t.Cleanup(ctrl.Stop)
	ctrl.Flush()

	require.True(t, ctrl.Ingest(h.pending(t, card(models.PriorityPrimary, "owner", time.Time{}), 0)))
	require.True(t, ctrl.Ingest(h.pending(t, card(models.PrioritySecondary, "queued", time.Time{}), 0)))

	select {
	case <-blobs.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("store was never written")
	}
	ctrl.OnUserSwitch(10)
	close(blobs.release)
	ctrl.Flush()

	for _, slot := range []models.Slot{models.SlotPrimary, models.SlotSecondary} {
		_, err := blobs.Load(store.Key(10, slot))
		assert.ErrorIs(t, err, shared.ErrBlobNotFound, "no blob may land under the new user's key")
	}
	_, err := blobs.Load(store.Key(0, models.SlotPrimary))
	assert.NoError(t, err)
	assert.True(t, ctrl.Snapshot().Empty())
}

func TestControllerSubscribers(t *testing.T) {
	t.Run("new subscriber receives current state", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

		late := &th.RecordingSubscriber{}
		h.ctrl.AddSubscriber(late)
		h.ctrl.Flush()

		last, ok := late.Last()
		require.True(t, ok)
		assert.Equal(t, "meeting", title(last.Primary))
	})

	t.Run("removed subscriber hears nothing more", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		h.ctrl.RemoveSubscriber(h.sub)
		h.ctrl.Flush()
		notified := len(h.sub.States())

		require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))
		assert.Len(t, h.sub.States(), notified)
	})

	t.Run("notifications arrive in order", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		var mu sync.Mutex
		var seen []string
		funcs := &SubscriberFuncs{StateUpdated: func(s models.State) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, title(s.Primary))
		}}
		h.ctrl.AddSubscriber(funcs)

		for _, name := range []string{"a", "b", "c"} {
			h.ctrl.Ingest(h.pending(t, card(models.PriorityPrimary, name, time.Time{}), 0))
		}
		h.ctrl.Flush()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"", "a", "b", "c"}, seen)
	})

	t.Run("refresh notifies without changes", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		notified := len(h.sub.States())

		h.ctrl.Refresh()
		h.ctrl.Flush()
		assert.Len(t, h.sub.States(), notified+1)
	})
}

func TestControllerProducerErrors(t *testing.T) {
	var logs bytes.Buffer
	producer := &th.MockProducer{Err: errors.New("producer offline")}
	ctrl := New(Options{
		Store:    repositories.NewCardStore(repositories.NewMemoryStore(), "glance"),
		Producer: producer,
		Alarm:    &th.ManualAlarm{},
		Clock:    clockwork.NewFakeClockAt(epoch),
		Logger:   shared.NewLogger(&logs),
	})
	ctrl.Start(context.Background())
	defer ctrl.Stop()
	ctrl.Flush()

	assert.Equal(t, 1, producer.EnableCalls())
	assert.Contains(t, logs.String(), "producer signal failed")

	var buf bytes.Buffer
	require.NoError(t, ctrl.Dump(&buf))
	assert.Contains(t, buf.String(), "  broadcast: false\n")
}

func TestControllerDump(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	require.True(t, h.ingest(t, card(models.PriorityPrimary, "meeting", time.Time{}), 0))

	var buf bytes.Buffer
	require.NoError(t, h.ctrl.Dump(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "CardController\n"))
	assert.Contains(t, out, "  broadcast: true\n")
	assert.Contains(t, out, "  weather: <none>\n")
	assert.Contains(t, out, "  current: title:meeting")
	assert.Contains(t, out, "  disabled: false\n")
}

func TestLooper(t *testing.T) {
	t.Run("runs tasks in post order", func(t *testing.T) {
		l := NewLooper("test", shared.NewLogger(&bytes.Buffer{}))
		l.Start(context.Background())
		defer l.Stop()

		var got []int
		for i := range 100 {
			l.Post(func() { got = append(got, i) })
		}
		l.Flush()

		require.Len(t, got, 100)
		for i, v := range got {
			assert.Equal(t, i, v)
		}
	})

	t.Run("rejects posts after stop", func(t *testing.T) {
		l := NewLooper("test", shared.NewLogger(&bytes.Buffer{}))
		l.Start(context.Background())
		l.Stop()

		assert.False(t, l.Post(func() {}))
		assert.False(t, l.Call(func() {}))
	})

	t.Run("stop drains queued tasks", func(t *testing.T) {
		l := NewLooper("test", shared.NewLogger(&bytes.Buffer{}))
		l.Start(context.Background())

		var mu sync.Mutex
		count := 0
		for range 10 {
			l.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}
		l.Stop()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, count)
	})

	t.Run("survives a panicking task", func(t *testing.T) {
		var logs bytes.Buffer
		l := NewLooper("test", shared.NewLogger(&logs))
		l.Start(context.Background())
		defer l.Stop()

		l.Post(func() { panic("boom") })
		ran := false
		l.Call(func() { ran = true })

		assert.True(t, ran)
		assert.Contains(t, logs.String(), "boom")
	})
}
