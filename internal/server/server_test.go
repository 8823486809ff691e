package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/glance/internal/codec"
	"github.com/desertthunder/glance/internal/controller"
	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/metrics"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/repositories"
	"github.com/desertthunder/glance/internal/shared"
	th "github.com/desertthunder/glance/internal/testing"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type fixture struct {
	srv      *httptest.Server
	ctrl     *controller.Controller
	producer *th.MockProducer
}

type fixtureOpts struct {
	disabled  bool
	rateLimit float64
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	logger := shared.NewLogger(io.Discard)
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	producer := &th.MockProducer{}

	ctrl := controller.New(controller.Options{
		Store:    repositories.NewCardStore(repositories.NewMemoryStore(), "glance"),
		Producer: producer,
		Alarm:    &th.ManualAlarm{},
		Clock:    clock,
		Metrics:  recorder,
		Logger:   logger,
		Disabled: o.disabled,
	})
	ctrl.Start(context.Background())
	ctrl.Flush()

	gw := gateway.New(gateway.Options{Ingester: ctrl, Clock: clock, Metrics: recorder, Logger: logger})

	cfg := shared.DefaultConfig().Server
	cfg.RateLimit = o.rateLimit
	cfg.Burst = 1
	s := New(Options{
		Config:     cfg,
		Controller: ctrl,
		Ingress:    gw,
		Registry:   reg,
		Clock:      clock,
		Logger:     logger,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		ctrl.Stop()
	})
	return &fixture{srv: srv, ctrl: ctrl, producer: producer}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) state(t *testing.T) formatter.StateView {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/v1/state", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view formatter.StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func update(priority int, title string) []byte {
	return codec.EncodeUpdate(&models.Card{
		Priority:    priority,
		EventTime:   epoch,
		DuringEvent: &models.Message{Title: models.FormattedText{Text: title}},
	})
}

func TestPushCards(t *testing.T) {
	t.Run("accepted cards show up in state", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		resp := f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "meeting"), nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 1, body["accepted"])
		assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

		view := f.state(t)
		require.NotNil(t, view.Primary)
		assert.Equal(t, "meeting", view.Primary.Title)
		assert.Equal(t, "primary", view.Primary.Slot)
		assert.Nil(t, view.Secondary)
		assert.True(t, view.Enabled)
		assert.Equal(t, 0, view.User)
	})

	t.Run("malformed payload is dropped quietly", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		resp := f.do(t, http.MethodPost, "/v1/cards", []byte{0x0a, 0x7f}, nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Zero(t, body["accepted"])
		assert.Nil(t, f.state(t).Primary)
	})

	t.Run("foreign user is not accepted", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		resp := f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "x"), map[string]string{"X-Glance-User": "10"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Zero(t, body["accepted"])
	})

	t.Run("bad metadata is rejected", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		resp := f.do(t, http.MethodPost, "/v1/cards", nil, map[string]string{"X-Glance-User": "abc"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		resp := f.do(t, http.MethodGet, "/v1/cards", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	})

	t.Run("disabled controller", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{disabled: true})
		resp := f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "x"), nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.False(t, f.state(t).Enabled)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{rateLimit: 0.001})

		first := f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "a"), nil)
		assert.Equal(t, http.StatusAccepted, first.StatusCode)

		second := f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "b"), nil)
		assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
		assert.Equal(t, "1", second.Header.Get("Retry-After"))
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	t.Run("user switch", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "meeting"), nil)

		resp := f.do(t, http.MethodPost, "/v1/user", []byte(`{"user_id":10}`), nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		view := f.state(t)
		assert.Equal(t, 10, view.User)
		assert.Nil(t, view.Primary)
		assert.Equal(t, 1, f.producer.ExpiredCalls())
	})

	t.Run("user switch validation", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		for _, body := range []string{``, `{}`, `{"user_id":-1}`, `{"user_id":"ten"}`, `{"uid":1}`} {
			resp := f.do(t, http.MethodPost, "/v1/user", []byte(body), nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		}
	})

	t.Run("privacy", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		resp := f.do(t, http.MethodPost, "/v1/privacy", []byte(`{"enabled":true}`), nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.True(t, f.state(t).PrivacyMode)

		resp = f.do(t, http.MethodPost, "/v1/privacy", []byte(`{}`), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("producer, time and reload", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		for _, path := range []string{"/v1/producer/changed", "/v1/time/changed", "/v1/reload"} {
			resp := f.do(t, http.MethodPost, path, nil, nil)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
		}
		assert.Equal(t, 2, f.producer.EnableCalls())
	})

	t.Run("reload restores persisted cards", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		f.do(t, http.MethodPost, "/v1/cards", update(models.PrioritySecondary, "sunny"), nil)

		resp := f.do(t, http.MethodPost, "/v1/reload", nil, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		view := f.state(t)
		require.NotNil(t, view.Secondary)
		assert.Equal(t, "sunny", view.Secondary.Title)
	})
}

func TestDumpAndMetrics(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "meeting"), nil)

	resp := f.do(t, http.MethodGet, "/debug/dump", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dump, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dump), "CardController\n"))
	assert.Contains(t, string(dump), "current: title:meeting")

	resp = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	exposition, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), `glance_updates_ingested_total{slot="primary"} 1`)
	assert.Contains(t, string(exposition), "glance_notifications_total")
}

func TestStream(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() formatter.StreamEvent {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var e formatter.StreamEvent
		require.NoError(t, conn.ReadJSON(&e))
		return e
	}

	initial := read()
	require.Equal(t, formatter.EventState, initial.Type)
	require.NotNil(t, initial.State)
	assert.Nil(t, initial.State.Primary)

	f.do(t, http.MethodPost, "/v1/cards", update(models.PriorityPrimary, "meeting"), nil)
	e := read()
	require.Equal(t, formatter.EventState, e.Type)
	require.NotNil(t, e.State.Primary)
	assert.Equal(t, "meeting", e.State.Primary.Title)

	f.do(t, http.MethodPost, "/v1/privacy", []byte(`{"enabled":true}`), nil)
	e = read()
	require.Equal(t, formatter.EventPrivacy, e.Type)
	require.NotNil(t, e.Enabled)
	assert.True(t, *e.Enabled)

	f.do(t, http.MethodPost, "/v1/producer/changed", nil, nil)
	assert.Equal(t, formatter.EventProducer, read().Type)
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		var logs bytes.Buffer
		h := Recover(shared.NewLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, logs.String(), "boom")
	})

	t.Run("RequestLogger keeps incoming id", func(t *testing.T) {
		var seen string
		h := RequestLogger(shared.NewLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("RateLimit", func(t *testing.T) {
		h := RateLimit(rate.NewLimiter(0, 2))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		codes := make([]int, 3)
		for i := range codes {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			codes[i] = rec.Code
		}
		assert.Equal(t, []int{200, 200, 429}, codes)
	})

	t.Run("Router applies middleware in order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})

	t.Run("Router method table", func(t *testing.T) {
		ok := func(body string) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
		}

		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/item", ok("get"))
		r.Handle("put", "/item", ok("put"))
		r.Handle(http.MethodPost, "/other", ok("post"))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/item", nil))
		assert.Equal(t, "put", rec.Body.String())

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/item", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/item", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "GET, PUT", rec.Header().Get("Allow"))
		assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"no route for /missing"}`, rec.Body.String())

		assert.Equal(t, []string{"GET /item", "PUT /item", "POST /other"}, r.Routes())
	})

	t.Run("Router runs middleware for unknown paths", func(t *testing.T) {
		var hits int
		r := NewBasicRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				hits++
				next.ServeHTTP(w, req)
			})
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, 1, hits)
	})
}

func TestRoutesListing(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	resp := f.do(t, http.MethodGet, "/v1/routes", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Routes, "POST /v1/cards")
	assert.Contains(t, body.Routes, "GET /v1/state")
	assert.Contains(t, body.Routes, "GET /v1/routes")
}
