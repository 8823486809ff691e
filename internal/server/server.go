// package server exposes the card controller over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/controller"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/metrics"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the paths it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router registers handlers behind a shared middleware stack.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Controller is the part of [controller.Controller] the HTTP surface drives.
type Controller interface {
	Snapshot() models.State
	Enabled() bool
	CurrentUser() int
	PrivacyMode() bool
	OnUserSwitch(id int)
	SetPrivacyMode(enabled bool)
	OnProducerAvailabilityChanged()
	OnTimeChanged()
	ReloadData()
	AddSubscriber(s controller.Subscriber)
	RemoveSubscriber(s controller.Subscriber)
	Flush()
	Dump(w io.Writer) error
}

// Ingress accepts raw Update payloads. [gateway.Gateway] implements it.
type Ingress interface {
	HandleIncoming(ctx context.Context, payload []byte, meta gateway.Meta) int
}

// Options configures a [Server].
type Options struct {
	Config     shared.ServerConfig
	Controller Controller
	Ingress    Ingress
	Registry   *prometheus.Registry
	Clock      clockwork.Clock
	Logger     *log.Logger
}

// Server is the glance HTTP API.
type Server struct {
	addr   string
	router *BasicRouter
	api    *API
	logger *log.Logger
}

// New builds the router and registers every route.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "http")

	limit := rate.Inf
	if opts.Config.RateLimit > 0 {
		limit = rate.Limit(opts.Config.RateLimit)
	}
	burst := max(opts.Config.Burst, 1)

	api := &API{
		ctrl:    opts.Controller,
		ingress: opts.Ingress,
		clock:   opts.Clock,
		logger:  logger,
	}

	r := NewBasicRouter()
	r.Use(RequestLogger(logger), Recover(logger))

	r.Handle(http.MethodPost, "/v1/cards", RateLimit(rate.NewLimiter(limit, burst))(http.HandlerFunc(api.PushCards)))
	r.Handle(http.MethodGet, "/v1/state", http.HandlerFunc(api.State))
	r.Handle(http.MethodPost, "/v1/user", http.HandlerFunc(api.SwitchUser))
	r.Handle(http.MethodPost, "/v1/privacy", http.HandlerFunc(api.SetPrivacy))
	r.Handle(http.MethodPost, "/v1/producer/changed", http.HandlerFunc(api.ProducerChanged))
	r.Handle(http.MethodPost, "/v1/time/changed", http.HandlerFunc(api.TimeChanged))
	r.Handle(http.MethodPost, "/v1/reload", http.HandlerFunc(api.Reload))
	r.Handle(http.MethodGet, "/debug/dump", http.HandlerFunc(api.Dump))
	r.Handle(http.MethodGet, "/v1/routes", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"routes": r.Routes()})
	}))
	r.Handler(NewStreamHandler(api))
	if opts.Registry != nil {
		r.Handle(http.MethodGet, "/metrics", metrics.HTTPHandler(opts.Registry))
	}

	return &Server{
		addr:   opts.Config.Addr(),
		router: r,
		api:    api,
		logger: logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
