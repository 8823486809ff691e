package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/glance/internal/alarm"
	"github.com/desertthunder/glance/internal/controller"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/metrics"
	"github.com/desertthunder/glance/internal/repositories"
	"github.com/desertthunder/glance/internal/server"
	"github.com/desertthunder/glance/internal/services"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// Serve composes the controller, its transports and the HTTP API, and runs until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := r.config
	if err := config.Validate(); err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "user", config.Instance.UserID)
	clock := clockwork.NewRealClock()

	backend, err := repositories.OpenBackend(config)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", config.Store.Driver, err)
	}
	defer backend.Close()
	store := repositories.NewCardStore(backend, config.Instance.Namespace)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	scheduler, err := alarm.NewScheduler(clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown failed", "error", err)
		}
	}()

	var expiry alarm.Alarm = alarm.NewClockAlarm(clock)
	if config.Timers.Backend == "cron" {
		expiry = alarm.NewCronAlarm(scheduler, clock)
	}

	var conn *nats.Conn
	var producer controller.Producer = services.NewLogProducer(logger)
	if config.NATS.URL != "" {
		conn, err = services.Connect(config.NATS, "glance-"+strconv.Itoa(config.Instance.UserID))
		if err != nil {
			return err
		}
		defer conn.Close()
		producer = services.NewNATSProducer(conn, config.NATS, config.Instance.UserID)
	}

	enabled := shared.FeatureEnabled(config.Instance.FeatureConstants, logger)

	ctrl := controller.New(controller.Options{
		InstanceUserID: config.Instance.UserID,
		Store:          store,
		Producer:       producer,
		Alarm:          expiry,
		Clock:          clock,
		Metrics:        recorder,
		Logger:         logger,
		Disabled:       !enabled,
		HidePrivate:    config.Instance.HidePrivate,
	})
	ctrl.Start(ctx)
	defer ctrl.Stop()

	gw := gateway.New(gateway.Options{
		InstanceUserID: config.Instance.UserID,
		Ingester:       ctrl,
		Clock:          clock,
		Metrics:        recorder,
		Logger:         logger,
	})

	if conn != nil && enabled {
		transport := gateway.NewNATSTransport(conn, gw, config.NATS, logger)
		gw.SetForwarder(transport)
		if err := transport.Subscribe(ctx); err != nil {
			return err
		}
		defer transport.Close()
	}

	if _, err := os.Stat(r.configPath); err == nil {
		watcher, err := shared.NewConfigWatcher(r.configPath, func(c *shared.Config) {
			shared.SetLogLevel(r.logger, shared.ParseLogLevel(c.Log.Level))
			if c.Instance.HidePrivate != ctrl.PrivacyMode() {
				ctrl.SetPrivacyMode(c.Instance.HidePrivate)
			}
		}, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if interval := config.Timers.CheckInterval(); interval > 0 && enabled {
		tw := alarm.NewTimeWatcher(config.Timers.JumpThreshold(), ctrl.OnTimeChanged, logger)
		if _, err := tw.Schedule(scheduler, interval); err != nil {
			return err
		}
	}
	scheduler.Start()

	srv := server.New(server.Options{
		Config:     config.Server,
		Controller: ctrl,
		Ingress:    gw,
		Registry:   registry,
		Clock:      clock,
		Logger:     logger,
	})

	logger.Info("glance serving",
		"addr", config.Server.Addr(),
		"store", config.Store.Driver,
		"timers", config.Timers.Backend,
		"nats", conn != nil,
		"enabled", enabled,
	)
	return srv.ListenAndServe(ctx)
}
