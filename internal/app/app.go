// Package app initializes and holds the long-lived services of one control
// service instance, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/api"
	"github.com/hhsearch/crawlcontrol/internal/bus"
	"github.com/hhsearch/crawlcontrol/internal/clock/system"
	"github.com/hhsearch/crawlcontrol/internal/config"
	"github.com/hhsearch/crawlcontrol/internal/control"
	"github.com/hhsearch/crawlcontrol/internal/logging"
	"github.com/hhsearch/crawlcontrol/internal/metrics"
	"github.com/hhsearch/crawlcontrol/internal/runtime"
	"github.com/hhsearch/crawlcontrol/internal/runtime/docker"
	runmem "github.com/hhsearch/crawlcontrol/internal/runtime/memory"
	"github.com/hhsearch/crawlcontrol/internal/service"
)

// App holds the shared services for one job kind: the worker runtime, the
// reconciled job registry, the bus endpoints and the control loop built on
// top of them. It is initialized once at startup and torn down by Close.
type App struct {
	logger   *zap.Logger
	cfg      config.Config
	kind     control.Kind
	runtime  runtime.Runtime
	registry *control.Registry
	service  *service.Service
	reader   bus.Reader
	writers  []bus.Writer
	httpSrv  *http.Server
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Service returns the control loop.
func (a *App) Service() *service.Service {
	return a.service
}

// Registry returns the reconciled job registry.
func (a *App) Registry() *control.Registry {
	return a.registry
}

// New builds the full service graph for one job kind: logging, metrics,
// the worker runtime, startup reconciliation of the jobs directory, the
// bus endpoints and the control loop. It fails fast when any dependency
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, kind control.Kind) (*App, error) {
	if err := logging.Init(cfg.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logger := logging.L.With(zap.String("kind", string(kind)))
	metrics.Init()

	var rt runtime.Runtime
	switch cfg.Runtime.Provider {
	case "docker":
		rt = docker.New(logger)
	case "memory":
		logger.Info("using in-memory worker runtime, workers are not real")
		rt = runmem.New()
	default:
		return nil, fmt.Errorf("unknown runtime provider: %s", cfg.Runtime.Provider)
	}

	factory := &control.Factory{
		Kind:         kind,
		Runtime:      rt,
		Clock:        system.New(),
		Logger:       logger,
		Root:         cfg.RootFor(string(kind)),
		Image:        cfg.ImageFor(string(kind)),
		SampleRatePM: cfg.Service.TargetSampleRatePM,
	}

	registry, err := control.LoadAll(ctx, factory)
	if err != nil {
		return nil, fmt.Errorf("reconcile jobs directory: %w", err)
	}
	if registry.Len() == 0 {
		logger.Info("no crawls running")
	}
	for _, job := range registry.Snapshot() {
		logger.Info("recovered running job",
			zap.String("id", job.ID),
			zap.String("root", job.Root),
			zap.String("handle", job.Handle),
		)
	}
	metrics.SetJobsRunning(string(kind), registry.Len())

	reader := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, bus.Topic(string(kind), "input"))
	out := service.Outbound{
		Progress: bus.NewWriter(cfg.Kafka.Brokers, bus.Topic(string(kind), "progress")),
		Pages:    bus.NewWriter(cfg.Kafka.Brokers, bus.Topic(string(kind), "pages")),
		Model:    bus.NewWriter(cfg.Kafka.Brokers, bus.Topic(string(kind), "model")),
	}

	svc := service.New(kind, reader, out, factory, registry, service.Config{
		CheckUpdatesEvery: cfg.Service.CheckUpdatesEvery,
		PollTimeout:       cfg.PollTimeout(),
	}, logger)

	a := &App{
		logger:   logger,
		cfg:      cfg,
		kind:     kind,
		runtime:  rt,
		registry: registry,
		service:  svc,
		reader:   reader,
		writers:  []bus.Writer{out.Progress, out.Pages, out.Model},
	}

	if cfg.API.Enabled {
		a.httpSrv = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.NewServer(registry, kind, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting status server", zap.String("addr", cfg.API.Addr))
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("application services initialized")
	return a, nil
}

// Close shuts down the bus endpoints and the status server. Running
// workers are left alone so they can be reconciled on the next start.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
	if err := a.reader.Close(); err != nil {
		a.logger.Warn("closing bus reader failed", zap.Error(err))
	}
	for _, w := range a.writers {
		if err := w.Close(); err != nil {
			a.logger.Warn("closing bus writer failed", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Syncing to a terminal often fails; nothing useful to do here.
		_ = err
	}
}
