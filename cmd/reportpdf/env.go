package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	reportpdf "github.com/alnah/go-reportpdf"
	"github.com/alnah/go-reportpdf/internal/attachment"
	"github.com/alnah/go-reportpdf/internal/config"
	"github.com/alnah/go-reportpdf/internal/logging"
	"github.com/alnah/go-reportpdf/internal/metrics"
)

// ErrStorage wraps failures to open the attachment store.
var ErrStorage = errors.New("attachment storage unavailable")

// storageError names the driver of a store that failed to open.
type storageError struct {
	driver string
	err    error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrStorage, e.driver, e.err)
}

func (e *storageError) Unwrap() error { return ErrStorage }

// RendererFactory builds the fragment renderer of a command and the
// function releasing it.
type RendererFactory func(cfg *config.Config, logger zerolog.Logger) (reportpdf.FragmentRenderer, func() error, error)

// StoreFactory opens the attachment store and the function releasing it.
type StoreFactory func(ctx context.Context, cfg config.StorageConfig) (attachment.Store, func(), error)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Now         func() time.Time
	NewRenderer RendererFactory
	OpenStore   StoreFactory
	Registry    *prometheus.Registry
}

// DefaultEnv returns the production environment: a Chrome renderer pool
// and the configured attachment store.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Now:         time.Now,
		NewRenderer: newRendererPool,
		OpenStore:   openStore,
		Registry:    prometheus.NewRegistry(),
	}
}

// pageSettings converts the render config to page settings.
func pageSettings(cfg *config.Config) *reportpdf.PageSettings {
	return &reportpdf.PageSettings{
		Size:        cfg.Render.PageSize,
		Orientation: cfg.Render.Orientation,
		Margin:      cfg.Render.Margin,
	}
}

func newRendererPool(cfg *config.Config, logger zerolog.Logger) (reportpdf.FragmentRenderer, func() error, error) {
	opts := []reportpdf.ChromeOption{
		reportpdf.WithStyle(cfg.Render.Style),
		reportpdf.WithTimeout(cfg.Render.Timeout),
		reportpdf.WithHeadingLevel(cfg.Render.HeadingLevel),
		reportpdf.WithBaseDir(cfg.Render.BaseDir),
		reportpdf.WithRendererLogger(logger),
	}
	if cfg.Render.AssetsPath != "" {
		loader, err := reportpdf.NewAssetLoader(cfg.Render.AssetsPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, reportpdf.WithAssetLoader(loader))
	}

	// Fail on a bad style or asset path before any work starts.
	probe, err := reportpdf.NewChromeRenderer(opts...)
	if err != nil {
		return nil, nil, err
	}
	_ = probe.Close()

	size := reportpdf.ResolvePoolSize(cfg.Render.Workers)
	logger.Debug().Int("size", size).Msg("renderer pool")
	pool := reportpdf.NewRendererPool(size, opts...)
	return pool, pool.Close, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (attachment.Store, func(), error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, &storageError{driver: cfg.Driver, err: err}
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, &storageError{driver: cfg.Driver, err: err}
		}
		return attachment.NewPostgresStore(pool), pool.Close, nil
	default:
		store, err := attachment.NewDirStore(cfg.Dir)
		if err != nil {
			return nil, nil, &storageError{driver: config.StorageDir, err: err}
		}
		return store, func() {}, nil
	}
}

// app is the wiring shared by the assemble and serve commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	deps    reportpdf.ManagerDeps
	closers []func()
}

// newApp builds the logger, metrics, store and renderer of a command.
func newApp(ctx context.Context, cfg *config.Config, env *Environment) (*app, error) {
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, env.Stderr)
	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled && env.Registry != nil {
		a.metrics = metrics.New(env.Registry)
	}

	store, closeStore, err := env.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	renderer, closeRenderer, err := env.NewRenderer(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := closeRenderer(); err != nil {
			logger.Warn().Err(err).Msg("closing renderer")
		}
	})

	a.deps = reportpdf.ManagerDeps{
		FactoryDeps: reportpdf.FactoryDeps{
			Renderer:    renderer,
			Attachments: attachment.NewRetriever(store, attachment.WithLogger(logger), attachment.WithMetrics(a.metrics)),
			Page:        pageSettings(cfg),
			Retry:       reportpdf.RetryPolicy{Attempts: cfg.PageCount.Attempts, Delay: cfg.PageCount.Delay},
		},
	}
	return a, nil
}

// run assembles items with the app's collaborators.
func (a *app) run(ctx context.Context, items []reportpdf.WorkItem, bundle bool) (*reportpdf.Output, error) {
	opts := []reportpdf.ManagerOption{
		reportpdf.WithManagerLogger(a.logger),
		reportpdf.WithManagerMetrics(a.metrics),
	}
	if bundle {
		opts = append(opts, reportpdf.WithBundle(nil))
	}
	return reportpdf.Run(ctx, items, a.deps, opts...)
}

// close releases the renderer, then the store.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
