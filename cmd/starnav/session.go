package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/config"
	"github.com/udisondev/starnav/internal/db"
	"github.com/udisondev/starnav/internal/dispatch"
	"github.com/udisondev/starnav/internal/navigation"
)

// loadStars reads the catalogue from the configured source.
func loadStars(ctx context.Context, cfg config.Config) ([]catalog.Star, error) {
	switch cfg.Catalog.Source {
	case config.SourceDatabase:
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		defer database.Close()

		stars, err := database.Stars().LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading catalogue from database: %w", err)
		}
		slog.Info("catalogue loaded", "source", "database", "stars", len(stars))
		return stars, nil
	default:
		stars, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("catalogue loaded", "source", cfg.Catalog.Path, "stars", len(stars))
		return stars, nil
	}
}

// newEngine loads the catalogue and builds the spatial index.
func newEngine(ctx context.Context, cfg config.Config) (*navigation.Engine, error) {
	stars, err := loadStars(ctx, cfg)
	if err != nil {
		return nil, err
	}
	set, err := catalog.NewSet(stars)
	if err != nil {
		return nil, fmt.Errorf("building star set: %w", err)
	}
	return navigation.NewEngine(set, cfg.Index.Capacity)
}

// limits returns the per-search budget for the configured execution mode.
func limits(cfg config.Config) navigation.Limits {
	lim := navigation.Limits{
		MaxIterations: cfg.Planner.MaxIterations,
		TimeLimit:     cfg.Planner.TimeLimit,
	}
	if cfg.Dispatcher.Enabled {
		lim.TimeLimit = cfg.Planner.WorkerTimeLimit
	}
	return lim
}

// withFinder calls fn with the engine itself, or with a dispatcher backed by a
// local worker when the dispatcher is enabled. The worker and the response
// router run alongside fn and stop when it returns.
func withFinder(ctx context.Context, cfg config.Config, engine *navigation.Engine, fn func(context.Context, navigation.Finder) error) error {
	if !cfg.Dispatcher.Enabled {
		return fn(ctx, engine)
	}

	worker := dispatch.NewLocalWorker(engine.Snapshot(), cfg.Dispatcher.QueueSize)
	d := dispatch.New(engine, dispatch.Config{
		WorkerTimeout: cfg.Dispatcher.WorkerTimeout,
		CallerTimeout: cfg.Dispatcher.CallerTimeout,
	}, dispatch.WithWorker(worker))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)

	g.Go(func() error {
		if err := worker.Run(runCtx); err != nil {
			return fmt.Errorf("route worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.Run(runCtx); err != nil {
			return fmt.Errorf("dispatcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stop()
		err := fn(gctx, d)
		st := d.Stats()
		slog.Debug("dispatcher stats",
			"dispatched", st.Dispatched,
			"worker_resolved", st.WorkerResolved,
			"fallbacks", st.Fallbacks,
			"worker_timeouts", st.WorkerTimeouts,
			"caller_timeouts", st.CallerTimeouts,
			"late_dropped", st.LateDropped)
		return err
	})

	return g.Wait()
}
