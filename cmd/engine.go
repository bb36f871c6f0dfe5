package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/cache"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/events"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/orchestrator"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/provider"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/scheduler"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

// engine bundles the wired subsystems shared by serve and query.
type engine struct {
	Store        store.Store
	Registry     *provider.Registry
	Notifier     *events.Notifier
	Views        *cache.ViewCache
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// openStore picks the backend from configuration.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEngine wires the full comparison engine and starts the scheduler.
func initEngine(ctx context.Context) (*engine, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	registry := provider.NewRegistryFromConfig(cfg)
	notifier := events.NewNotifier()
	views := cache.NewViewCache(time.Duration(cfg.Cache.TTLSecs) * time.Second)
	creds := orchestrator.NewCredentialResolver(st, cfg.Providers)
	orch := orchestrator.New(st, registry, creds, notifier, views, cfg.Orchestrator)

	sched := scheduler.New(cfg.Scheduler)
	sched.Register(scheduler.KindOrchestration, func(ctx context.Context, task scheduler.Task) error {
		err := orch.Run(ctx, task.QueryID)
		if err != nil && task.Final() {
			orch.MarkFailed(ctx, task.QueryID, err)
		}
		return err
	})
	sched.Register(scheduler.KindScoring, func(ctx context.Context, task scheduler.Task) error {
		err := orch.ScoreQuery(ctx, task.QueryID)
		if eris.Is(err, orchestrator.ErrInsufficientResponses) {
			// Retrying cannot conjure more responses; the query simply
			// has no comparison metrics.
			return nil
		}
		return err
	})
	orch.SetScoringEnqueue(func(queryID string) error {
		_, err := sched.Enqueue(scheduler.KindScoring, queryID)
		return err
	})
	sched.Start()

	zap.L().Info("engine initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Int("models", len(registry.Models())))

	return &engine{
		Store:        st,
		Registry:     registry,
		Notifier:     notifier,
		Views:        views,
		Orchestrator: orch,
		Scheduler:    sched,
	}, nil
}

func (e *engine) Close() {
	e.Scheduler.Close()
	e.Views.Close()
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}
