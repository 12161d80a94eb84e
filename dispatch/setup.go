// Package dispatch is the composition root. Setup wires a queue, a request
// history store, the event recorder, housekeeping and the optional dashboard
// from a single Config, and hands back an App that owns their lifecycles.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"dispatchq/internal/cache"
	"dispatchq/internal/config"
	"dispatchq/internal/db"
	"dispatchq/internal/lock"
	"dispatchq/internal/maintenance"
	"dispatchq/internal/queue"
	"dispatchq/internal/store"
	"dispatchq/internal/store/postgres"
	"dispatchq/web"
)

// App is one running dispatcher instance.
type App[P, R any] struct {
	Queue *queue.Queue[P, R]
	Store store.RequestStore

	cfg         *config.Config
	maintenance *maintenance.Maintenance
	sqlDB       *sql.DB

	cancel   context.CancelFunc
	recorded sync.WaitGroup
}

// Setup builds an App from cfg. process is invoked for every admitted item;
// every item's lifecycle is mirrored into the request store.
func Setup[P, R any](ctx context.Context, cfg *config.Config, process queue.ProcessFunc[P, R]) (*App[P, R], error) {
	if cfg == nil {
		return nil, fmt.Errorf("setup: config is required")
	}

	requestStore, locker, sqlDB, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	q := queue.New(process, cfg.Queue)

	ctx, cancel := context.WithCancel(ctx)
	app := &App[P, R]{
		Queue:  q,
		Store:  requestStore,
		cfg:    cfg,
		sqlDB:  sqlDB,
		cancel: cancel,
	}

	rec := newRecorder[P](requestStore)
	app.recorded.Add(1)
	go func() {
		defer app.recorded.Done()
		rec.run(ctx, q.Events())
	}()

	app.maintenance = maintenance.New(requestStore, locker, q, cfg.RetentionPeriod, cfg.PruneSchedule)
	if err := app.maintenance.Start(); err != nil {
		cancel()
		requestStore.Close()
		return nil, fmt.Errorf("setup: %w", err)
	}

	if cfg.DashboardEnabled {
		router := web.NewRouteHandler(
			requestStore,
			q,
			cfg.DashboardUserName,
			cfg.DashboardPassword,
			cfg.SecretKey,
			cfg.DashboardAuthEnabled,
			cfg.DashboardPort,
		)
		go func() {
			if err := router.Serve(); err != nil {
				log.Printf("dashboard server stopped: %v", err)
			}
		}()
	}

	log.Printf("dispatcher %q ready (storage: %s)", cfg.Instance, cfg.StorageDriver)
	return app, nil
}

// Add enqueues a payload and returns its future.
func (a *App[P, R]) Add(payload P, opts ...queue.AddOption) *queue.Future[R] {
	return a.Queue.Add(payload, opts...)
}

// Clear rejects everything still waiting in the queue. In-flight work and
// scheduled retries are unaffected.
func (a *App[P, R]) Clear() {
	a.Queue.Clear()
}

// Close stops housekeeping and the recorder and releases the store. Pending
// items are not drained; call Clear first if they should be rejected.
func (a *App[P, R]) Close() error {
	a.maintenance.Stop()
	a.cancel()
	a.recorded.Wait()
	err := a.Store.Close()
	if a.sqlDB != nil {
		if cerr := a.sqlDB.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// GracefulExit blocks until ctx is cancelled (typically via
// signal.NotifyContext), then shuts the App down.
func (a *App[P, R]) GracefulExit(ctx context.Context) error {
	<-ctx.Done()
	log.Printf("dispatcher %q shutting down", a.cfg.Instance)
	return a.Close()
}

func buildStore(cfg *config.Config) (store.RequestStore, lock.AdvisoryLocker, *sql.DB, error) {
	switch cfg.StorageDriver {
	case config.Postgres:
		sqlDB, err := sql.Open("postgres", cfg.PostgresConfig.ConnectionURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("setup: open postgres: %w", err)
		}
		locker := lock.NewPostgresAdvisoryLocker(sqlDB)
		if err := db.Init(cfg.PostgresConfig.ConnectionURL, locker); err != nil {
			sqlDB.Close()
			return nil, nil, nil, fmt.Errorf("setup: init postgres: %w", err)
		}
		return postgres.NewPostgresRequestStore(sqlDB), locker, sqlDB, nil
	default:
		return store.NewMemoryRequestStore(), nil, nil, nil
	}
}

// NewResponseCache builds the response cache named by cfg: Redis when the
// cache is enabled, otherwise an in-process cache with the configured TTL.
func NewResponseCache(ctx context.Context, cfg *config.Config) (cache.ResponseCache, error) {
	if cfg.CacheEnabled {
		return cache.NewRedisCache(
			ctx,
			cfg.RedisConfig.Address,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.CacheTTL,
		)
	}
	return cache.NewMemoryCache(cfg.CacheTTL), nil
}
