// Package app assembles the services behind the maxtabil binaries from a
// Configuration: the rule set store, the optional Redis cache, the resolver,
// the simulator and the admin service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/cache"
	"github.com/leadtunic/maxtabil-app-sub001/internal/config"
	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/resolver"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/admin"
	"github.com/leadtunic/maxtabil-app-sub001/internal/simulator"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/memory"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/postgres"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/supabase"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

// App holds the wired services. Close releases database and Redis
// connections.
type App struct {
	Store     store.Store
	Resolver  *resolver.Resolver
	Simulator *simulator.Simulator
	Admin     *admin.Service
	Metrics   *metrics.Metrics
	// Cached reports whether lookups go through Redis.
	Cached bool

	closers []func() error
}

// Build wires the services described by cfg. reg may be nil, in which case
// no metrics are recorded.
func Build(ctx context.Context, cfg *config.Configuration, reg prometheus.Registerer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{}
	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	st, closer, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Store = st
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	var (
		source      resolver.ConfigSource = resolver.NewStoreSource(st, logger)
		invalidator admin.Invalidator
	)
	if cfg.Cache.Enabled {
		client, err := cache.NewGoRedisAdapter(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache",
				zap.String("op", "app.Build"),
				zap.String("addr", cfg.Cache.RedisAddr),
				zap.Error(err))
		} else {
			cached := cache.New(source, client, cfg.Cache.TTL, a.Metrics, logger)
			source = cached
			invalidator = cached
			a.Cached = true
			a.closers = append(a.closers, client.Close)
		}
	}

	a.Resolver = resolver.New(source, a.Metrics, logger)
	a.Simulator = simulator.New(a.Resolver, a.Metrics, logger)
	a.Admin = admin.New(st, invalidator, a.Metrics, logger)

	logger.Info("Services ready",
		zap.String("op", "app.Build"),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("cache", a.Cached))
	return a, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, func() error, error) {
	switch cfg.Driver {
	case constants.StorageDriverMemory, "":
		return memory.New(), nil, nil
	case constants.StorageDriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(db)
		if cfg.Migrate {
			if err := s.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return s, db.Close, nil
	case constants.StorageDriverSupabase:
		s, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

// Close releases every connection opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
