package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/config"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/memory"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/supabase"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

func memoryConfig() *config.Configuration {
	return &config.Configuration{
		Storage: config.StorageConfig{Driver: constants.StorageDriverMemory},
		Tenant:  constants.DefaultTenant,
	}
}

func TestBuildMemory(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(), prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.Store{}, a.Store)
	assert.False(t, a.Cached)
	require.NotNil(t, a.Metrics)

	payload := defaults.MustDefault(ruleset.Ferias)
	payload["tercoConstitucional"] = false
	_, err = a.Admin.Publish(ctx, "escritorio-1", ruleset.Ferias, payload, "ana", true)
	require.NoError(t, err)

	sim, err := a.Simulator.Run(ctx, ruleset.Ferias, "escritorio-1", map[string]interface{}{"salarioBase": 3000})
	require.NoError(t, err)
	assert.False(t, sim.IsFallback)
	assert.Equal(t, 1, sim.Version)
	assert.InDelta(t, 3000, sim.Result.Total, 1e-6)
}

func TestBuildWithoutRegistry(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Metrics)
	assert.NoError(t, a.Close())
}

func TestBuildUnreachableRedisRunsWithoutCache(t *testing.T) {
	cfg := memoryConfig()
	cfg.Cache = config.CacheConfig{Enabled: true, RedisAddr: "127.0.0.1:1"}

	a, err := Build(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.Cached)

	res, err := a.Resolver.ResolveActive(context.Background(), ruleset.FatorR, "t")
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
}

func TestBuildSupabase(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage = config.StorageConfig{
		Driver:      constants.StorageDriverSupabase,
		SupabaseURL: "http://127.0.0.1:1",
		SupabaseKey: "service-role",
	}

	a, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &supabase.Store{}, a.Store)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		storage config.StorageConfig
	}{
		{"unsupported driver", config.StorageConfig{Driver: "mongo"}},
		{"unreachable postgres", config.StorageConfig{
			Driver:      constants.StorageDriverPostgres,
			PostgresDSN: "postgres://maxtabil@127.0.0.1:1/maxtabil?sslmode=disable&connect_timeout=1",
		}},
		{"supabase without credentials", config.StorageConfig{Driver: constants.StorageDriverSupabase}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.Storage = tt.storage
			_, err := Build(context.Background(), cfg, nil, nil)
			assert.Error(t, err)
		})
	}
}
