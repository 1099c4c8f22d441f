// Package resolver finds the configuration a simulator should run with:
// the tenant's active rule set when one can be read, the built-in default
// otherwise.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
)

// ConfigSource looks up the active payload of (key, tenant). The boolean is
// false when there is nothing to use, for whatever reason.
type ConfigSource interface {
	TryGetActive(ctx context.Context, key ruleset.Key, tenant string) (Active, bool)
}

// Active is what a ConfigSource hands back.
type Active struct {
	Payload ruleset.Payload `json:"payload"`
	Version int             `json:"version"`
}

// StoreSource adapts a store.Store to ConfigSource. Lookup failures are
// logged and reported as absent, the same as a missing row.
type StoreSource struct {
	store  store.Store
	logger *zap.Logger
}

// NewStoreSource wraps s. A nil logger disables logging.
func NewStoreSource(s store.Store, logger *zap.Logger) *StoreSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSource{store: s, logger: logger}
}

func (s *StoreSource) TryGetActive(ctx context.Context, key ruleset.Key, tenant string) (Active, bool) {
	rs, err := s.store.GetActive(ctx, key, tenant)
	if err != nil {
		s.logger.Warn("Active rule set lookup failed, serving defaults",
			zap.String("op", "resolver.TryGetActive"),
			zap.String("key", string(key)),
			zap.String("tenant", tenant),
			zap.Error(err))
		return Active{}, false
	}
	if rs == nil || rs.Payload == nil {
		return Active{}, false
	}
	return Active{Payload: rs.Payload, Version: rs.Version}, true
}

// Absent is a ConfigSource with nothing stored.
type Absent struct{}

func (Absent) TryGetActive(context.Context, ruleset.Key, string) (Active, bool) {
	return Active{}, false
}

// Resolution is the configuration picked for one simulation. Version is 0
// when IsFallback is true.
type Resolution struct {
	Key        ruleset.Key     `json:"key"`
	Config     ruleset.Payload `json:"config"`
	IsFallback bool            `json:"isFallback"`
	Version    int             `json:"version,omitempty"`
}

// Resolver composes a ConfigSource with the default catalog.
type Resolver struct {
	source  ConfigSource
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Resolver. A nil source behaves as Absent; m and logger may be nil.
func New(source ConfigSource, m *metrics.Metrics, logger *zap.Logger) *Resolver {
	if source == nil {
		source = Absent{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, metrics: m, logger: logger}
}

// ResolveActive returns the tenant's active payload for key, or the default
// payload with IsFallback set. Stored payloads are returned as stored, with
// no validation. The only error is an unknown key.
func (r *Resolver) ResolveActive(ctx context.Context, key ruleset.Key, tenant string) (Resolution, error) {
	if !key.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}

	if active, ok := r.source.TryGetActive(ctx, key, tenant); ok {
		r.metrics.ObserveResolution(string(key), false)
		return Resolution{Key: key, Config: active.Payload, Version: active.Version}, nil
	}

	payload, err := defaults.Default(key)
	if err != nil {
		return Resolution{}, err
	}
	r.metrics.ObserveResolution(string(key), true)
	r.logger.Debug("No active rule set, using defaults",
		zap.String("op", "resolver.ResolveActive"),
		zap.String("key", string(key)),
		zap.String("tenant", tenant),
		zap.String("defaultsVersion", defaults.Version))
	return Resolution{Key: key, Config: payload, IsFallback: true}, nil
}
