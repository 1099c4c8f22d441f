// Package admin is the write side of rule sets: publishing validated
// versions, switching the active version and reading history.
package admin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/schema"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

// Invalidator drops memoized lookups of (key, tenant).
type Invalidator interface {
	Invalidate(ctx context.Context, key ruleset.Key, tenant string) error
}

// Service publishes and activates rule set versions.
type Service struct {
	store       store.Store
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Service. invalidator, m and logger may be nil.
func New(s store.Store, invalidator Invalidator, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, invalidator: invalidator, metrics: m, logger: logger, now: time.Now}
}

func tenantOrDefault(tenant string) string {
	if tenant == "" {
		return constants.DefaultTenant
	}
	return tenant
}

// Validate checks payload for key and records the outcome.
func (s *Service) Validate(key ruleset.Key, payload ruleset.Payload) schema.Result {
	result := schema.Validate(key, payload)
	s.metrics.ObserveValidation(string(key), result.OK)
	return result
}

// Publish validates payload and stores it as the next version of
// (key, tenant). Invalid payloads are rejected with a *schema.ValidationError
// and nothing is stored. When activate is true the new version replaces
// the active one.
func (s *Service) Publish(ctx context.Context, tenant string, key ruleset.Key, payload ruleset.Payload, author string, activate bool) (*ruleset.RuleSet, error) {
	tenant = tenantOrDefault(tenant)
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}
	if err := s.Validate(key, payload).Err(key); err != nil {
		s.logger.Info("Rejected rule set",
			zap.String("op", "admin.Publish"),
			zap.String("key", string(key)),
			zap.String("tenant", tenant),
			zap.Error(err))
		return nil, err
	}

	stored, err := payload.Clone()
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateVersion(ctx, ruleset.New(tenant, key, stored, author, activate, s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s for tenant %q: %w", key, tenant, err)
	}

	if activate {
		s.invalidate(ctx, key, tenant)
	}
	s.logger.Info("Published rule set",
		zap.String("op", "admin.Publish"),
		zap.String("key", string(key)),
		zap.String("tenant", tenant),
		zap.Int("version", created.Version),
		zap.Bool("active", created.IsActive),
		zap.String("author", author))
	return created, nil
}

// Activate makes an existing version the active one.
func (s *Service) Activate(ctx context.Context, tenant string, key ruleset.Key, version int) (*ruleset.RuleSet, error) {
	tenant = tenantOrDefault(tenant)
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}
	rs, err := s.store.Activate(ctx, key, tenant, version)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, key, tenant)
	s.logger.Info("Activated rule set",
		zap.String("op", "admin.Activate"),
		zap.String("key", string(key)),
		zap.String("tenant", tenant),
		zap.Int("version", version))
	return rs, nil
}

// History lists every version of (key, tenant), newest first.
func (s *Service) History(ctx context.Context, tenant string, key ruleset.Key) ([]*ruleset.RuleSet, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}
	return s.store.ListVersions(ctx, key, tenantOrDefault(tenant))
}

// invalidate is best effort: a stale entry expires with its TTL.
func (s *Service) invalidate(ctx context.Context, key ruleset.Key, tenant string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, key, tenant); err != nil {
		s.logger.Warn("Failed to invalidate cached rule set",
			zap.String("op", "admin.invalidate"),
			zap.String("key", string(key)),
			zap.String("tenant", tenant),
			zap.Error(err))
	}
}
