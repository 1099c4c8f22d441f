// Package store defines persistence for versioned rule sets.
package store

import (
	"context"
	"errors"

	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
)

// ErrNotFound is returned when a requested rule set version does not exist.
var ErrNotFound = errors.New("rule set not found")

// Store persists rule sets. Versions are never mutated or deleted; only the
// active flag moves between versions of the same (key, tenant).
type Store interface {
	// GetActive returns the active rule set, or nil and no error when the
	// (key, tenant) pair has none.
	GetActive(ctx context.Context, key ruleset.Key, tenant string) (*ruleset.RuleSet, error)

	// ListVersions returns every version, newest first.
	ListVersions(ctx context.Context, key ruleset.Key, tenant string) ([]*ruleset.RuleSet, error)

	// CreateVersion stores rs under the next version number, which it
	// assigns. When rs is active the previously active version is
	// deactivated.
	CreateVersion(ctx context.Context, rs *ruleset.RuleSet) (*ruleset.RuleSet, error)

	// Activate makes version the only active version of (key, tenant).
	Activate(ctx context.Context, key ruleset.Key, tenant string, version int) (*ruleset.RuleSet, error)
}
