// Package supabase stores rule sets in the rule_sets table of a Supabase
// project through its PostgREST API.
//
// PostgREST offers no multi-statement transactions, so CreateVersion and
// Activate run as separate requests. A failure between them can leave a
// (key, tenant) with no active version; the resolver then serves defaults
// until an operator re-activates a version.
package supabase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
)

const table = "rule_sets"

// row mirrors a rule_sets record as PostgREST serializes it.
type row struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	Key       string                 `json:"key"`
	Version   int                    `json:"version"`
	IsActive  bool                   `json:"is_active"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedBy string                 `json:"created_by,omitempty"`
	CreatedAt string                 `json:"created_at,omitempty"` // String to handle Supabase timestamp format
}

func toRow(rs *ruleset.RuleSet) row {
	return row{
		ID:        rs.ID.String(),
		TenantID:  rs.TenantID,
		Key:       string(rs.Key),
		Version:   rs.Version,
		IsActive:  rs.IsActive,
		Payload:   rs.Payload,
		CreatedBy: rs.CreatedBy,
		CreatedAt: rs.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r row) ruleSet() (*ruleset.RuleSet, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid rule set id %q: %w", r.ID, err)
	}
	rs := &ruleset.RuleSet{
		ID:        id,
		TenantID:  r.TenantID,
		Key:       ruleset.Key(r.Key),
		Version:   r.Version,
		IsActive:  r.IsActive,
		Payload:   ruleset.Payload(r.Payload),
		CreatedBy: r.CreatedBy,
	}
	if r.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", r.CreatedAt, err)
		}
		rs.CreatedAt = created
	}
	return rs, nil
}

// Store implements store.Store on a Supabase client.
type Store struct {
	client *supabase.Client
}

// New creates a Store for the project at url, authenticating with key
// (normally the service role key).
func New(url, key string) (*Store, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase url and key must be set")
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) versions(key ruleset.Key, tenant string, onlyActive bool) ([]row, error) {
	query := s.client.From(table).
		Select("*", "", false).
		Eq("key", string(key)).
		Eq("tenant_id", tenant)
	if onlyActive {
		query = query.Eq("is_active", "true")
	}

	var rows []row
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Version > rows[j].Version })
	return rows, nil
}

func (s *Store) GetActive(_ context.Context, key ruleset.Key, tenant string) (*ruleset.RuleSet, error) {
	rows, err := s.versions(key, tenant, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rule set: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ruleSet()
}

func (s *Store) ListVersions(_ context.Context, key ruleset.Key, tenant string) ([]*ruleset.RuleSet, error) {
	rows, err := s.versions(key, tenant, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}
	out := make([]*ruleset.RuleSet, 0, len(rows))
	for _, r := range rows {
		rs, err := r.ruleSet()
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

func (s *Store) deactivate(key ruleset.Key, tenant string) error {
	var result []row
	_, err := s.client.From(table).
		Update(map[string]interface{}{"is_active": false}, "", "").
		Eq("key", string(key)).
		Eq("tenant_id", tenant).
		Eq("is_active", "true").
		ExecuteTo(&result)
	return err
}

func (s *Store) CreateVersion(_ context.Context, rs *ruleset.RuleSet) (*ruleset.RuleSet, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	existing, err := s.versions(rs.Key, rs.TenantID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest version: %w", err)
	}

	created := *rs
	created.Version = 1
	if len(existing) > 0 {
		created.Version = existing[0].Version + 1
	}

	if created.IsActive {
		if err := s.deactivate(created.Key, created.TenantID); err != nil {
			return nil, fmt.Errorf("failed to deactivate previous version: %w", err)
		}
	}

	var result []row
	_, err = s.client.From(table).
		Insert(toRow(&created), false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule set: %w", err)
	}
	return &created, nil
}

func (s *Store) Activate(_ context.Context, key ruleset.Key, tenant string, version int) (*ruleset.RuleSet, error) {
	var rows []row
	_, err := s.client.From(table).
		Select("*", "", false).
		Eq("key", string(key)).
		Eq("tenant_id", tenant).
		Eq("version", strconv.Itoa(version)).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s v%d for tenant %q", store.ErrNotFound, key, version, tenant)
	}
	target, err := rows[0].ruleSet()
	if err != nil {
		return nil, err
	}

	if err := s.deactivate(key, tenant); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	var result []row
	_, err = s.client.From(table).
		Update(map[string]interface{}{"is_active": true}, "", "").
		Eq("id", target.ID.String()).
		ExecuteTo(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to activate rule set: %w", err)
	}
	target.IsActive = true
	return target, nil
}
