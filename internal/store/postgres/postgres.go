// Package postgres stores rule sets in a PostgreSQL rule_sets table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
)

// Schema creates the rule_sets table. The partial unique index is what keeps
// a single active version per (tenant, key) under concurrent writers.
const Schema = `
CREATE TABLE IF NOT EXISTS rule_sets (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	version    INTEGER NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT FALSE,
	payload    JSONB NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, key, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS rule_sets_one_active
	ON rule_sets (tenant_id, key) WHERE is_active;
`

const columns = "id, tenant_id, key, version, is_active, payload, created_by, created_at"

// lockQuery serializes writers of one (key, tenant) until the transaction ends.
const lockQuery = "SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))"

// Store implements store.Store on database/sql with the lib/pq driver.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the table and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate rule_sets: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRuleSet(row scanner) (*ruleset.RuleSet, error) {
	var (
		rs        ruleset.RuleSet
		key       string
		payload   []byte
		createdBy sql.NullString
	)
	if err := row.Scan(&rs.ID, &rs.TenantID, &key, &rs.Version, &rs.IsActive, &payload, &createdBy, &rs.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rs.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s v%d: %w", key, rs.Version, err)
	}
	rs.Key = ruleset.Key(key)
	rs.CreatedBy = createdBy.String
	return &rs, nil
}

func (s *Store) GetActive(ctx context.Context, key ruleset.Key, tenant string) (*ruleset.RuleSet, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM rule_sets WHERE key = $1 AND tenant_id = $2 AND is_active = true ORDER BY version DESC LIMIT 1",
		string(key), tenant)

	rs, err := scanRuleSet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active rule set: %w", err)
	}
	return rs, nil
}

func (s *Store) ListVersions(ctx context.Context, key ruleset.Key, tenant string) ([]*ruleset.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM rule_sets WHERE key = $1 AND tenant_id = $2 ORDER BY version DESC",
		string(key), tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}
	defer rows.Close()

	var out []*ruleset.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read rule set: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}
	return out, nil
}

func (s *Store) CreateVersion(ctx context.Context, rs *ruleset.RuleSet) (*ruleset.RuleSet, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	payload, err := json.Marshal(rs.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockQuery, string(rs.Key), rs.TenantID); err != nil {
		return nil, fmt.Errorf("failed to lock %s for tenant %q: %w", rs.Key, rs.TenantID, err)
	}

	var latest int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM rule_sets WHERE key = $1 AND tenant_id = $2",
		string(rs.Key), rs.TenantID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest version: %w", err)
	}

	if rs.IsActive {
		_, err = tx.ExecContext(ctx,
			"UPDATE rule_sets SET is_active = false WHERE key = $1 AND tenant_id = $2 AND is_active = true",
			string(rs.Key), rs.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate previous version: %w", err)
		}
	}

	created := *rs
	created.Version = latest + 1
	_, err = tx.ExecContext(ctx,
		"INSERT INTO rule_sets ("+columns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		created.ID, created.TenantID, string(created.Key), created.Version, created.IsActive, payload,
		sql.NullString{String: created.CreatedBy, Valid: created.CreatedBy != ""}, created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule set: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &created, nil
}

func (s *Store) Activate(ctx context.Context, key ruleset.Key, tenant string, version int) (*ruleset.RuleSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockQuery, string(key), tenant); err != nil {
		return nil, fmt.Errorf("failed to lock %s for tenant %q: %w", key, tenant, err)
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+columns+" FROM rule_sets WHERE key = $1 AND tenant_id = $2 AND version = $3",
		string(key), tenant, version)
	target, err := scanRuleSet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s v%d for tenant %q", store.ErrNotFound, key, version, tenant)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}

	// Deactivate first: rule_sets_one_active is checked row by row.
	_, err = tx.ExecContext(ctx,
		"UPDATE rule_sets SET is_active = false WHERE key = $1 AND tenant_id = $2 AND is_active = true",
		string(key), tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate previous version: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE rule_sets SET is_active = true WHERE id = $1",
		target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate rule set: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	target.IsActive = true
	return target, nil
}
