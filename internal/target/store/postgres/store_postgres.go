// Package postgres persists targets in PostgreSQL via a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftgate/internal/target"
	"driftgate/internal/target/store"
)

// PostgresStore is the production target store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New constructs a PostgreSQL-backed target store.
func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS targets (
	scope_key  TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	path       TEXT        NOT NULL DEFAULT '',
	sha        TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	eliminate  BOOLEAN     NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (scope_key, kind, name)
)`

// Migrate creates the targets table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate targets table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, scope target.Scope, kind, name string) (*target.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT kind, name, path, sha, data, eliminate FROM targets
		 WHERE scope_key = $1 AND kind = $2 AND name = $3`,
		scope.Key(), kind, name)

	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Set(ctx context.Context, scope target.Scope, t target.Target) error {
	data, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("encode target payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO targets (scope_key, kind, name, path, sha, data, eliminate, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (scope_key, kind, name)
		 DO UPDATE SET path = $4, sha = $5, data = $6, eliminate = $7, updated_at = NOW()`,
		scope.Key(), t.Kind, t.Name, t.Path, t.Sha, data, t.Eliminate)
	if err != nil {
		return fmt.Errorf("set target: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, scope target.Scope, kind, name string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM targets WHERE scope_key = $1 AND kind = $2 AND name = $3`,
		scope.Key(), kind, name)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, scope target.Scope) ([]target.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, name, path, sha, data, eliminate FROM targets
		 WHERE scope_key = $1 ORDER BY kind, name`,
		scope.Key())
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []target.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*target.Target, error) {
	var (
		t    target.Target
		data []byte
	)
	if err := row.Scan(&t.Kind, &t.Name, &t.Path, &t.Sha, &data, &t.Eliminate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &t.Data); err != nil {
		return nil, fmt.Errorf("decode target payload: %w", err)
	}
	return &t, nil
}

var _ target.Store = (*PostgresStore)(nil)
