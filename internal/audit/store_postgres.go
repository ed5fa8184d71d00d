package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "driftgate/pkg/domain"
)

// PostgresStore persists events to the audit_events table. It uses
// database/sql so callers can share a *sql.DB with other components.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id             BIGSERIAL PRIMARY KEY,
	timestamp      TIMESTAMPTZ NOT NULL,
	workspace      TEXT NOT NULL,
	repo           TEXT NOT NULL,
	branch         TEXT NOT NULL DEFAULT '',
	commit_sha     TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	aspect_id      TEXT NOT NULL DEFAULT '',
	decision       TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	request_id     TEXT NOT NULL DEFAULT '',
	overall_pct    INT NOT NULL DEFAULT 0,
	diff_count     INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS audit_events_repo_idx ON audit_events (repo, timestamp DESC);
`

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (
			timestamp, workspace, repo, branch, commit_sha,
			action, aspect_id, decision, reason, request_id,
			overall_pct, diff_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	repoSlug := ""
	if !event.Repo.IsNil() {
		repoSlug = event.Repo.Slug()
	}
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		string(event.Workspace),
		repoSlug,
		event.Branch,
		event.CommitSha,
		event.Action,
		event.AspectID,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.OverallPercent,
		event.DiffCount,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRepo(ctx context.Context, repo id.RepoRef) ([]Event, error) {
	query := `
		SELECT timestamp, workspace, repo, branch, commit_sha,
			   action, aspect_id, decision, reason, request_id,
			   overall_pct, diff_count
		FROM audit_events
		WHERE repo = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, repo.Slug())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT timestamp, workspace, repo, branch, commit_sha,
			   action, aspect_id, decision, reason, request_id,
			   overall_pct, diff_count
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event     Event
			workspace string
			repoSlug  string
		)
		err := rows.Scan(
			&event.Timestamp,
			&workspace,
			&repoSlug,
			&event.Branch,
			&event.CommitSha,
			&event.Action,
			&event.AspectID,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.OverallPercent,
			&event.DiffCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Workspace = id.Workspace(workspace)
		if repoSlug != "" {
			repo, err := id.ParseRepoRef(repoSlug)
			if err != nil {
				return nil, fmt.Errorf("parse stored repo %q: %w", repoSlug, err)
			}
			event.Repo = repo
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
