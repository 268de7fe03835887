// Package postgres is the pgx-backed persistence adapter for shared
// deployments; the schema is created on connect.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id                     TEXT PRIMARY KEY,
	url                    TEXT NOT NULL,
	check_interval_seconds INTEGER NOT NULL,
	active                 BOOLEAN NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS check_results (
	target_id        TEXT NOT NULL,
	status           TEXT NOT NULL,
	response_time_ms BIGINT NOT NULL,
	status_code      INTEGER,
	error_message    TEXT NOT NULL DEFAULT '',
	checked_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_results_target_checked
	ON check_results (target_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_check_results_checked
	ON check_results (checked_at DESC);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, url, check_interval_seconds, active, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(t.ID), t.URL, t.CheckIntervalSeconds, t.Active, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	return s.listTargets(ctx,
		`SELECT id, url, check_interval_seconds, active, created_at
		 FROM targets ORDER BY created_at, id`)
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	return s.listTargets(ctx,
		`SELECT id, url, check_interval_seconds, active, created_at
		 FROM targets WHERE active ORDER BY created_at, id`)
}

func (s *Store) listTargets(ctx context.Context, query string) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		var id string
		if err := rows.Scan(&id, &t.URL, &t.CheckIntervalSeconds, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ID = domain.TargetID(id)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	var t domain.Target
	var rawID string
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, check_interval_seconds, active, created_at
		 FROM targets WHERE id = $1`, string(id)).
		Scan(&rawID, &t.URL, &t.CheckIntervalSeconds, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(rawID)
	return &t, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET url = $1, check_interval_seconds = $2, active = $3 WHERE id = $4`,
		t.URL, t.CheckIntervalSeconds, t.Active, string(t.ID),
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

// AppendBatch bulk-loads one cycle's results with CopyFrom; the copy is
// a single operation, so the batch lands atomically.
func (s *Store) AppendBatch(ctx context.Context, batch []domain.CheckResult) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(batch))
	for _, r := range batch {
		var code *int
		if r.StatusCode != nil {
			v := *r.StatusCode
			code = &v
		}
		rows = append(rows, []any{
			string(r.TargetID), string(r.Status), r.ResponseTimeMS, code, r.ErrorMessage, r.CheckedAt,
		})
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"check_results"},
		[]string{"target_id", "status", "response_time_ms", "status_code", "error_message", "checked_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy check results: %w", err)
	}
	return nil
}

func (s *Store) ListByTarget(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.CheckResult, error) {
	return s.listResults(ctx,
		`SELECT target_id, status, response_time_ms, status_code, error_message, checked_at
		 FROM check_results WHERE target_id = $1 AND checked_at >= $2
		 ORDER BY checked_at DESC`,
		string(id), since)
}

func (s *Store) ListAll(ctx context.Context, since time.Time) ([]domain.CheckResult, error) {
	return s.listResults(ctx,
		`SELECT target_id, status, response_time_ms, status_code, error_message, checked_at
		 FROM check_results WHERE checked_at >= $1
		 ORDER BY checked_at DESC`,
		since)
}

func (s *Store) listResults(ctx context.Context, query string, args ...any) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var r domain.CheckResult
		var tid, status string
		if err := rows.Scan(&tid, &status, &r.ResponseTimeMS, &r.StatusCode, &r.ErrorMessage, &r.CheckedAt); err != nil {
			return nil, err
		}
		r.TargetID = domain.TargetID(tid)
		r.Status = domain.Status(status)
		r.CheckedAt = r.CheckedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LastCheckedAt(ctx context.Context) (map[domain.TargetID]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, MAX(checked_at) FROM check_results GROUP BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("query last checked: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.TargetID]time.Time)
	for rows.Next() {
		var tid string
		var at time.Time
		if err := rows.Scan(&tid, &at); err != nil {
			return nil, err
		}
		out[domain.TargetID(tid)] = at.UTC()
	}
	return out, rows.Err()
}
