// Package sqlite is the embedded default persistence adapter, backed by
// the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file and migrates the schema.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id                     TEXT PRIMARY KEY,
	url                    TEXT NOT NULL,
	check_interval_seconds INTEGER NOT NULL,
	active                 INTEGER NOT NULL,
	created_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS check_results (
	target_id        TEXT NOT NULL,
	status           TEXT NOT NULL,
	response_time_ms INTEGER NOT NULL,
	status_code      INTEGER,
	error_message    TEXT NOT NULL DEFAULT '',
	checked_at       TEXT NOT NULL,
	FOREIGN KEY(target_id) REFERENCES targets(id)
);
CREATE INDEX IF NOT EXISTS idx_check_results_target_checked
	ON check_results (target_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_check_results_checked
	ON check_results (checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, url, check_interval_seconds, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(t.ID), t.URL, t.CheckIntervalSeconds, boolToInt(t.Active), encodeTime(t.CreatedAt),
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
		 FROM targets WHERE active = 1 ORDER BY created_at, id`)
}

func (s *Store) listTargets(ctx context.Context, query string) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, check_interval_seconds, active, created_at
		 FROM targets WHERE id = ?`, string(id))
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET url = ?, check_interval_seconds = ?, active = ? WHERE id = ?`,
		t.URL, t.CheckIntervalSeconds, boolToInt(t.Active), string(t.ID),
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) AppendBatch(ctx context.Context, batch []domain.CheckResult) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO check_results (target_id, status, response_time_ms, status_code, error_message, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		var code sql.NullInt64
		if r.StatusCode != nil {
			code = sql.NullInt64{Int64: int64(*r.StatusCode), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			string(r.TargetID), string(r.Status), r.ResponseTimeMS, code, r.ErrorMessage, encodeTime(r.CheckedAt),
		); err != nil {
			return fmt.Errorf("insert check result: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListByTarget(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.CheckResult, error) {
	return s.listResults(ctx,
		`SELECT target_id, status, response_time_ms, status_code, error_message, checked_at
		 FROM check_results WHERE target_id = ? AND checked_at >= ?
		 ORDER BY checked_at DESC`,
		string(id), encodeTime(since))
}

func (s *Store) ListAll(ctx context.Context, since time.Time) ([]domain.CheckResult, error) {
	return s.listResults(ctx,
		`SELECT target_id, status, response_time_ms, status_code, error_message, checked_at
		 FROM check_results WHERE checked_at >= ?
		 ORDER BY checked_at DESC`,
		encodeTime(since))
}

func (s *Store) listResults(ctx context.Context, query string, args ...any) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var r domain.CheckResult
		var tid, status, checkedAt string
		var code sql.NullInt64
		if err := rows.Scan(&tid, &status, &r.ResponseTimeMS, &code, &r.ErrorMessage, &checkedAt); err != nil {
			return nil, err
		}
		r.TargetID = domain.TargetID(tid)
		r.Status = domain.Status(status)
		if code.Valid {
			v := int(code.Int64)
			r.StatusCode = &v
		}
		at, err := decodeTime(checkedAt)
		if err != nil {
			return nil, err
		}
		r.CheckedAt = at
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LastCheckedAt(ctx context.Context) (map[domain.TargetID]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, MAX(checked_at) FROM check_results GROUP BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("query last checked: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.TargetID]time.Time)
	for rows.Next() {
		var tid, at string
		if err := rows.Scan(&tid, &at); err != nil {
			return nil, err
		}
		parsed, err := decodeTime(at)
		if err != nil {
			return nil, err
		}
		out[domain.TargetID(tid)] = parsed
	}
	return out, rows.Err()
}

// ---- helpers ----

type scannable interface{ Scan(dest ...any) error }

func scanTarget(row scannable) (domain.Target, error) {
	var t domain.Target
	var id, createdAt string
	var active int
	if err := row.Scan(&id, &t.URL, &t.CheckIntervalSeconds, &active, &createdAt); err != nil {
		return domain.Target{}, err
	}
	t.ID = domain.TargetID(id)
	t.Active = active != 0
	at, err := decodeTime(createdAt)
	if err != nil {
		return domain.Target{}, err
	}
	t.CreatedAt = at
	return t, nil
}

// Fixed-width UTC layout: unlike RFC3339Nano it never trims trailing
// zeros, so lexical comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
