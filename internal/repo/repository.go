package repo

import (
	"context"
	"errors"
	"time"

	"github.com/notsopreety/uptime-monitor/internal/domain"
)

// ErrNotFound is returned by lookups for unknown target IDs.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — memory, sqlite and postgres adapters implement
// both; the engine never does read-modify-write through them.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]domain.Target, error)
	// ListActive returns only targets with Active=true, in creation order.
	ListActive(ctx context.Context) ([]domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) error
}

type ResultStore interface {
	// AppendBatch writes one cycle's results as a unit: afterwards either
	// all of them are visible or none are.
	AppendBatch(ctx context.Context, batch []domain.CheckResult) error
	// ListByTarget returns results with CheckedAt >= since, newest first.
	ListByTarget(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.CheckResult, error)
	// ListAll is ListByTarget across every target, newest first.
	ListAll(ctx context.Context, since time.Time) ([]domain.CheckResult, error)
	// LastCheckedAt reports the most recent CheckedAt per target; targets
	// with no history are absent from the map.
	LastCheckedAt(ctx context.Context) (map[domain.TargetID]time.Time, error)
}
