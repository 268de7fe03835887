package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	results []domain.CheckResult
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		results: make([]domain.CheckResult, 0, 128),
	}
}

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(false), nil
}

func (m *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(true), nil
}

func (m *Store) listLocked(activeOnly bool) []domain.Target {
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) AppendBatch(ctx context.Context, batch []domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, batch...)
	return nil
}

func (m *Store) ListByTarget(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.CheckResult, error) {
	return m.list(func(r domain.CheckResult) bool { return r.TargetID == id && !r.CheckedAt.Before(since) })
}

func (m *Store) ListAll(ctx context.Context, since time.Time) ([]domain.CheckResult, error) {
	return m.list(func(r domain.CheckResult) bool { return !r.CheckedAt.Before(since) })
}

func (m *Store) list(keep func(domain.CheckResult) bool) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CheckResult, 0, len(m.results))
	for _, r := range m.results {
		if keep(r) {
			out = append(out, r)
		}
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	return out, nil
}

func (m *Store) LastCheckedAt(ctx context.Context) (map[domain.TargetID]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.TargetID]time.Time, len(m.targets))
	for _, r := range m.results {
		if cur, ok := out[r.TargetID]; !ok || r.CheckedAt.After(cur) {
			out[r.TargetID] = r.CheckedAt
		}
	}
	return out, nil
}
