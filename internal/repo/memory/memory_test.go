package memory

import (
	"context"
	"testing"
	"time"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
)

func TestStore_AddAssignsIDAndCopies(t *testing.T) {
	ctx := context.Background()
	m := New()

	tgt := &domain.Target{URL: "https://example.com", CheckIntervalSeconds: 60, Active: true}
	if err := m.Add(ctx, tgt); err != nil {
		t.Fatalf("add: %v", err)
	}
	if tgt.ID == "" || tgt.CreatedAt.IsZero() {
		t.Fatalf("id/created_at not assigned: %+v", tgt)
	}

	// Mutating the caller's struct must not leak into the store.
	tgt.URL = "https://mutated.example.com"
	got, err := m.Get(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != "https://example.com" {
		t.Fatalf("store shares memory with caller: %+v", got)
	}
}

func TestStore_ListActiveFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	m := New()

	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	add := func(id string, active bool, at time.Time) {
		err := m.Add(ctx, &domain.Target{
			ID: domain.TargetID(id), URL: "https://" + id, CheckIntervalSeconds: 60,
			Active: active, CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	add("b", true, base.Add(time.Minute))
	add("a", true, base)
	add("c", false, base.Add(2*time.Minute))

	active, err := m.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "b" {
		t.Fatalf("want [a b], got %+v", active)
	}

	all, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 targets, got %d", len(all))
	}
}

func TestStore_UpdateUnknownTarget(t *testing.T) {
	m := New()
	err := m.Update(context.Background(), &domain.Target{ID: "nope"})
	if err != repo.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStore_ResultsSinceFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	batch := []domain.CheckResult{
		{TargetID: "t1", Status: domain.StatusUp, CheckedAt: base},
		{TargetID: "t1", Status: domain.StatusDown, CheckedAt: base.Add(2 * time.Hour)},
		{TargetID: "t2", Status: domain.StatusUp, CheckedAt: base.Add(time.Hour)},
	}
	if err := m.AppendBatch(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := m.ListByTarget(ctx, "t1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(got) != 1 || got[0].Status != domain.StatusDown {
		t.Fatalf("since filter wrong: %+v", got)
	}

	all, err := m.ListAll(ctx, base)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 results, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CheckedAt.After(all[i-1].CheckedAt) {
			t.Fatalf("results not newest-first: %+v", all)
		}
	}
}

func TestStore_LastCheckedAt(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	err := m.AppendBatch(ctx, []domain.CheckResult{
		{TargetID: "t1", Status: domain.StatusUp, CheckedAt: base},
		{TargetID: "t1", Status: domain.StatusUp, CheckedAt: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	last, err := m.LastCheckedAt(ctx)
	if err != nil {
		t.Fatalf("last checked: %v", err)
	}
	if !last["t1"].Equal(base.Add(time.Hour)) {
		t.Fatalf("want latest timestamp, got %v", last["t1"])
	}
	if _, ok := last["t2"]; ok {
		t.Fatalf("never-checked target must be absent")
	}
}
