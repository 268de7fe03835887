package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo/memory"
	"github.com/notsopreety/uptime-monitor/internal/stats"
)

// --- fakes ---

// scriptedProber answers by URL so each target gets a fixed outcome.
type scriptedProber struct {
	mu      sync.Mutex
	byURL   map[string]domain.CheckResult
	probed  []string
	started chan struct{} // one send per probe start, when set
	release chan struct{} // probes block on it until closed, when set
}

func (f *scriptedProber) Probe(ctx context.Context, t domain.Target) domain.CheckResult {
	f.mu.Lock()
	f.probed = append(f.probed, t.URL)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	out := f.byURL[t.URL]
	out.TargetID = t.ID
	if out.CheckedAt.IsZero() {
		out.CheckedAt = time.Now().UTC()
	}
	return out
}

func (f *scriptedProber) probedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probed...)
}

func upResult(code int, latency int64) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusUp, StatusCode: &code, ResponseTimeMS: latency}
}

func downResult(code int) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusDown, StatusCode: &code, ErrorMessage: "HTTP 500 Internal Server Error", ResponseTimeMS: 12}
}

func errorResult(msg string) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusError, ErrorMessage: msg, ResponseTimeMS: 30000}
}

type failingTargets struct{ memory.Store }

func (f *failingTargets) ListActive(ctx context.Context) ([]domain.Target, error) {
	return nil, errors.New("registry unavailable")
}

type failingResults struct {
	*memory.Store
}

func (f *failingResults) AppendBatch(ctx context.Context, batch []domain.CheckResult) error {
	return errors.New("disk full")
}

func addTarget(t *testing.T, store *memory.Store, id, url string, active bool) {
	t.Helper()
	err := store.Add(context.Background(), &domain.Target{
		ID: domain.TargetID(id), URL: url, CheckIntervalSeconds: 60, Active: active,
	})
	if err != nil {
		t.Fatalf("add target %s: %v", id, err)
	}
}

func newRunner(store *memory.Store, p Prober) *Runner {
	return NewRunner(zap.NewNop(), store, store, p, 0, time.Minute, 8)
}

// --- tests ---

func TestRunCycle_AllUp(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)
	addTarget(t, store, "b", "https://b.example", true)
	addTarget(t, store, "c", "https://c.example", true)

	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://a.example": upResult(200, 40),
		"https://b.example": upResult(200, 50),
		"https://c.example": upResult(200, 60),
	}}
	r := newRunner(store, p)

	sum, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	want := domain.CycleSummary{Total: 3, Up: 3}
	if sum != want {
		t.Fatalf("want %+v, got %+v", want, sum)
	}

	all, err := store.ListAll(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 persisted results, got %d", len(all))
	}
	pct, ok := stats.UptimePercent(all, time.Now().UTC(), time.Hour)
	if !ok || pct != 100 {
		t.Fatalf("want 100%% rolling uptime, got %d (ok=%v)", pct, ok)
	}
}

func TestRunCycle_MixedOutcomes(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)
	addTarget(t, store, "b", "https://b.example", true)
	addTarget(t, store, "c", "https://c.example", true)

	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://a.example": errorResult("Request timeout (30s)"),
		"https://b.example": downResult(500),
		"https://c.example": upResult(200, 45),
	}}
	r := newRunner(store, p)

	sum, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	want := domain.CycleSummary{Total: 3, Up: 1, Down: 1, Error: 1}
	if sum != want {
		t.Fatalf("want %+v, got %+v", want, sum)
	}

	all, _ := store.ListAll(context.Background(), time.Time{})
	pct, ok := stats.UptimePercent(all, time.Now().UTC(), time.Hour)
	if !ok || pct != 33 {
		t.Fatalf("want 33%% rolling uptime, got %d (ok=%v)", pct, ok)
	}
}

func TestRunCycle_SkipsInactiveTargets(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)
	addTarget(t, store, "b", "https://b.example", true)
	addTarget(t, store, "paused", "https://paused.example", false)

	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://a.example": upResult(200, 10),
		"https://b.example": upResult(200, 10),
	}}
	r := newRunner(store, p)

	sum, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if sum.Total != 2 {
		t.Fatalf("inactive target must not count, got %+v", sum)
	}
	for _, url := range p.probedURLs() {
		if url == "https://paused.example" {
			t.Fatalf("inactive target was probed")
		}
	}
	got, _ := store.ListByTarget(context.Background(), "paused", time.Time{})
	if len(got) != 0 {
		t.Fatalf("inactive target has persisted results: %+v", got)
	}
}

func TestRunCycle_SkipsTargetNotYetDue(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "fresh", "https://fresh.example", true)
	addTarget(t, store, "stale", "https://stale.example", true)

	now := time.Now().UTC()
	seed := []domain.CheckResult{
		{TargetID: "fresh", Status: domain.StatusUp, CheckedAt: now.Add(-10 * time.Second)},
		{TargetID: "stale", Status: domain.StatusUp, CheckedAt: now.Add(-10 * time.Minute)},
	}
	if err := store.AppendBatch(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://stale.example": upResult(200, 10),
	}}
	r := newRunner(store, p)

	sum, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if sum.Total != 1 {
		t.Fatalf("only the stale target is due, got %+v", sum)
	}
	if urls := p.probedURLs(); len(urls) != 1 || urls[0] != "https://stale.example" {
		t.Fatalf("wrong targets probed: %v", urls)
	}
}

func TestRunCycle_RegistryFailureAbortsWithoutWrites(t *testing.T) {
	ft := &failingTargets{}
	results := memory.New()
	r := NewRunner(zap.NewNop(), ft, results, &scriptedProber{}, 0, time.Minute, 8)

	_, err := r.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("want error on registry failure")
	}
	all, _ := results.ListAll(context.Background(), time.Time{})
	if len(all) != 0 {
		t.Fatalf("no writes may happen on an aborted cycle, got %d", len(all))
	}
}

func TestRunCycle_PersistenceFailureDropsBatch(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)

	fr := &failingResults{Store: store}
	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://a.example": upResult(200, 10),
	}}
	r := NewRunner(zap.NewNop(), store, fr, p, 0, time.Minute, 8)

	_, err := r.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("want error on persistence failure")
	}
	// The batch was dropped, not retried into the backing store.
	all, _ := store.ListAll(context.Background(), time.Time{})
	if len(all) != 0 {
		t.Fatalf("dropped batch leaked into store: %d results", len(all))
	}
}

func TestRunCycle_SerializedNotQueued(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)

	p := &scriptedProber{
		byURL:   map[string]domain.CheckResult{"https://a.example": upResult(200, 10)},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := newRunner(store, p)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunCycle(context.Background())
		done <- err
	}()
	<-p.started // first cycle is now mid-probe

	if _, err := r.RunCycle(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("want ErrCycleInFlight, got %v", err)
	}

	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// With the first cycle finished a new one is allowed again, and the
	// target is no longer due, so the summary is empty.
	sum, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("follow-up cycle: %v", err)
	}
	if sum.Total != 0 {
		t.Fatalf("freshly checked target should not be due, got %+v", sum)
	}
}

func TestRun_TickerDrivesCycles(t *testing.T) {
	store := memory.New()
	addTarget(t, store, "a", "https://a.example", true)

	p := &scriptedProber{byURL: map[string]domain.CheckResult{
		"https://a.example": upResult(200, 10),
	}}
	r := NewRunner(zap.NewNop(), store, store, p, time.Millisecond, time.Hour, 8)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(finished)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if len(p.probedURLs()) >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("initial cycle never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
