package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
)

const (
	DefaultInitialDelay = 5 * time.Second
	DefaultInterval     = 5 * time.Minute
	DefaultConcurrency  = 64
)

// ErrCycleInFlight is returned when a cycle is requested while another
// one is still running. Cycles are serialized, never queued.
var ErrCycleInFlight = errors.New("check cycle already in progress")

// Prober is the one probe kind the runner fans out.
type Prober interface {
	Probe(ctx context.Context, t domain.Target) domain.CheckResult
}

// Runner drives check cycles: an initial pass shortly after startup,
// then one per tick. The timer loop and the manual trigger share RunCycle.
type Runner struct {
	Logger       *zap.Logger
	Targets      repo.TargetStore
	Results      repo.ResultStore
	Prober       Prober
	InitialDelay time.Duration
	Interval     time.Duration
	Concurrency  int

	inFlight atomic.Bool
	now      func() time.Time // overridable in tests
}

func NewRunner(
	logger *zap.Logger,
	ts repo.TargetStore,
	rs repo.ResultStore,
	prober Prober,
	initialDelay, interval time.Duration,
	concurrency int,
) *Runner {
	if initialDelay < 0 {
		initialDelay = DefaultInitialDelay
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		Logger:       logger,
		Targets:      ts,
		Results:      rs,
		Prober:       prober,
		InitialDelay: initialDelay,
		Interval:     interval,
		Concurrency:  concurrency,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run loops until ctx is cancelled. A cycle that is underway when ctx
// is cancelled finishes and persists before Run returns; only the wait
// between cycles is interruptible.
func (r *Runner) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.InitialDelay):
	}
	r.cycle(ctx)

	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	if _, err := r.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
		r.Logger.Warn("cycle_failed", zap.Error(err))
	}
}

// RunCycle probes every active target that is due and persists the
// whole batch in one append. At-most-once: a failed append drops the
// batch. Individual probe failures are data, never cycle errors.
func (r *Runner) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return domain.CycleSummary{}, ErrCycleInFlight
	}
	defer r.inFlight.Store(false)

	// In-flight probes and the final append must survive a shutdown
	// cancellation; each probe is bounded by its own budget anyway.
	cctx := context.WithoutCancel(ctx)

	targets, err := r.Targets.ListActive(ctx)
	if err != nil {
		return domain.CycleSummary{}, fmt.Errorf("list active targets: %w", err)
	}
	due, err := r.filterDue(ctx, targets)
	if err != nil {
		return domain.CycleSummary{}, err
	}
	if len(due) == 0 {
		r.Logger.Debug("cycle_empty", zap.Int("active", len(targets)))
		return domain.CycleSummary{}, nil
	}

	results := make([]domain.CheckResult, len(due))
	workers := r.Concurrency
	if len(due) < workers {
		workers = len(due)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, tgt := range due {
		i, tgt := i, tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.Prober.Probe(cctx, tgt)
		}()
	}
	wg.Wait()

	if err := r.Results.AppendBatch(cctx, results); err != nil {
		return domain.CycleSummary{}, fmt.Errorf("append check batch: %w", err)
	}

	summary := tally(results)
	r.Logger.Info("cycle_completed",
		zap.Int("total", summary.Total),
		zap.Int("up", summary.Up),
		zap.Int("down", summary.Down),
		zap.Int("error", summary.Error),
	)
	return summary, nil
}

// filterDue keeps targets whose last check is at least their configured
// interval old. Never-checked targets are always due.
func (r *Runner) filterDue(ctx context.Context, targets []domain.Target) ([]domain.Target, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	last, err := r.Results.LastCheckedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last check times: %w", err)
	}
	now := r.now()
	due := make([]domain.Target, 0, len(targets))
	for _, t := range targets {
		at, ok := last[t.ID]
		if !ok || now.Sub(at) >= t.Interval() {
			due = append(due, t)
		}
	}
	return due, nil
}

func tally(results []domain.CheckResult) domain.CycleSummary {
	s := domain.CycleSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.StatusUp:
			s.Up++
		case domain.StatusDown:
			s.Down++
		case domain.StatusError:
			s.Error++
		}
	}
	return s
}
