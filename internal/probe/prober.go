package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/notsopreety/uptime-monitor/internal/domain"
)

// DefaultTimeout is the per-probe budget, enforced via context
// cancellation so DNS resolution and TLS handshakes are bounded too.
const DefaultTimeout = 30 * time.Second

// Prober performs one liveness check against a target. The *http.Client
// is shared process-wide and injected; it must not carry its own Timeout
// (the context deadline is the single source of truth).
type Prober struct {
	Client  *http.Client
	Timeout time.Duration
}

func New(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{Client: client, Timeout: timeout}
}

// Probe checks a single target and classifies the outcome. It never
// returns an error: every failure mode becomes a CheckResult with status
// down or error. Safe for concurrent use across targets.
func (p *Prober) Probe(ctx context.Context, t domain.Target) domain.CheckResult {
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.do(cctx, http.MethodHead, t.URL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		// Some servers reject HEAD outright; the GET answer decides.
		resp.Body.Close()
		resp, err = p.do(cctx, http.MethodGet, t.URL)
	}
	elapsed := elapsedMS(start)
	checkedAt := time.Now().UTC()

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("Request timeout (%ds)", int(p.Timeout.Seconds()))
		}
		return domain.CheckResult{
			TargetID:       t.ID,
			Status:         domain.StatusError,
			ResponseTimeMS: elapsed,
			ErrorMessage:   msg,
			CheckedAt:      checkedAt,
		}
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return domain.CheckResult{
			TargetID:       t.ID,
			Status:         domain.StatusUp,
			ResponseTimeMS: elapsed,
			StatusCode:     &code,
			CheckedAt:      checkedAt,
		}
	}
	return domain.CheckResult{
		TargetID:       t.ID,
		Status:         domain.StatusDown,
		ResponseTimeMS: elapsed,
		StatusCode:     &code,
		ErrorMessage:   "HTTP " + resp.Status,
		CheckedAt:      checkedAt,
	}
}

func (p *Prober) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return p.Client.Do(req)
}

// elapsedMS rounds to the nearest millisecond, not down.
func elapsedMS(start time.Time) int64 {
	return time.Since(start).Round(time.Millisecond).Milliseconds()
}
