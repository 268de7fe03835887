// Package stats derives rolling health metrics from raw check history.
// Every function is pure: same history and same now produce the same
// output, and the input slice is never mutated (sorting happens on a
// private copy).
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/notsopreety/uptime-monitor/internal/domain"
)

// DefaultAverageWindow is how many recent up results feed the rolling
// average latency.
const DefaultAverageWindow = 10

// HourlyBucketCount is the fixed width of the charting series.
const HourlyBucketCount = 24

// Breakdown counts results by status inside a window.
type Breakdown struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Error int `json:"error"`
}

func (b Breakdown) Total() int { return b.Up + b.Down + b.Error }

// Bucket is one hour-wide slice of the charting series. UptimePercent
// and AvgResponseTimeMS are nil when the bucket holds no usable data;
// nil is "no data", distinct from zero.
type Bucket struct {
	Start             time.Time `json:"start"`
	Total             int       `json:"total"`
	Up                int       `json:"up"`
	Down              int       `json:"down"`
	Error             int       `json:"error"`
	UptimePercent     *int      `json:"uptime_percent"`
	AvgResponseTimeMS *int64    `json:"avg_response_time_ms"`
}

// UptimePercent computes the share of up results with CheckedAt in
// [now-window, now), rounded to the nearest whole percent. The second
// return is false when the window holds no results at all.
func UptimePercent(results []domain.CheckResult, now time.Time, window time.Duration) (int, bool) {
	b := StatusBreakdown(results, now, window)
	total := b.Total()
	if total == 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(b.Up) / float64(total))), true
}

// StatusBreakdown counts up/down/error results in [now-window, now).
func StatusBreakdown(results []domain.CheckResult, now time.Time, window time.Duration) Breakdown {
	var b Breakdown
	start := now.Add(-window)
	for _, r := range results {
		if r.CheckedAt.Before(start) || !r.CheckedAt.Before(now) {
			continue
		}
		switch r.Status {
		case domain.StatusUp:
			b.Up++
		case domain.StatusDown:
			b.Down++
		case domain.StatusError:
			b.Error++
		}
	}
	return b
}

// AverageResponseTime is the mean latency of the n most recent up
// results, rounded to the nearest millisecond. False means no up result
// exists to average over. n <= 0 falls back to DefaultAverageWindow.
func AverageResponseTime(results []domain.CheckResult, n int) (int64, bool) {
	if n <= 0 {
		n = DefaultAverageWindow
	}
	sorted := sortedNewestFirst(results)

	var sum int64
	var count int
	for _, r := range sorted {
		if r.Status != domain.StatusUp {
			continue
		}
		sum += r.ResponseTimeMS
		count++
		if count == n {
			break
		}
	}
	if count == 0 {
		return 0, false
	}
	return int64(math.Round(float64(sum) / float64(count))), true
}

// HourlyBuckets slices the 24 hours ending at now into 24 absolute
// hour-wide buckets, oldest first. A result lands in the bucket covering
// its CheckedAt; bucketing is by elapsed-hour offset, so histories that
// straddle day or month boundaries attribute correctly.
func HourlyBuckets(results []domain.CheckResult, now time.Time) []Bucket {
	end := now.Truncate(time.Hour).Add(time.Hour)
	start := end.Add(-HourlyBucketCount * time.Hour)

	buckets := make([]Bucket, HourlyBucketCount)
	latencySums := make([]int64, HourlyBucketCount)
	for i := range buckets {
		buckets[i].Start = start.Add(time.Duration(i) * time.Hour)
	}

	for _, r := range results {
		if r.CheckedAt.Before(start) || !r.CheckedAt.Before(end) {
			continue
		}
		i := int(r.CheckedAt.Sub(start) / time.Hour)
		buckets[i].Total++
		switch r.Status {
		case domain.StatusUp:
			buckets[i].Up++
			latencySums[i] += r.ResponseTimeMS
		case domain.StatusDown:
			buckets[i].Down++
		case domain.StatusError:
			buckets[i].Error++
		}
	}

	for i := range buckets {
		if buckets[i].Total > 0 {
			pct := int(math.Round(100 * float64(buckets[i].Up) / float64(buckets[i].Total)))
			buckets[i].UptimePercent = &pct
		}
		if buckets[i].Up > 0 {
			avg := int64(math.Round(float64(latencySums[i]) / float64(buckets[i].Up)))
			buckets[i].AvgResponseTimeMS = &avg
		}
	}
	return buckets
}

func sortedNewestFirst(results []domain.CheckResult) []domain.CheckResult {
	cp := make([]domain.CheckResult, len(results))
	copy(cp, results)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].CheckedAt.After(cp[j].CheckedAt) })
	return cp
}
