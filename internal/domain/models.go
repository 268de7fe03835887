package domain

import "time"

type TargetID string

// MinCheckIntervalSeconds is the smallest allowed per-target check spacing.
const MinCheckIntervalSeconds = 60

type Target struct {
	ID                   TargetID  `json:"id"`
	URL                  string    `json:"url"`
	CheckIntervalSeconds int       `json:"check_interval_seconds"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"created_at"`
}

// Interval returns the configured per-target spacing as a duration.
func (t Target) Interval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// Status classifies the outcome of a single probe: the target answered
// with an ok response (up), answered with a non-ok response (down), or
// never produced a response at all (error).
type Status string

const (
	StatusUp    Status = "up"
	StatusDown  Status = "down"
	StatusError Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusDown, StatusError:
		return true
	}
	return false
}
