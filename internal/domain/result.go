package domain

import "time"

// CheckResult is the outcome of one probe. Append-only once written.
//
// StatusCode is a pointer so "no response received" is distinguishable
// from status 0: up and down always carry a code, error carries one only
// when an HTTP response arrived before classification failed.
type CheckResult struct {
	TargetID       TargetID  `json:"target_id"`
	Status         Status    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	StatusCode     *int      `json:"status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// CycleSummary is the only per-cycle output the scheduler exposes.
type CycleSummary struct {
	Total int `json:"total"`
	Up    int `json:"up"`
	Down  int `json:"down"`
	Error int `json:"error"`
}
