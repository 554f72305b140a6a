// Package reader provides the read side of the audit log for the triage CLI.
//
// Commands never touch backends directly for reads; they go through this
// package so the same payloads feed json, table, yaml and TUI rendering.
package reader

import "time"

// StatusCounts tallies audit rows by status.
type StatusCounts struct {
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	MoveFailed int `json:"move_failed"`
}

// Total returns the sum of all statuses.
func (c StatusCounts) Total() int {
	return c.Processed + c.Failed + c.MoveFailed
}

// ClassCount is the number of processed rows predicted as one class.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// ReasonCount is the number of failed rows sharing one error message.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// DayStats summarizes one day of the audit log.
type DayStats struct {
	Day     string       `json:"day"`
	Backend string       `json:"backend"`
	Rows    int          `json:"rows"`
	Items   int          `json:"items"`
	Status  StatusCounts `json:"status"`
	// Stranded counts items whose latest row is move_failed; they are
	// still in New and will be picked up by the next run.
	Stranded int           `json:"stranded"`
	Classes  []ClassCount  `json:"classes"`
	Reasons  []ReasonCount `json:"reasons"`
	FirstAt  *time.Time    `json:"first_at"`
	LastAt   *time.Time    `json:"last_at"`
}
