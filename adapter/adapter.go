// Package adapter defines the run-completion notification boundary.
//
// Adapters publish a RunCompletedEvent to downstream systems once a run
// ends. Publishing is best-effort: a failed publish is reported to the
// caller but never changes the run's outcome.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/types"
)

// EventTypeRunCompleted is the only event type published.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	Version     string `json:"version"`
	EventType   string `json:"event_type"` // always "run_completed"
	RunID       string `json:"run_id"`
	Backend     string `json:"backend"`
	Day         string `json:"day"`
	Outcome     string `json:"outcome"` // completed, no_items, aborted, locked
	Discovered  int    `json:"discovered"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	MoveFailed  int    `json:"move_failed"`
	LogFailures int    `json:"log_failures"`
	DurationMs  int64  `json:"duration_ms"`
	Timestamp   string `json:"timestamp"` // ISO 8601
}

// NewRunCompletedEvent builds the event for a finished run's report.
func NewRunCompletedEvent(report *runtime.RunReport, now time.Time) *RunCompletedEvent {
	event := &RunCompletedEvent{
		Version:    types.Version,
		EventType:  EventTypeRunCompleted,
		RunID:      report.RunID,
		Backend:    report.Backend,
		Day:        report.Day,
		Outcome:    string(report.Outcome),
		DurationMs: report.DurationMs,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
	if c := report.Counts; c != nil {
		event.Discovered = c.Discovered
		event.Processed = c.Processed
		event.Failed = c.Failed
		event.MoveFailed = c.MoveFailed
		event.LogFailures = c.LogFailures
	}
	return event
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
