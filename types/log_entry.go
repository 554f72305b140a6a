package types

import (
	"strconv"
	"time"
)

// Status is the audit status of one item in one run.
type Status string

const (
	// StatusProcessed means the item was classified and moved to Processed.
	StatusProcessed Status = "processed"
	// StatusFailed means classification failed and the item was moved to Failed.
	StatusFailed Status = "failed"
	// StatusMoveFailed means the item could not be relocated and is still in New.
	StatusMoveFailed Status = "move_failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessed, StatusFailed, StatusMoveFailed:
		return true
	}
	return false
}

// LogEntry is one append-only audit record.
type LogEntry struct {
	Timestamp      time.Time
	OriginalKey    string
	DestinationKey string
	Status         Status
	PredictedClass string
	// PredictedClassIndex is nil when there is no prediction.
	PredictedClassIndex *int
	ProbabilitiesJSON   string
	ErrorMessage        string
}

// NewLogEntry builds the audit record for item after a relocate attempt.
// moveErr, when non-nil, forces StatusMoveFailed regardless of the outcome.
func NewLogEntry(now time.Time, item *Item, outcome Outcome, destKey string, moveErr error) *LogEntry {
	entry := &LogEntry{
		Timestamp:      now.UTC(),
		OriginalKey:    item.Key,
		DestinationKey: destKey,
		Status:         outcome.Status(),
		ErrorMessage:   outcome.Reason,
	}
	if outcome.Prediction != nil {
		idx := outcome.Prediction.ClassIndex
		entry.PredictedClass = outcome.Prediction.Class
		entry.PredictedClassIndex = &idx
		entry.ProbabilitiesJSON = outcome.Prediction.ProbabilitiesJSON()
	}
	if moveErr != nil {
		entry.Status = StatusMoveFailed
		if entry.ErrorMessage != "" {
			entry.ErrorMessage += "; "
		}
		entry.ErrorMessage += "move failed: " + moveErr.Error()
	}
	return entry
}

// ClassIndexString returns the class index as text, or "" when absent.
func (e *LogEntry) ClassIndexString() string {
	if e.PredictedClassIndex == nil {
		return ""
	}
	return strconv.Itoa(*e.PredictedClassIndex)
}
