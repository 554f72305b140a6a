package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/types"
)

// Reader aggregates audit log rows.
type Reader struct {
	log     storage.LogReader
	backend string
}

// New creates a reader over log. backend labels the results.
func New(log storage.LogReader, backend string) (*Reader, error) {
	if log == nil {
		return nil, errors.New("reader: log reader is required")
	}
	return &Reader{log: log, backend: backend}, nil
}

// Stats reads and summarizes the audit rows recorded for day.
// A day with no log yields zero counts, not an error.
func (r *Reader) Stats(ctx context.Context, day string) (*DayStats, error) {
	entries, err := r.log.ReadLog(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("read audit log for %s: %w", day, err)
	}
	stats := Summarize(day, entries)
	stats.Backend = r.backend
	return stats, nil
}

// Summarize aggregates entries. Rows are counted as recorded; Items and
// Stranded look only at the latest row per original key.
func Summarize(day string, entries []*types.LogEntry) *DayStats {
	stats := &DayStats{
		Day:     day,
		Rows:    len(entries),
		Classes: []ClassCount{},
		Reasons: []ReasonCount{},
	}

	classes := make(map[string]int)
	reasons := make(map[string]int)
	latest := make(map[string]*types.LogEntry)

	for _, e := range entries {
		switch e.Status {
		case types.StatusProcessed:
			stats.Status.Processed++
			if e.PredictedClass != "" {
				classes[e.PredictedClass]++
			}
		case types.StatusFailed:
			stats.Status.Failed++
			reasons[normalizeReason(e.ErrorMessage)]++
		case types.StatusMoveFailed:
			stats.Status.MoveFailed++
			reasons[normalizeReason(e.ErrorMessage)]++
		}

		if prev, ok := latest[e.OriginalKey]; !ok || !e.Timestamp.Before(prev.Timestamp) {
			latest[e.OriginalKey] = e
		}

		ts := e.Timestamp
		if stats.FirstAt == nil || ts.Before(*stats.FirstAt) {
			stats.FirstAt = &ts
		}
		if stats.LastAt == nil || ts.After(*stats.LastAt) {
			stats.LastAt = &ts
		}
	}

	stats.Items = len(latest)
	for _, e := range latest {
		if e.Status == types.StatusMoveFailed {
			stats.Stranded++
		}
	}

	for class, n := range classes {
		stats.Classes = append(stats.Classes, ClassCount{Class: class, Count: n})
	}
	sort.Slice(stats.Classes, func(i, j int) bool {
		if stats.Classes[i].Count != stats.Classes[j].Count {
			return stats.Classes[i].Count > stats.Classes[j].Count
		}
		return stats.Classes[i].Class < stats.Classes[j].Class
	})

	for reason, n := range reasons {
		stats.Reasons = append(stats.Reasons, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(stats.Reasons, func(i, j int) bool {
		if stats.Reasons[i].Count != stats.Reasons[j].Count {
			return stats.Reasons[i].Count > stats.Reasons[j].Count
		}
		return stats.Reasons[i].Reason < stats.Reasons[j].Reason
	})

	return stats
}
