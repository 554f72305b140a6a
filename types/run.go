package types

import (
	"errors"
	"fmt"
	"time"
)

// Backend names accepted by RunMeta.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// RunMeta identifies one orchestrator run.
type RunMeta struct {
	// RunID is the run identifier. Must be unique per run.
	RunID string
	// Backend is the storage backend name ("fs" or "s3").
	Backend string
}

// Validate checks that the run identity is usable.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	switch r.Backend {
	case BackendFS, BackendS3:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (must be fs or s3)", r.Backend)
	}
}

// DeriveDay computes the dated sub-location from a run's start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
