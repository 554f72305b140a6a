// Package storage implements the storage backends the orchestrator runs over.
//
// A Backend lists pending items, reads their bytes, relocates them to a
// terminal lifecycle location and appends audit records. Two backends are
// provided: FSBackend (local directories) and S3Backend (S3-compatible object
// store). Their atomicity guarantees differ; see each type's documentation.
package storage

import (
	"context"

	"github.com/pithecene-io/triage/types"
)

// Backend is the capability set the orchestrator needs from a storage medium.
//
// Callers must treat Relocate and AppendLog as best-effort: both may leave
// observable partial state on failure.
type Backend interface {
	// Name returns the backend name ("fs" or "s3").
	Name() string

	// ListPending lists items in the New location, sorted by key.
	// Directory entries and prefix markers are excluded, as are files
	// without a recognized image extension.
	ListPending(ctx context.Context) ([]*types.Item, error)

	// ReadBytes returns the item's content.
	// Fails with ErrNotFound if the item no longer exists.
	ReadBytes(ctx context.Context, item *types.Item) ([]byte, error)

	// Relocate moves the item to the dated sub-location day under dest and
	// returns the destination key. The destination key is returned even on
	// failure so the attempt can be audited.
	//
	// An occupied destination is never overwritten. If it holds the same
	// bytes as the item, the move completes by removing the source; any
	// other occupant fails with ErrAlreadyExists and the item stays in New.
	Relocate(ctx context.Context, item *types.Item, dest types.Location, day string) (string, error)

	// AppendLog appends one record to the audit log of the run's day,
	// writing the header first when the log does not exist yet.
	AppendLog(ctx context.Context, entry *types.LogEntry, day string) error
}

// LogReader is implemented by backends that can read their audit log back.
type LogReader interface {
	// ReadLog returns the audit entries recorded for day (YYYY-MM-DD, UTC).
	ReadLog(ctx context.Context, day string) ([]*types.LogEntry, error)
}

// LogObjectName returns the per-day report name used by object stores.
func LogObjectName(day string) string {
	return "classification_log_" + day + ".csv"
}
