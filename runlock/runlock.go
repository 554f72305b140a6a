// Package runlock provides the run-lock collaborator that keeps two
// orchestrators from working the same New location at once.
//
// The orchestrator itself assumes a single run at a time; a Lock makes that
// assumption enforceable across processes.
package runlock

import (
	"context"
	"errors"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("run lock is held by another run")

// Release gives up a held lock. Safe to call more than once.
type Release func(ctx context.Context) error

// Lock guards a run.
type Lock interface {
	// Acquire takes the lock or returns ErrLocked without blocking.
	Acquire(ctx context.Context) (Release, error)
}

// Noop is a Lock that always succeeds.
type Noop struct{}

// Acquire implements Lock.
func (Noop) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

var _ Lock = Noop{}
