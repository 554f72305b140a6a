package runtime

import (
	"errors"

	"github.com/pithecene-io/triage/runlock"
)

// OutcomeStatus classifies how a run ended.
type OutcomeStatus string

const (
	// OutcomeCompleted means every discovered item was finalized.
	// Individual items may still have failed.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeNoItems means discovery found nothing to do.
	OutcomeNoItems OutcomeStatus = "no_items"
	// OutcomeAborted means the run stopped before mutating any item.
	OutcomeAborted OutcomeStatus = "aborted"
	// OutcomeLocked means another run held the run lock.
	OutcomeLocked OutcomeStatus = "locked"
)

// RunOutcome is the run-level verdict.
type RunOutcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// Process exit codes for the run command.
const (
	ExitCodeCompleted      = 0 // run finished, item failures included
	ExitCodeInfrastructure = 1 // discovery or other run-fatal failure
	ExitCodeInvalidConfig  = 2 // configuration rejected before the run
	ExitCodeLocked         = 3 // run lock held by another run
)

// ExitCodeFor maps a run's outcome and error to a process exit code.
func ExitCodeFor(outcome OutcomeStatus, err error) int {
	switch {
	case errors.Is(err, runlock.ErrLocked), outcome == OutcomeLocked:
		return ExitCodeLocked
	case errors.Is(err, ErrInvalidConfig):
		return ExitCodeInvalidConfig
	case err != nil, outcome == OutcomeAborted:
		return ExitCodeInfrastructure
	default:
		return ExitCodeCompleted
	}
}
