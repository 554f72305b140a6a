package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pithecene-io/triage/runlock"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name    string
		outcome OutcomeStatus
		err     error
		want    int
	}{
		{"completed", OutcomeCompleted, nil, ExitCodeCompleted},
		{"no items", OutcomeNoItems, nil, ExitCodeCompleted},
		{"aborted", OutcomeAborted, &InfrastructureError{Err: errors.New("x")}, ExitCodeInfrastructure},
		{"locked", OutcomeLocked, runlock.ErrLocked, ExitCodeLocked},
		{"wrapped lock", "", fmt.Errorf("acquire: %w", runlock.ErrLocked), ExitCodeLocked},
		{"invalid config", "", fmt.Errorf("%w: bad", ErrInvalidConfig), ExitCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.outcome, tt.err); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
