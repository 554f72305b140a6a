package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/triage/runtime"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"completed", cli.Exit("", runtime.ExitCodeCompleted), 0, ""},
		{"infrastructure", cli.Exit("infrastructure failure: list new: denied", runtime.ExitCodeInfrastructure), 1, "infrastructure failure: list new: denied"},
		{"invalid config", cli.Exit("batch.size must be >= 1", runtime.ExitCodeInvalidConfig), 2, "batch.size must be >= 1"},
		{"locked", cli.Exit("run lock held", runtime.ExitCodeLocked), 3, "run lock held"},
		{"empty message", cli.Exit("", 3), 3, ""},
		{"wrapped", fmt.Errorf("context: %w", cli.Exit("inner", 42)), 42, "inner"},
		{"joined", errors.Join(errors.New("context"), cli.Exit("inner", 2)), 2, "inner"},
		{"regular error", errors.New("boom"), 1, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
