package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/triage/classify"
	"github.com/pithecene-io/triage/log"
	"github.com/pithecene-io/triage/metrics"
	"github.com/pithecene-io/triage/runlock"
	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/types"
)

// RunState is the orchestrator's current stage.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateDiscovering RunState = "discovering"
	StateDispatching RunState = "dispatching"
	StateReconciling RunState = "reconciling"
	StateFinalizing  RunState = "finalizing"
)

// InfrastructureError is a run-fatal failure: the backend could not list
// pending items. No item is mutated when it is returned.
type InfrastructureError struct {
	Err error
}

func (e *InfrastructureError) Error() string {
	return "infrastructure failure: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// RunConfig configures a single run.
type RunConfig struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Backend is the storage medium (required).
	Backend storage.Backend
	// Classifier is the classification service client (required).
	Classifier classify.Classifier
	// BatchSize is the maximum number of items per request.
	// Zero means DefaultBatchSize.
	BatchSize int
	// BatchDelay is the pause between requests.
	// Zero means no pause; use DefaultBatchDelay for the standard pacing.
	BatchDelay time.Duration
	// Sleep overrides the inter-batch wait (for testing).
	Sleep Sleeper
	// Now overrides the clock (for testing). Defaults to time.Now.
	Now func() time.Time
	// Lock guards the run. If nil, no lock is taken.
	Lock runlock.Lock
	// Collector is the metrics collector for this run.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Logger overrides the default logger built from RunMeta.
	Logger *log.Logger
}

// ItemResult is the final record of one item.
type ItemResult struct {
	Item    *types.Item
	Outcome types.Outcome
	Entry   *types.LogEntry
	// MoveErr is the relocate failure, if any.
	MoveErr error
	// LogErr is the audit append failure, if any.
	LogErr error
}

// RunResult represents the result of a run.
type RunResult struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Day is the dated sub-location used for this run.
	Day string
	// Outcome is the run-level verdict.
	Outcome *RunOutcome
	// Discovered is the number of pending items found.
	Discovered int
	// Processed, Failed and MoveFailed count items by audit status.
	Processed  int
	Failed     int
	MoveFailed int
	// LogFailures counts audit appends that failed.
	LogFailures int
	// MissingLogEntries lists the keys whose audit record was not written.
	MissingLogEntries []string
	// Items holds one entry per discovered item, in discovery order.
	Items []ItemResult
	// States is the sequence of stages the run went through.
	States []RunState
	// StartedAt is the run start time.
	StartedAt time.Time
	// Duration is the total run duration.
	Duration time.Duration
}

// RunOrchestrator drives one run: discover, batch, dispatch, reconcile,
// relocate and log.
//
// A RunOrchestrator assumes it is the only writer to its backend's New
// location for the duration of a run. Two overlapping runs over the same
// backend do not corrupt item state but can double-submit items and, on S3,
// lose audit rows. Configure a Lock to enforce a single run at a time.
type RunOrchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	now       func() time.Time
	startTime time.Time

	mu     sync.Mutex
	state  RunState
	states []RunState
}

// NewRunOrchestrator creates a new run orchestrator.
// Returns an error wrapping ErrInvalidConfig if the config is unusable.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: nil run config", ErrInvalidConfig)
	}
	if config.RunMeta == nil {
		return nil, fmt.Errorf("%w: run metadata is required", ErrInvalidConfig)
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid run metadata: %w", ErrInvalidConfig, err)
	}
	if config.Backend == nil {
		return nil, fmt.Errorf("%w: storage backend is required", ErrInvalidConfig)
	}
	if config.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrInvalidConfig)
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, config.BatchSize)
	}
	if config.BatchDelay < 0 {
		return nil, fmt.Errorf("%w: batch delay must be >= 0, got %s", ErrInvalidConfig, config.BatchDelay)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &RunOrchestrator{
		config: config,
		logger: logger,
		now:    now,
		state:  StateIdle,
		states: []RunState{StateIdle},
	}, nil
}

// State returns the current stage.
func (r *RunOrchestrator) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RunOrchestrator) transition(s RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == s {
		return
	}
	r.state = s
	r.states = append(r.states, s)
}

// Execute executes the run end-to-end.
//
// Execution flow:
//  1. Acquire the run lock, if configured
//  2. Discover pending items
//  3. Split into batches; dispatch and reconcile each batch
//  4. Relocate every item, then append exactly one audit record for it
//  5. Return result
//
// Item-level failures never abort the run. A returned error means the run
// stopped before mutating any item (lock held or discovery failed); the
// result is still non-nil and describes the abort.
func (r *RunOrchestrator) Execute(ctx context.Context) (*RunResult, error) {
	r.startTime = r.now()
	day := types.DeriveDay(r.startTime)
	r.config.Collector.IncRunStarted()

	r.logger.Info("starting run", map[string]any{
		"day":         day,
		"batch_size":  r.config.BatchSize,
		"batch_delay": r.config.BatchDelay.String(),
	})

	if r.config.Lock != nil {
		release, err := r.config.Lock.Acquire(ctx)
		if err != nil {
			r.config.Collector.IncRunAborted()
			status := OutcomeAborted
			if errors.Is(err, runlock.ErrLocked) {
				status = OutcomeLocked
			}
			r.logger.Error("failed to acquire run lock", map[string]any{
				"error": err.Error(),
			})
			return r.buildResult(day, &RunOutcome{Status: status, Message: err.Error()}, nil), err
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				r.logger.Warn("failed to release run lock", map[string]any{
					"error": err.Error(),
				})
			}
		}()
	}

	r.transition(StateDiscovering)
	items, err := r.config.Backend.ListPending(ctx)
	if err != nil {
		r.transition(StateIdle)
		r.config.Collector.IncRunAborted()
		infraErr := &InfrastructureError{Err: err}
		r.logger.Error("discovery failed", map[string]any{
			"error": err.Error(),
		})
		return r.buildResult(day, &RunOutcome{
			Status:  OutcomeAborted,
			Message: infraErr.Error(),
		}, nil), infraErr
	}
	r.config.Collector.AddItemsDiscovered(len(items))

	if len(items) == 0 {
		r.transition(StateIdle)
		r.config.Collector.IncRunCompleted()
		r.logger.Info("no pending items", nil)
		return r.buildResult(day, &RunOutcome{
			Status:  OutcomeNoItems,
			Message: "no pending items",
		}, nil), nil
	}

	batches, err := Split(items, r.config.BatchSize)
	if err != nil {
		// Unreachable after NewRunOrchestrator validation.
		r.transition(StateIdle)
		r.config.Collector.IncRunAborted()
		return r.buildResult(day, &RunOutcome{Status: OutcomeAborted, Message: err.Error()}, nil), err
	}

	r.logger.Info("dispatching", map[string]any{
		"items":   len(items),
		"batches": len(batches),
	})

	outcomes := make(map[*types.Item]types.Outcome, len(items))
	dispatcher := NewDispatcher(
		r.config.Backend,
		r.config.Classifier,
		r.config.BatchDelay,
		r.config.Sleep,
		r.logger,
		r.config.Collector,
	)
	for i, batch := range batches {
		r.transition(StateDispatching)
		resp := dispatcher.Dispatch(ctx, batch)

		r.transition(StateReconciling)
		for j, o := range resp.Outcomes() {
			if o.Kind == types.OutcomeUnmatched {
				r.config.Collector.IncUnmatched()
			}
			outcomes[batch.Items[j]] = o
		}

		if i < len(batches)-1 {
			dispatcher.Pause(ctx)
		}
	}

	r.transition(StateFinalizing)
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		results = append(results, r.finalize(ctx, item, outcomes[item], day))
	}
	r.transition(StateIdle)

	r.config.Collector.IncRunCompleted()
	result := r.buildResult(day, &RunOutcome{
		Status:  OutcomeCompleted,
		Message: fmt.Sprintf("finalized %d items", len(items)),
	}, results)

	fields := map[string]any{
		"discovered":   result.Discovered,
		"processed":    result.Processed,
		"failed":       result.Failed,
		"move_failed":  result.MoveFailed,
		"log_failures": result.LogFailures,
		"duration":     result.Duration.String(),
	}
	if result.LogFailures > 0 {
		fields["missing_log_entries"] = result.MissingLogEntries
		r.logger.Warn("run completed with missing audit entries", fields)
	} else {
		r.logger.Info("run completed", fields)
	}
	return result, nil
}

// finalize relocates one item and appends its audit record.
// The append happens after the relocate attempt so the record carries the
// final status.
func (r *RunOrchestrator) finalize(ctx context.Context, item *types.Item, outcome types.Outcome, day string) ItemResult {
	destKey, moveErr := r.config.Backend.Relocate(ctx, item, outcome.Destination(), day)
	if moveErr != nil {
		if errors.Is(moveErr, storage.ErrPartialMove) {
			r.config.Collector.IncPartialMove()
		}
		r.logger.Warn("failed to relocate item", map[string]any{
			"key":         item.Key,
			"destination": destKey,
			"error":       moveErr.Error(),
		})
	}

	entry := types.NewLogEntry(r.now(), item, outcome, destKey, moveErr)
	r.config.Collector.IncStatus(string(entry.Status))

	logErr := r.config.Backend.AppendLog(ctx, entry, day)
	if logErr != nil {
		r.config.Collector.IncLogFailure()
		r.logger.Warn("failed to append audit record", map[string]any{
			"key":    item.Key,
			"status": string(entry.Status),
			"error":  logErr.Error(),
		})
	} else {
		r.config.Collector.IncLogAppend()
	}

	return ItemResult{
		Item:    item,
		Outcome: outcome,
		Entry:   entry,
		MoveErr: moveErr,
		LogErr:  logErr,
	}
}

// buildResult constructs the final run result.
func (r *RunOrchestrator) buildResult(day string, outcome *RunOutcome, items []ItemResult) *RunResult {
	r.mu.Lock()
	states := append([]RunState(nil), r.states...)
	r.mu.Unlock()

	result := &RunResult{
		RunMeta:    r.config.RunMeta,
		Day:        day,
		Outcome:    outcome,
		Discovered: len(items),
		Items:      items,
		States:     states,
		StartedAt:  r.startTime,
		Duration:   r.now().Sub(r.startTime),
	}
	for _, ir := range items {
		switch ir.Entry.Status {
		case types.StatusProcessed:
			result.Processed++
		case types.StatusFailed:
			result.Failed++
		case types.StatusMoveFailed:
			result.MoveFailed++
		}
		if ir.LogErr != nil {
			result.LogFailures++
			result.MissingLogEntries = append(result.MissingLogEntries, ir.Item.Key)
		}
	}
	return result
}
