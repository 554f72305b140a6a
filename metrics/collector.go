// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single orchestrator run. It is a
// leaf package with no internal dependencies. All increment methods are safe
// on a nil receiver so callers never need to guard optional collection.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64 `json:"runs_started"`
	RunsCompleted int64 `json:"runs_completed"`
	RunsAborted   int64 `json:"runs_aborted"`

	// Discovery and dispatch
	ItemsDiscovered  int64 `json:"items_discovered"`
	BatchesSent      int64 `json:"batches_sent"`
	BatchesFailed    int64 `json:"batches_failed"`
	ReadFailures     int64 `json:"read_failures"`
	UnmatchedResults int64 `json:"unmatched_results"`

	// Finalization, keyed by audit status
	ItemsProcessed  int64 `json:"items_processed"`
	ItemsFailed     int64 `json:"items_failed"`
	ItemsMoveFailed int64 `json:"items_move_failed"`
	PartialMoves    int64 `json:"partial_moves"`
	LogAppends      int64 `json:"log_appends"`
	LogFailures     int64 `json:"log_failures"`

	// Dimensions (informational, set at construction)
	StorageBackend string `json:"storage_backend"`
	RunID          string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsAborted   int64

	itemsDiscovered  int64
	batchesSent      int64
	batchesFailed    int64
	readFailures     int64
	unmatchedResults int64

	itemsProcessed  int64
	itemsFailed     int64
	itemsMoveFailed int64
	partialMoves    int64
	logAppends      int64
	logFailures     int64

	storageBackend string
	runID          string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storageBackend, runID string) *Collector {
	return &Collector{
		storageBackend: storageBackend,
		runID:          runID,
	}
}

// add applies fn under the lock; a nil collector is a no-op.
func (c *Collector) add(fn func(c *Collector)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(c)
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() { c.add(func(c *Collector) { c.runsStarted++ }) }

// IncRunCompleted records a run that reached finalization (or found nothing to do).
func (c *Collector) IncRunCompleted() { c.add(func(c *Collector) { c.runsCompleted++ }) }

// IncRunAborted records a run aborted before any item was mutated.
func (c *Collector) IncRunAborted() { c.add(func(c *Collector) { c.runsAborted++ }) }

// --- Discovery and dispatch ---

// AddItemsDiscovered records n discovered items.
func (c *Collector) AddItemsDiscovered(n int) {
	c.add(func(c *Collector) { c.itemsDiscovered += int64(n) })
}

// IncBatchSent records a classification request that was attempted.
func (c *Collector) IncBatchSent() { c.add(func(c *Collector) { c.batchesSent++ }) }

// IncBatchFailed records a classification request that failed at transport level.
func (c *Collector) IncBatchFailed() { c.add(func(c *Collector) { c.batchesFailed++ }) }

// IncReadFailure records an item whose bytes could not be read.
func (c *Collector) IncReadFailure() { c.add(func(c *Collector) { c.readFailures++ }) }

// IncUnmatched records an item the service returned no result for.
func (c *Collector) IncUnmatched() { c.add(func(c *Collector) { c.unmatchedResults++ }) }

// --- Finalization ---

// IncStatus records one finalized item by audit status.
func (c *Collector) IncStatus(status string) {
	c.add(func(c *Collector) {
		switch status {
		case "processed":
			c.itemsProcessed++
		case "failed":
			c.itemsFailed++
		case "move_failed":
			c.itemsMoveFailed++
		}
	})
}

// IncPartialMove records a copy that succeeded with a failed source delete.
func (c *Collector) IncPartialMove() { c.add(func(c *Collector) { c.partialMoves++ }) }

// IncLogAppend records a successful audit append.
func (c *Collector) IncLogAppend() { c.add(func(c *Collector) { c.logAppends++ }) }

// IncLogFailure records a failed audit append.
func (c *Collector) IncLogFailure() { c.add(func(c *Collector) { c.logFailures++ }) }

// Snapshot returns a copy of all counters.
// A nil collector returns a zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		RunsStarted:      c.runsStarted,
		RunsCompleted:    c.runsCompleted,
		RunsAborted:      c.runsAborted,
		ItemsDiscovered:  c.itemsDiscovered,
		BatchesSent:      c.batchesSent,
		BatchesFailed:    c.batchesFailed,
		ReadFailures:     c.readFailures,
		UnmatchedResults: c.unmatchedResults,
		ItemsProcessed:   c.itemsProcessed,
		ItemsFailed:      c.itemsFailed,
		ItemsMoveFailed:  c.itemsMoveFailed,
		PartialMoves:     c.partialMoves,
		LogAppends:       c.logAppends,
		LogFailures:      c.logFailures,
		StorageBackend:   c.storageBackend,
		RunID:            c.runID,
	}
}
