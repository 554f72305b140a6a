package runtime

import (
	"context"
	"time"

	"github.com/pithecene-io/triage/classify"
	"github.com/pithecene-io/triage/log"
	"github.com/pithecene-io/triage/metrics"
	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/types"
)

// DefaultBatchDelay is the pause between consecutive classification requests.
const DefaultBatchDelay = time.Second

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BatchResponse is the result of dispatching one batch.
type BatchResponse struct {
	// Batch is the batch as discovered.
	Batch types.Batch
	// Submitted holds the items whose bytes were read and sent.
	Submitted types.Batch
	// Results are the service results; nil when Err is set.
	Results []types.PredictionResult
	// Err is the batch-level transport error, if any.
	Err error
	// ReadErrors maps items that could not be read to their error.
	// These items are not sent.
	ReadErrors map[*types.Item]error
}

// Outcomes returns one outcome per item in Batch, index-aligned.
// Read failures and transport failures become classification_failed; the
// rest are reconciled against Results.
func (r *BatchResponse) Outcomes() []types.Outcome {
	var reconciled map[*types.Item]types.Outcome
	if r.Err == nil && r.Submitted.Len() > 0 {
		outs := Reconcile(r.Submitted, r.Results)
		reconciled = make(map[*types.Item]types.Outcome, len(outs))
		for i, item := range r.Submitted.Items {
			reconciled[item] = outs[i]
		}
	}

	outcomes := make([]types.Outcome, len(r.Batch.Items))
	for i, item := range r.Batch.Items {
		if err, ok := r.ReadErrors[item]; ok {
			outcomes[i] = types.ClassificationFailed("read failed: " + err.Error())
			continue
		}
		if r.Err != nil {
			outcomes[i] = types.ClassificationFailed(r.Err.Error())
			continue
		}
		outcomes[i] = reconciled[item]
	}
	return outcomes
}

// Dispatcher sends batches to the classifier one at a time.
type Dispatcher struct {
	backend    storage.Backend
	classifier classify.Classifier
	delay      time.Duration
	sleep      Sleeper
	logger     *log.Logger
	collector  *metrics.Collector
}

// NewDispatcher creates a Dispatcher. A nil sleep uses SleepContext and a
// nil logger discards output.
func NewDispatcher(
	backend storage.Backend,
	classifier classify.Classifier,
	delay time.Duration,
	sleep Sleeper,
	logger *log.Logger,
	collector *metrics.Collector,
) *Dispatcher {
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Dispatcher{
		backend:    backend,
		classifier: classifier,
		delay:      delay,
		sleep:      sleep,
		logger:     logger,
		collector:  collector,
	}
}

// Dispatch reads the batch's items and makes a single classification call.
// It never retries and never returns an error: failures are carried in the
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, batch types.Batch) *BatchResponse {
	resp := &BatchResponse{
		Batch:     batch,
		Submitted: types.Batch{Index: batch.Index},
	}

	images := make([]classify.Image, 0, batch.Len())
	for _, item := range batch.Items {
		data, err := d.backend.ReadBytes(ctx, item)
		if err != nil {
			d.collector.IncReadFailure()
			d.logger.Warn("failed to read item", map[string]any{
				"key":   item.Key,
				"error": err.Error(),
			})
			if resp.ReadErrors == nil {
				resp.ReadErrors = make(map[*types.Item]error)
			}
			resp.ReadErrors[item] = err
			continue
		}
		resp.Submitted.Items = append(resp.Submitted.Items, item)
		images = append(images, classify.Image{Filename: item.Filename, Data: data})
	}

	if len(images) == 0 {
		return resp
	}

	d.collector.IncBatchSent()
	results, err := d.classifier.Classify(ctx, images)
	if err != nil {
		d.collector.IncBatchFailed()
		d.logger.Error("classification request failed", map[string]any{
			"batch": batch.Index,
			"items": len(images),
			"error": err.Error(),
		})
		resp.Err = err
		return resp
	}

	d.logger.Debug("batch classified", map[string]any{
		"batch":   batch.Index,
		"items":   len(images),
		"results": len(results),
	})
	resp.Results = results
	return resp
}

// Pause waits the inter-batch delay. Callers skip it after the last batch.
// An interrupted wait is logged and otherwise ignored.
func (d *Dispatcher) Pause(ctx context.Context) {
	if err := d.sleep(ctx, d.delay); err != nil {
		d.logger.Warn("inter-batch delay interrupted", map[string]any{
			"error": err.Error(),
		})
	}
}
