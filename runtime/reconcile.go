package runtime

import "github.com/pithecene-io/triage/types"

// Reconcile matches service results to the batch's items by filename.
//
// The returned slice is index-aligned with batch.Items and always has the
// same length. Results whose filename matches no item are ignored; when the
// service repeats a filename the last result wins.
func Reconcile(batch types.Batch, results []types.PredictionResult) []types.Outcome {
	byName := make(map[string]types.PredictionResult, len(results))
	for _, r := range results {
		byName[r.Filename] = r
	}

	outcomes := make([]types.Outcome, len(batch.Items))
	for i, item := range batch.Items {
		r, found := byName[item.Filename]
		if !found {
			outcomes[i] = types.Unmatched()
			continue
		}
		if p, ok := r.Prediction(); ok {
			outcomes[i] = types.Processed(p)
			continue
		}
		reason, _ := r.Reason()
		if reason == "" {
			reason = "classification service returned an error without a message"
		}
		outcomes[i] = types.ClassificationFailed(reason)
	}
	return outcomes
}
