package runtime

import (
	"testing"

	"github.com/pithecene-io/triage/types"
)

func TestReconcile(t *testing.T) {
	pred := testPrediction()

	tests := []struct {
		name    string
		items   []string
		results []types.PredictionResult
		want    []types.OutcomeKind
	}{
		{
			name:    "all matched",
			items:   []string{"a.jpg", "b.jpg"},
			results: []types.PredictionResult{types.OK("a.jpg", pred), types.OK("b.jpg", pred)},
			want:    []types.OutcomeKind{types.OutcomeProcessed, types.OutcomeProcessed},
		},
		{
			name:    "reordered",
			items:   []string{"a.jpg", "b.jpg", "c.jpg"},
			results: []types.PredictionResult{types.OK("c.jpg", pred), types.Failed("a.jpg", "bad image"), types.OK("b.jpg", pred)},
			want:    []types.OutcomeKind{types.OutcomeClassificationFailed, types.OutcomeProcessed, types.OutcomeProcessed},
		},
		{
			name:    "omitted",
			items:   []string{"a.jpg", "b.jpg"},
			results: []types.PredictionResult{types.OK("a.jpg", pred)},
			want:    []types.OutcomeKind{types.OutcomeProcessed, types.OutcomeUnmatched},
		},
		{
			name:    "duplicate last wins",
			items:   []string{"a.jpg"},
			results: []types.PredictionResult{types.OK("a.jpg", pred), types.Failed("a.jpg", "second")},
			want:    []types.OutcomeKind{types.OutcomeClassificationFailed},
		},
		{
			name:    "extra results ignored",
			items:   []string{"a.jpg"},
			results: []types.PredictionResult{types.OK("zzz.jpg", pred), types.OK("a.jpg", pred)},
			want:    []types.OutcomeKind{types.OutcomeProcessed},
		},
		{
			name:    "empty response",
			items:   []string{"a.jpg", "b.jpg"},
			results: nil,
			want:    []types.OutcomeKind{types.OutcomeUnmatched, types.OutcomeUnmatched},
		},
		{
			name:    "case sensitive filenames",
			items:   []string{"A.jpg"},
			results: []types.PredictionResult{types.OK("a.jpg", pred)},
			want:    []types.OutcomeKind{types.OutcomeUnmatched},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := types.Batch{Items: items(tt.items...)}
			got := Reconcile(batch, tt.results)

			if len(got) != len(batch.Items) {
				t.Fatalf("got %d outcomes for %d items", len(got), len(batch.Items))
			}
			for i, o := range got {
				if o.Kind != tt.want[i] {
					t.Errorf("item %s: got %s, want %s", batch.Items[i].Filename, o.Kind, tt.want[i])
				}
			}
		})
	}
}

func TestReconcile_Payloads(t *testing.T) {
	batch := types.Batch{Items: items("a.jpg", "b.jpg", "c.jpg")}
	got := Reconcile(batch, []types.PredictionResult{
		types.OK("a.jpg", testPrediction()),
		types.Failed("b.jpg", "cannot decode image"),
	})

	if got[0].Prediction == nil || got[0].Prediction.Class != "shirt" {
		t.Errorf("a.jpg: expected shirt prediction, got %v", got[0])
	}
	if got[1].Reason != "cannot decode image" {
		t.Errorf("b.jpg: reason = %q", got[1].Reason)
	}
	if got[2].Reason != types.UnmatchedMessage {
		t.Errorf("c.jpg: reason = %q", got[2].Reason)
	}
}
