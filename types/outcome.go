package types

import "fmt"

// OutcomeKind is the reconciled verdict for one item.
type OutcomeKind string

const (
	// OutcomeProcessed means the service returned a prediction.
	OutcomeProcessed OutcomeKind = "processed"
	// OutcomeClassificationFailed means the service returned an error for the
	// item, the batch request failed, or the item could not be read.
	OutcomeClassificationFailed OutcomeKind = "classification_failed"
	// OutcomeUnmatched means the service returned no result for the filename.
	OutcomeUnmatched OutcomeKind = "unmatched"
)

// UnmatchedMessage is the error message logged for unmatched items.
const UnmatchedMessage = "file processed by service but no result returned or filename mismatch"

// Outcome is the reconciler's verdict for one item.
type Outcome struct {
	Kind OutcomeKind
	// Prediction is set only for OutcomeProcessed.
	Prediction *Prediction
	// Reason is set for the failure kinds.
	Reason string
}

// Processed returns a processed outcome.
func Processed(p Prediction) Outcome {
	return Outcome{Kind: OutcomeProcessed, Prediction: &p}
}

// ClassificationFailed returns a failed outcome with reason.
func ClassificationFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeClassificationFailed, Reason: reason}
}

// Unmatched returns the outcome for an item missing from the response.
func Unmatched() Outcome {
	return Outcome{Kind: OutcomeUnmatched, Reason: UnmatchedMessage}
}

// Destination returns the terminal location for the outcome.
// Unmatched items are treated exactly like failed ones.
func (o Outcome) Destination() Location {
	if o.Kind == OutcomeProcessed {
		return LocationProcessed
	}
	return LocationFailed
}

// Status returns the audit status recorded when the move succeeds.
func (o Outcome) Status() Status {
	if o.Kind == OutcomeProcessed {
		return StatusProcessed
	}
	return StatusFailed
}

func (o Outcome) String() string {
	if o.Kind == OutcomeProcessed && o.Prediction != nil {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Prediction.Class)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}
