package types

import "encoding/json"

// Prediction is a successful classification of one image.
type Prediction struct {
	// Class is the predicted label.
	Class string `json:"predicted_class"`
	// ClassIndex is the position of Class in the service's label set.
	ClassIndex int `json:"predicted_class_index"`
	// Probabilities maps every known label to a score in [0,1].
	// Scores are passed through to the audit log without re-validation.
	Probabilities map[string]float64 `json:"probabilities"`
}

// ProbabilitiesJSON returns the probabilities encoded as a JSON object.
// Keys are emitted in sorted order by encoding/json.
func (p Prediction) ProbabilitiesJSON() string {
	if p.Probabilities == nil {
		return "{}"
	}
	data, err := json.Marshal(p.Probabilities)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// PredictionResult is the service's answer for one filename.
// It holds either a Prediction or a failure reason, never both;
// construct it with OK or Failed.
type PredictionResult struct {
	Filename string

	prediction *Prediction
	reason     string
}

// OK returns a successful result for filename.
func OK(filename string, p Prediction) PredictionResult {
	return PredictionResult{Filename: filename, prediction: &p}
}

// Failed returns a failed result for filename.
func Failed(filename, reason string) PredictionResult {
	return PredictionResult{Filename: filename, reason: reason}
}

// Prediction returns the prediction and true if the result succeeded.
func (r PredictionResult) Prediction() (Prediction, bool) {
	if r.prediction == nil {
		return Prediction{}, false
	}
	return *r.prediction, true
}

// Reason returns the failure reason and true if the result failed.
func (r PredictionResult) Reason() (string, bool) {
	if r.prediction != nil {
		return "", false
	}
	return r.reason, true
}

// IsOK reports whether the result carries a prediction.
func (r PredictionResult) IsOK() bool {
	return r.prediction != nil
}
