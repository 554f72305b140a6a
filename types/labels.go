package types

import (
	"errors"
	"fmt"
)

// DefaultLabels is the garment label set served by the reference model.
// Deployments override it through configuration.
var DefaultLabels = LabelSet{
	"dress",
	"hat",
	"longsleeve",
	"outwear",
	"pants",
	"shirt",
	"shoes",
	"shorts",
	"skirt",
	"t-shirt",
}

// LabelSet is the closed, ordered list of class labels the classification
// service predicts. Position in the list is the class index.
type LabelSet []string

// Validate checks that the set is non-empty and duplicate-free.
func (s LabelSet) Validate() error {
	if len(s) == 0 {
		return errors.New("label set must not be empty")
	}
	seen := make(map[string]struct{}, len(s))
	for _, l := range s {
		if l == "" {
			return errors.New("label set contains an empty label")
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("label set contains duplicate label %q", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// Index returns the position of label, or -1 if absent.
func (s LabelSet) Index(label string) int {
	for i, l := range s {
		if l == label {
			return i
		}
	}
	return -1
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	return s.Index(label) >= 0
}
