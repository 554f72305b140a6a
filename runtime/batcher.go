package runtime

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/triage/types"
)

// DefaultBatchSize is the number of items submitted per classification request.
const DefaultBatchSize = 10

// ErrInvalidConfig is returned for an unusable run configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Split partitions items into batches of at most batchSize, preserving order.
// The last batch may be short. Items are shared, not copied.
func Split(items []*types.Item, batchSize int) ([]types.Batch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, batchSize)
	}
	if len(items) == 0 {
		return nil, nil
	}

	batches := make([]types.Batch, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batches = append(batches, types.Batch{
			Index: len(batches),
			Items: items[start:end:end],
		})
	}
	return batches, nil
}
