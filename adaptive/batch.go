package adaptive

import "sync"

// BatchSizer maintains the dynamic inscription-processing batch size
// described in spec.md §4.4: three consecutive successful batches grow it
// by 10; any failure shrinks it by 10 immediately.
type BatchSizer struct {
	mu sync.Mutex

	size     int
	min, max int
	streak   int
}

const (
	batchStep          = 10
	successStreakNeeded = 3
)

// NewBatchSizer builds a sizer with the given bounds and initial size, all
// in [min, max] per spec.md §4.4.
func NewBatchSizer(min, max, initial int) *BatchSizer {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if initial < min {
		initial = min
	}
	if initial > max {
		initial = max
	}
	return &BatchSizer{size: initial, min: min, max: max}
}

// Size returns the current batch size.
func (b *BatchSizer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// RecordBatchResult reports whether the most recently drained batch
// completed without a failure, adjusting the size per spec.md §4.4.
func (b *BatchSizer) RecordBatchResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.streak = 0
		b.size -= batchStep
		if b.size < b.min {
			b.size = b.min
		}
		return
	}

	b.streak++
	if b.streak >= successStreakNeeded {
		b.streak = 0
		b.size += batchStep
		if b.size > b.max {
			b.size = b.max
		}
	}
}
