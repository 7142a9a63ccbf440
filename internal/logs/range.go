package logs

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid block range")

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// Width is the number of blocks covered by the range.
func (r BlockRange) Width() uint64 {
	return r.To - r.From + 1
}

// Halves splits the range at its midpoint into [From, mid] and [mid+1, To].
// The caller must ensure Width() > 1.
func (r BlockRange) Halves() (BlockRange, BlockRange) {
	mid := r.From + (r.To-r.From)/2
	return BlockRange{From: r.From, To: mid}, BlockRange{From: mid + 1, To: r.To}
}

// NewBlockRange validates and builds an inclusive range.
func NewBlockRange(from, to uint64) (BlockRange, error) {
	if to < from {
		return BlockRange{}, fmt.Errorf("%w: end block %d is before start block %d", ErrInvalidRange, to, from)
	}
	return BlockRange{From: from, To: to}, nil
}

// SplitRange splits a block range into batches of size batchSize.
// A zero batchSize yields the whole range as a single batch.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	whole, err := NewBlockRange(from, to)
	if err != nil {
		return nil, err
	}
	if batchSize == 0 {
		return []BlockRange{whole}, nil
	}

	ranges := make([]BlockRange, 0, whole.Width()/batchSize+1)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
