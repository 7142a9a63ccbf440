package logs

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsplittable is returned when a single block still exceeds the provider limit.
var ErrUnsplittable = errors.New("single block exceeds provider limit")

// RangeFunc fetches the items of one inclusive block range.
type RangeFunc[T any] func(ctx context.Context, r BlockRange) ([]T, error)

// Bisect wraps fn so that an ErrSplitRange result is answered by halving the
// range and fetching both halves, recursively. Results are concatenated in
// block order and cover the original range exactly once. onSplit, when set,
// is called for every bisection.
func Bisect[T any](fn RangeFunc[T], onSplit func(r, left, right BlockRange)) RangeFunc[T] {
	var run RangeFunc[T]
	run = func(ctx context.Context, r BlockRange) ([]T, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := fn(ctx, r)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrSplitRange) {
			return nil, err
		}
		if r.Width() <= 1 {
			return nil, fmt.Errorf("%w: block %d: %v", ErrUnsplittable, r.From, err)
		}

		left, right := r.Halves()
		if onSplit != nil {
			onSplit(r, left, right)
		}

		first, err := run(ctx, left)
		if err != nil {
			return nil, err
		}
		second, err := run(ctx, right)
		if err != nil {
			return nil, err
		}

		out := make([]T, 0, len(first)+len(second))
		out = append(out, first...)
		return append(out, second...), nil
	}
	return run
}
