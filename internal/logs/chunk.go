package logs

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const defaultChunkWorkers = 2

// FetchChunked partitions r into chunkSize-wide chunks (zero means one chunk),
// runs fn on up to workers chunks at a time and concatenates the results in
// chunk order. The first failing chunk cancels the rest and its error is returned.
func FetchChunked[T any](ctx context.Context, r BlockRange, chunkSize uint64, workers int, fn RangeFunc[T]) ([]T, error) {
	chunks, err := SplitRange(r.From, r.To, chunkSize)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = defaultChunkWorkers
	}

	results := make([][]T, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			items, err := fn(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, items := range results {
		total += len(items)
	}
	out := make([]T, 0, total)
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}
