package logs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeTransport serves a fixed log set and refuses ranges wider than maxWidth.
type fakeTransport struct {
	mu       sync.Mutex
	logs     []types.Log
	maxWidth uint64 // 0 accepts any width
	fatalAt  map[uint64]error
	served   []BlockRange
	calls    int
	inFlight int
	peak     int
}

func newFakeTransport(blocks ...uint64) *fakeTransport {
	f := &fakeTransport{}
	for i, block := range blocks {
		f.logs = append(f.logs, types.Log{
			Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
			BlockNumber: block,
			TxHash:      common.BigToHash(common.Big1),
			Index:       uint(i),
		})
	}
	return f
}

func (f *fakeTransport) GetLogs(ctx context.Context, _ Query, r BlockRange) ([]types.Log, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for block, err := range f.fatalAt {
		if block >= r.From && block <= r.To {
			return nil, err
		}
	}
	if f.maxWidth > 0 && r.Width() > f.maxWidth {
		return nil, fmt.Errorf("%w: oversized response for %s", ErrSplitRange, r)
	}
	out := []types.Log{}
	for _, log := range f.logs {
		if log.BlockNumber >= r.From && log.BlockNumber <= r.To {
			out = append(out, log)
		}
	}

	f.mu.Lock()
	f.served = append(f.served, r)
	f.mu.Unlock()
	return out, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) rangeFunc() RangeFunc[types.Log] {
	return func(ctx context.Context, r BlockRange) ([]types.Log, error) {
		return f.GetLogs(ctx, Query{}, r)
	}
}

func blocksOf(logs []types.Log) []uint64 {
	out := make([]uint64, 0, len(logs))
	for _, log := range logs {
		out = append(out, log.BlockNumber)
	}
	return out
}
