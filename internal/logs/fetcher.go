package logs

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/decode"
	"autopoolScope/internal/metrics"
)

// FetcherConfig tunes the pre-chunked scan.
type FetcherConfig struct {
	// ChunkSize overrides the chain profile's chunk size when non-zero.
	ChunkSize    uint64
	ChunkWorkers int
}

// Fetcher scans block ranges for logs: the range is pre-chunked per chain,
// chunks run on a small worker pool and each chunk bisects on provider limits.
type Fetcher struct {
	transport Transport
	profile   chain.Profile
	cfg       FetcherConfig
	decoder   *decode.Decoder
	metrics   *metrics.FetchMetrics
	logger    *zap.Logger
}

func NewFetcher(transport Transport, profile chain.Profile, cfg FetcherConfig, decoder *decode.Decoder, m *metrics.FetchMetrics, logger *zap.Logger) *Fetcher {
	if cfg.ChunkWorkers <= 0 {
		cfg.ChunkWorkers = defaultChunkWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoder == nil {
		decoder = decode.NewDecoder(decode.Config{}, logger)
	}
	if m == nil {
		m = metrics.NewFetchMetrics(profile.Name)
	}
	return &Fetcher{
		transport: transport,
		profile:   profile,
		cfg:       cfg,
		decoder:   decoder,
		metrics:   m,
		logger:    logger,
	}
}

func (f *Fetcher) chunkSize() uint64 {
	if f.cfg.ChunkSize > 0 {
		return f.cfg.ChunkSize
	}
	return f.profile.ChunkSize
}

// FetchLogs returns every log matching q in [from, to]. Either the whole range
// is returned or an error; there is no partial result.
func (f *Fetcher) FetchLogs(ctx context.Context, q Query, from, to uint64) ([]types.Log, error) {
	r, err := NewBlockRange(from, to)
	if err != nil {
		return nil, err
	}

	fetch := Bisect(func(ctx context.Context, r BlockRange) ([]types.Log, error) {
		return f.transport.GetLogs(ctx, q, r)
	}, f.onSplit)

	started := time.Now()
	logs, err := FetchChunked(ctx, r, f.chunkSize(), f.cfg.ChunkWorkers, fetch)
	if err != nil {
		return nil, fmt.Errorf("fetch logs %s on %s: %w", r, f.profile.Name, err)
	}

	f.logger.Info("logs fetched",
		zap.String("chain", f.profile.Name),
		zap.Uint64("from", r.From),
		zap.Uint64("to", r.To),
		zap.Int("logs", len(logs)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return logs, nil
}

// FetchEvents fetches and decodes every event log emitted by addresses in [from, to].
func (f *Fetcher) FetchEvents(ctx context.Context, event abi.Event, addresses []common.Address, from, to uint64) (*decode.Table, error) {
	logs, err := f.FetchLogs(ctx, EventQuery(event, addresses), from, to)
	if err != nil {
		return nil, err
	}
	return f.decoder.Decode(ctx, event, logs)
}

// Decoder returns the decoder used for event tables.
func (f *Fetcher) Decoder() *decode.Decoder {
	return f.decoder
}

// EventQuery filters on the event's topic0 unless the event is anonymous.
func EventQuery(event abi.Event, addresses []common.Address) Query {
	q := Query{Addresses: addresses}
	if !event.Anonymous {
		q.Topics = [][]common.Hash{{event.ID}}
	}
	return q
}

func (f *Fetcher) onSplit(r, left, right BlockRange) {
	f.metrics.RangeSplits().Inc()
	f.logger.Debug("split range",
		zap.String("chain", f.profile.Name),
		zap.Stringer("range", r),
		zap.Stringer("left", left),
		zap.Stringer("right", right),
	)
}
