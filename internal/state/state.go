// Package state reads contract state at many blocks through Multicall3.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"autopoolScope/internal/cache"
	"autopoolScope/internal/chain"
	"autopoolScope/internal/metrics"
	"autopoolScope/internal/model"
	"autopoolScope/internal/multicall"
)

var (
	// ErrDuplicateBlocks is returned when the requested block list repeats a block.
	ErrDuplicateBlocks = errors.New("duplicate blocks requested")
	// ErrScheduleExhausted is returned when multicalls still fail under the smallest concurrency limit.
	ErrScheduleExhausted = errors.New("multicall retry schedule exhausted")
	ErrNoCalls           = errors.New("no calls to fetch")
)

// DefaultLimits is the decreasing concurrency schedule for multicall retries.
var DefaultLimits = []int{500, 200, 50, 20, 2}

const (
	ColumnTimestamp = "timestamp"
	ColumnBlock     = "block"

	defaultBackoff        = time.Second
	defaultRequestTimeout = 30 * time.Second
)

// ChainReader is the chain access the fetcher needs.
type ChainReader interface {
	multicall.Caller
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	Limits         []int
	Backoff        time.Duration
	RequestTimeout time.Duration
	// MulticallAddress defaults to the canonical Multicall3 deployment.
	MulticallAddress common.Address
}

// Options control a single FetchState call.
type Options struct {
	IncludeBlock bool
	// SkipCache bypasses both cache reads and writes.
	SkipCache bool
}

// Row holds the decoded call values at one block.
type Row struct {
	Timestamp uint64
	Block     uint64
	Values    map[string]interface{}
}

// Table is the result of FetchState: one row per requested block, ordered by timestamp.
type Table struct {
	Columns []string
	Rows    []Row
}

// Fetcher executes multicalls for many blocks with bounded concurrency.
type Fetcher struct {
	reader  ChainReader
	profile chain.Profile
	store   cache.Store
	cfg     Config
	metrics *metrics.FetchMetrics
	logger  *zap.Logger
}

// NewFetcher builds a Fetcher. store may be nil to disable caching.
func NewFetcher(reader ChainReader, profile chain.Profile, store cache.Store, cfg Config, m *metrics.FetchMetrics, logger *zap.Logger) *Fetcher {
	if len(cfg.Limits) == 0 {
		cfg.Limits = DefaultLimits
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MulticallAddress == (common.Address{}) {
		cfg.MulticallAddress = chain.Multicall3Address
	}
	if m == nil {
		m = metrics.NewFetchMetrics(profile.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		reader:  reader,
		profile: profile,
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

type blockJob struct {
	block uint64
	key   []byte
	raws  []multicall.RawResult
	fresh bool
}

// FetchState runs calls at every block and returns one row per block.
func (f *Fetcher) FetchState(ctx context.Context, calls []multicall.Call, blocks []uint64, opts Options) (*Table, error) {
	if err := validate(calls, blocks); err != nil {
		return nil, err
	}

	blockCall, err := multicall.BlockNumberCall(f.cfg.MulticallAddress)
	if err != nil {
		return nil, err
	}
	tsCall, err := multicall.BlockTimestampCall(f.cfg.MulticallAddress)
	if err != nil {
		return nil, err
	}
	full := append([]multicall.Call{blockCall, tsCall}, calls...)

	useCache := f.store != nil && !opts.SkipCache
	jobs := make([]*blockJob, len(blocks))
	for i, block := range blocks {
		job := &blockJob{block: block}
		if useCache {
			key, err := multicall.Key(f.profile.ChainID, f.cfg.MulticallAddress, full, block)
			if err != nil {
				return nil, err
			}
			job.key = key
			job.raws = f.readCache(ctx, key, len(full))
		}
		jobs[i] = job
	}

	pending := make([]*blockJob, 0, len(jobs))
	for _, job := range jobs {
		if job.raws == nil {
			pending = append(pending, job)
		}
	}
	f.logger.Debug("state fetch",
		zap.String("chain", f.profile.Name),
		zap.Int("blocks", len(blocks)),
		zap.Int("cached", len(jobs)-len(pending)),
		zap.Int("calls", len(calls)),
	)

	if err := f.runSchedule(ctx, full, pending); err != nil {
		return nil, err
	}

	if useCache && len(pending) > 0 {
		f.writeCache(ctx, pending)
	}

	return buildTable(full, jobs, opts)
}

func validate(calls []multicall.Call, blocks []uint64) error {
	if len(calls) == 0 {
		return ErrNoCalls
	}
	names := make(map[string]struct{}, len(calls))
	for _, c := range calls {
		if c.Name == "" {
			return fmt.Errorf("call to %s.%s has no name", c.Target.Hex(), c.Method.Name)
		}
		if c.Name == ColumnTimestamp || c.Name == ColumnBlock {
			return fmt.Errorf("call name %q is reserved", c.Name)
		}
		if _, ok := names[c.Name]; ok {
			return fmt.Errorf("duplicate call name %q", c.Name)
		}
		names[c.Name] = struct{}{}
	}

	seen := make(map[uint64]struct{}, len(blocks))
	for _, block := range blocks {
		if _, ok := seen[block]; ok {
			return fmt.Errorf("%w: block %d", ErrDuplicateBlocks, block)
		}
		seen[block] = struct{}{}
	}
	return nil
}

// runSchedule executes pending multicalls under each concurrency limit in turn.
// Blocks that fail are retried under the next, smaller limit after a backoff.
func (f *Fetcher) runSchedule(ctx context.Context, calls []multicall.Call, pending []*blockJob) error {
	var lastErr error
	for stage, limit := range f.cfg.Limits {
		if len(pending) == 0 {
			return nil
		}
		if stage > 0 {
			delay := f.cfg.Backoff * time.Duration(1<<uint(stage-1))
			f.logger.Warn("retrying multicalls with lower concurrency",
				zap.String("chain", f.profile.Name),
				zap.Int("blocks", len(pending)),
				zap.Int("limit", limit),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		failed, err := f.runStage(ctx, calls, pending, limit)
		if err != nil {
			return err
		}
		pending, lastErr = failed.jobs, failed.err
	}

	if len(pending) == 0 {
		return nil
	}
	failedBlocks := make([]uint64, 0, len(pending))
	for _, job := range pending {
		failedBlocks = append(failedBlocks, job.block)
	}
	sort.Slice(failedBlocks, func(i, j int) bool { return failedBlocks[i] < failedBlocks[j] })
	return fmt.Errorf("%w on %s: blocks %v: %v", ErrScheduleExhausted, f.profile.Name, failedBlocks, lastErr)
}

type stageFailures struct {
	jobs []*blockJob
	err  error
}

func (f *Fetcher) runStage(ctx context.Context, calls []multicall.Call, jobs []*blockJob, limit int) (stageFailures, error) {
	sem := semaphore.NewWeighted(int64(limit))
	label := strconv.Itoa(limit)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures stageFailures
	)
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return stageFailures{}, err
		}
		wg.Add(1)
		go func(job *blockJob) {
			defer wg.Done()
			defer sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
			defer cancel()

			timer := f.metrics.RPCLatencies("eth_call")
			raws, err := multicall.Execute(callCtx, f.reader, f.cfg.MulticallAddress, calls, job.block)
			timer.ObserveDuration()
			if err != nil {
				f.metrics.MulticallAttempts(label, "error").Inc()
				mu.Lock()
				failures.jobs = append(failures.jobs, job)
				failures.err = err
				mu.Unlock()
				return
			}
			f.metrics.MulticallAttempts(label, "ok").Inc()
			job.raws = raws
			job.fresh = true
		}(job)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stageFailures{}, err
	}
	return failures, nil
}

func (f *Fetcher) readCache(ctx context.Context, key []byte, want int) []multicall.RawResult {
	value, ok, err := f.store.Get(ctx, key)
	if err != nil {
		f.metrics.CacheReads(metrics.CacheReadStatusError).Inc()
		f.logger.Warn("cache read failed", zap.Error(err))
		return nil
	}
	if !ok {
		f.metrics.CacheReads(metrics.CacheReadStatusMiss).Inc()
		return nil
	}

	var raws []multicall.RawResult
	if err := json.Unmarshal(value, &raws); err != nil || len(raws) != want {
		f.metrics.CacheReads(metrics.CacheReadStatusError).Inc()
		f.logger.Warn("discarding malformed cache entry", zap.Binary("key", key), zap.Error(err))
		return nil
	}
	f.metrics.CacheReads(metrics.CacheReadStatusHit).Inc()
	return raws
}

// writeCache stores freshly fetched responses for finalized blocks only.
func (f *Fetcher) writeCache(ctx context.Context, jobs []*blockJob) {
	head, err := f.reader.LatestBlockNumber(ctx)
	if err != nil {
		f.logger.Warn("skip caching, latest block unavailable", zap.String("chain", f.profile.Name), zap.Error(err))
		return
	}

	var stored int
	for _, job := range jobs {
		if !job.fresh || !f.profile.IsFinalized(job.block, head) {
			continue
		}
		value, err := json.Marshal(job.raws)
		if err != nil {
			f.logger.Warn("marshal cache entry", zap.Uint64("block", job.block), zap.Error(err))
			continue
		}
		if err := f.store.Put(ctx, job.key, value); err != nil {
			f.logger.Warn("cache write failed", zap.Uint64("block", job.block), zap.Error(err))
			continue
		}
		stored++
	}
	f.logger.Debug("cached responses",
		zap.String("chain", f.profile.Name),
		zap.Int("stored", stored),
		zap.Uint64("finalized_below", f.profile.FinalizedBelow(head)),
	)
}

func buildTable(full []multicall.Call, jobs []*blockJob, opts Options) (*Table, error) {
	calls := full[2:]
	columns := []string{ColumnTimestamp}
	if opts.IncludeBlock {
		columns = append(columns, ColumnBlock)
	}
	for _, c := range calls {
		columns = append(columns, c.Name)
	}

	rows := make([]Row, 0, len(jobs))
	for _, job := range jobs {
		values, err := multicall.Decode(full, job.raws)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", job.block, err)
		}
		ts, ok := values[1].(uint64)
		if !ok {
			return nil, fmt.Errorf("block %d: block timestamp unavailable", job.block)
		}
		block, ok := values[0].(uint64)
		if !ok {
			block = job.block
		}

		row := Row{Timestamp: ts, Block: block, Values: make(map[string]interface{}, len(calls))}
		for i, c := range calls {
			row.Values[c.Name] = values[i+2]
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Timestamp != rows[j].Timestamp {
			return rows[i].Timestamp < rows[j].Timestamp
		}
		return rows[i].Block < rows[j].Block
	})
	return &Table{Columns: columns, Rows: rows}, nil
}

// Records converts the table into sink rows, one per block.
func (t *Table) Records(chainID uint64) []model.TableRow {
	out := make([]model.TableRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, model.TableRow{
			ChainID:   chainID,
			Block:     row.Block,
			Timestamp: row.Timestamp,
			Values:    row.Values,
		})
	}
	return out
}
