package decode

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Metadata column names added to every decoded row.
const (
	ColumnEvent    = "event"
	ColumnBlock    = "block"
	ColumnHash     = "hash"
	ColumnTxIndex  = "transaction_index"
	ColumnLogIndex = "log_index"
)

// MetadataColumns lists the metadata columns in output order.
var MetadataColumns = []string{ColumnEvent, ColumnBlock, ColumnHash, ColumnTxIndex, ColumnLogIndex}

const (
	defaultParallelThreshold = 10_000
	defaultWorkers           = 8
)

// Row maps a column name to a decoded value.
type Row map[string]interface{}

// Table is a rectangular set of decoded rows for one event type.
type Table struct {
	Event   string
	Columns []string
	Rows    []Row
}

// Config tunes the parallel decode path.
type Config struct {
	// ParallelThreshold is the log count above which decoding fans out to workers.
	ParallelThreshold int
	Workers           int
}

// Decoder turns raw logs of one event type into a Table.
type Decoder struct {
	cfg    Config
	logger *zap.Logger
}

func NewDecoder(cfg Config, logger *zap.Logger) *Decoder {
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = defaultParallelThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{cfg: cfg, logger: logger}
}

type decodedLog struct {
	block    uint64
	txIndex  uint64
	logIndex uint64
	row      Row
}

// Decode decodes logs into a table sorted by (block, transaction_index, log_index).
// Zero logs yield an empty table that still carries the full column set.
func (d *Decoder) Decode(ctx context.Context, event abi.Event, logs []types.Log) (*Table, error) {
	if err := checkColumnNames(event); err != nil {
		return nil, err
	}

	var (
		decoded []decodedLog
		err     error
	)
	if len(logs) <= d.cfg.ParallelThreshold {
		decoded, err = decodeAll(event, logs)
	} else {
		decoded, err = d.decodeParallel(ctx, event, logs)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(decoded, func(i, j int) bool {
		a, b := decoded[i], decoded[j]
		if a.block != b.block {
			return a.block < b.block
		}
		if a.txIndex != b.txIndex {
			return a.txIndex < b.txIndex
		}
		return a.logIndex < b.logIndex
	})

	rows := make([]Row, 0, len(decoded))
	for _, entry := range decoded {
		rows = append(rows, entry.row)
	}

	return &Table{
		Event:   event.Name,
		Columns: columnsFor(event, rows),
		Rows:    rows,
	}, nil
}

func (d *Decoder) decodeParallel(ctx context.Context, event abi.Event, logs []types.Log) ([]decodedLog, error) {
	chunkSize := (len(logs) + d.cfg.Workers - 1) / d.cfg.Workers
	chunks := make([][]decodedLog, (len(logs)+chunkSize-1)/chunkSize)

	d.logger.Debug("parallel decode",
		zap.String("event", event.Name),
		zap.Int("logs", len(logs)),
		zap.Int("chunks", len(chunks)),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		i := i
		start := i * chunkSize
		end := start + chunkSize
		if end > len(logs) {
			end = len(logs)
		}
		part := logs[start:end]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := decodeAll(event, part)
			if err != nil {
				return err
			}
			chunks[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]decodedLog, 0, len(logs))
	for _, chunk := range chunks {
		merged = append(merged, chunk...)
	}
	return merged, nil
}

func decodeAll(event abi.Event, logs []types.Log) ([]decodedLog, error) {
	out := make([]decodedLog, 0, len(logs))
	for _, log := range logs {
		entry, err := decodeLog(event, log)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeLog(event abi.Event, log types.Log) (decodedLog, error) {
	topics := log.Topics
	if !event.Anonymous {
		if len(topics) == 0 {
			return decodedLog{}, fmt.Errorf("log %s:%d: missing topics", log.TxHash.Hex(), log.Index)
		}
		if topics[0] != event.ID {
			return decodedLog{}, fmt.Errorf("log %s:%d: topic0 %s is not %s", log.TxHash.Hex(), log.Index, topics[0].Hex(), event.Name)
		}
		topics = topics[1:]
	}

	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed) {
		return decodedLog{}, fmt.Errorf("log %s:%d: expected %d indexed topics, got %d", log.TxHash.Hex(), log.Index, len(indexed), len(topics))
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
		return decodedLog{}, fmt.Errorf("log %s:%d: parse topics: %w", log.TxHash.Hex(), log.Index, err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return decodedLog{}, fmt.Errorf("log %s:%d: unpack %s: %w", log.TxHash.Hex(), log.Index, event.Name, err)
	}

	row := make(Row, len(values)+len(MetadataColumns))
	for _, arg := range event.Inputs {
		value := values[arg.Name]
		if !arg.Indexed && isListType(arg.Type) {
			for i, item := range listItems(value) {
				row[indexedColumn(arg.Name, i)] = normalizeValue(item)
			}
			continue
		}
		row[arg.Name] = normalizeValue(value)
	}

	row[ColumnEvent] = event.Name
	row[ColumnBlock] = log.BlockNumber
	row[ColumnHash] = strings.ToLower(log.TxHash.Hex())
	row[ColumnTxIndex] = uint64(log.TxIndex)
	row[ColumnLogIndex] = uint64(log.Index)

	return decodedLog{
		block:    log.BlockNumber,
		txIndex:  uint64(log.TxIndex),
		logIndex: uint64(log.Index),
		row:      row,
	}, nil
}

// columnsFor lists event fields (arrays expanded to name_i) followed by metadata.
// Dynamic arrays expand to the longest value seen; with no rows they keep the bare name.
func columnsFor(event abi.Event, rows []Row) []string {
	columns := make([]string, 0, len(event.Inputs)+len(MetadataColumns))
	for _, arg := range event.Inputs {
		if arg.Indexed || !isListType(arg.Type) {
			columns = append(columns, arg.Name)
			continue
		}

		width := 0
		if arg.Type.T == abi.ArrayTy {
			width = arg.Type.Size
		} else {
			for _, row := range rows {
				n := 0
				for {
					if _, ok := row[indexedColumn(arg.Name, n)]; !ok {
						break
					}
					n++
				}
				if n > width {
					width = n
				}
			}
		}

		if width == 0 {
			columns = append(columns, arg.Name)
			continue
		}
		for i := 0; i < width; i++ {
			columns = append(columns, indexedColumn(arg.Name, i))
		}
	}
	return append(columns, MetadataColumns...)
}

// checkColumnNames rejects events whose arguments would be overwritten by metadata columns.
func checkColumnNames(event abi.Event) error {
	for _, arg := range event.Inputs {
		for _, column := range MetadataColumns {
			if arg.Name == column {
				return fmt.Errorf("event %s: argument %q collides with a metadata column", event.Name, arg.Name)
			}
		}
	}
	return nil
}

func indexedColumn(name string, i int) string {
	return fmt.Sprintf("%s_%d", name, i)
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func isListType(t abi.Type) bool {
	return t.T == abi.SliceTy || t.T == abi.ArrayTy
}

// SortKey returns the ordering key of a decoded row.
func SortKey(row Row) (block, txIndex, logIndex uint64) {
	block, _ = row[ColumnBlock].(uint64)
	txIndex, _ = row[ColumnTxIndex].(uint64)
	logIndex, _ = row[ColumnLogIndex].(uint64)
	return block, txIndex, logIndex
}
