package logs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/model"
	"autopoolScope/internal/storage"
)

type staticHead uint64

func (h staticHead) LatestBlockNumber(context.Context) (uint64, error) { return uint64(h), nil }

type memoryState struct {
	blocks map[string]uint64
}

func (m *memoryState) LoadState(_ context.Context, name string) (uint64, bool, error) {
	block, ok := m.blocks[name]
	return block, ok, nil
}

func (m *memoryState) SaveState(_ context.Context, name string, block uint64) error {
	m.blocks[name] = block
	return nil
}

func TestSyncerStoresAndResumes(t *testing.T) {
	event := vaultEvent(t, "Transfer")
	transport := &fakeTransport{maxWidth: 20}
	transport.logs = []types.Log{
		transferLog(t, event, 5, 0, 0, 1),
		transferLog(t, event, 40, 0, 1, 2),
		transferLog(t, event, 90, 1, 0, 3),
	}

	dir := t.TempDir()
	sink := storage.NewJsonlStorage(dir)
	cp := NewFileCheckpoint(filepath.Join(dir, "checkpoint.json"))
	fetcher := NewFetcher(transport, chain.Profile{Name: "base", ChunkSize: 25}, FetcherConfig{}, nil, nil, nil)

	cfg := SyncConfig{Table: "transfers", Event: event, StepSize: 50}
	syncer := NewSyncer(cfg, 8453, fetcher, staticHead(60), cp, sink, sink, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	last, ok, err := cp.Load(context.Background())
	if err != nil || !ok || last != 60 {
		t.Fatalf("checkpoint mismatch: %d %v %v", last, ok, err)
	}
	rows, err := sink.LoadTable(context.Background(), "transfers", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after first run, got %d", len(rows))
	}

	syncer = NewSyncer(cfg, 8453, fetcher, staticHead(100), cp, sink, sink, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	rows, err = sink.LoadTable(context.Background(), "transfers", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 3 || rows[2].Block != 90 {
		t.Fatalf("resume should only add block 90: %+v", rows)
	}
	if rows[2].ChainID != 8453 || rows[2].Values["event"] != "Transfer" {
		t.Fatalf("row mismatch: %+v", rows[2])
	}
}

type failingTable struct{}

func (failingTable) WriteTable(context.Context, string, []model.TableRow) error {
	return errors.New("disk full")
}

func TestSyncerDoesNotAdvanceOnSinkFailure(t *testing.T) {
	event := vaultEvent(t, "Transfer")
	transport := &fakeTransport{logs: []types.Log{transferLog(t, event, 5, 0, 0, 1)}}
	state := &memoryState{blocks: map[string]uint64{}}
	cp := NewNamedCheckpoint(state, "transfers")
	fetcher := NewFetcher(transport, chain.Profile{Name: "eth"}, FetcherConfig{}, nil, nil, nil)

	syncer := NewSyncer(SyncConfig{Table: "transfers", Event: event, ToBlock: 10}, 1, fetcher, nil, cp, nil, failingTable{}, nil)
	if err := syncer.Run(context.Background()); err == nil {
		t.Fatalf("expected sink error")
	}
	if _, ok := state.blocks["transfers"]; ok {
		t.Fatalf("checkpoint must not advance after a failed write")
	}
}

func TestSyncerNothingToDo(t *testing.T) {
	event := vaultEvent(t, "Transfer")
	transport := &fakeTransport{}
	state := &memoryState{blocks: map[string]uint64{"transfers": 100}}
	fetcher := NewFetcher(transport, chain.Profile{Name: "eth"}, FetcherConfig{}, nil, nil, nil)

	syncer := NewSyncer(SyncConfig{Table: "transfers", Event: event, ToBlock: 100}, 1, fetcher, nil, NewNamedCheckpoint(state, "transfers"), nil, failingTable{}, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.callCount() != 0 {
		t.Fatalf("expected no calls, got %d", transport.callCount())
	}
}

func TestBuildLogRecord(t *testing.T) {
	event := vaultEvent(t, "Transfer")
	log := transferLog(t, event, 12, 3, 4, 9)
	rec := NewLogRecord(1, "eth", "Transfer", log, time.Time{})
	if rec.BlockNumber != 12 || rec.TxIndex != 3 || rec.LogIndex != 4 || rec.Chain != "eth" {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if len(rec.Topics) != 3 || rec.Topics[0] != "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" {
		t.Fatalf("topics mismatch: %v", rec.Topics)
	}
}
