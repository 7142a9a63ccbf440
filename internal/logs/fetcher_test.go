package logs

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/decode"
)

func vaultEvent(t *testing.T, name string) abi.Event {
	t.Helper()
	parsed, err := decode.VaultABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event, ok := parsed.Events[name]
	if !ok {
		t.Fatalf("missing event %s", name)
	}
	return event
}

func transferLog(t *testing.T, event abi.Event, block uint64, txIndex, logIndex uint, value int64) types.Log {
	t.Helper()
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(value))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	return types.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
			common.BytesToHash(common.HexToAddress("0x3333333333333333333333333333333333333333").Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxIndex:     txIndex,
		Index:       logIndex,
	}
}

func TestFetcherRejectsInvertedRangeBeforeAnyCall(t *testing.T) {
	transport := newFakeTransport(100)
	fetcher := NewFetcher(transport, chain.Profile{Name: "eth"}, FetcherConfig{}, nil, nil, nil)

	_, err := fetcher.FetchLogs(context.Background(), Query{}, 100, 99)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := fetcher.FetchEvents(context.Background(), vaultEvent(t, "Transfer"), nil, 100, 99); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange from FetchEvents, got %v", err)
	}
	if transport.callCount() != 0 {
		t.Fatalf("expected no network calls, got %d", transport.callCount())
	}
}

func TestFetcherSingleBlockRange(t *testing.T) {
	transport := newFakeTransport(41, 42, 43)
	fetcher := NewFetcher(transport, chain.Profile{Name: "eth"}, FetcherConfig{}, nil, nil, nil)

	logs, err := fetcher.FetchLogs(context.Background(), Query{}, 42, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].BlockNumber != 42 {
		t.Fatalf("expected the single log at block 42, got %v", blocksOf(logs))
	}
}

func TestFetcherUsesProfileChunkSize(t *testing.T) {
	transport := newFakeTransport(5, 150, 299)
	profile := chain.Profile{Name: "base", ChunkSize: 100}
	fetcher := NewFetcher(transport, profile, FetcherConfig{}, nil, nil, nil)

	if _, err := fetcher.FetchLogs(context.Background(), Query{}, 0, 299); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.callCount() != 3 {
		t.Fatalf("expected 3 chunk calls, got %d", transport.callCount())
	}

	override := newFakeTransport(5, 150, 299)
	fetcher = NewFetcher(override, profile, FetcherConfig{ChunkSize: 50}, nil, nil, nil)
	if _, err := fetcher.FetchLogs(context.Background(), Query{}, 0, 299); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if override.callCount() != 6 {
		t.Fatalf("expected 6 chunk calls with override, got %d", override.callCount())
	}
}

func TestFetcherFetchEventsDecodesSorted(t *testing.T) {
	event := vaultEvent(t, "Transfer")
	transport := &fakeTransport{maxWidth: 10}
	transport.logs = []types.Log{
		transferLog(t, event, 3, 1, 5, 30),
		transferLog(t, event, 3, 0, 2, 20),
		transferLog(t, event, 27, 0, 0, 40),
		transferLog(t, event, 1, 0, 0, 10),
	}
	fetcher := NewFetcher(transport, chain.Profile{Name: "sonic", ChunkSize: 16}, FetcherConfig{}, nil, nil, nil)

	table, err := fetcher.FetchEvents(context.Background(), event, nil, 0, 35)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(table.Rows))
	}
	for i, want := range []int64{10, 20, 30, 40} {
		value, ok := table.Rows[i]["value"].(*big.Int)
		if !ok || value.Int64() != want {
			t.Fatalf("row %d value mismatch: %v", i, table.Rows[i]["value"])
		}
	}
}

func TestFetcherEmptyRangeKeepsSchema(t *testing.T) {
	event := vaultEvent(t, "Withdraw")
	fetcher := NewFetcher(&fakeTransport{}, chain.Profile{Name: "eth"}, FetcherConfig{}, nil, nil, nil)

	table, err := fetcher.FetchEvents(context.Background(), event, nil, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 0 || len(table.Columns) != len(event.Inputs)+len(decode.MetadataColumns) {
		t.Fatalf("expected empty table with full schema, got %v", table.Columns)
	}
}

func TestEventQueryTopic0(t *testing.T) {
	event := vaultEvent(t, "Deposit")
	q := EventQuery(event, []common.Address{common.HexToAddress("0x1")})
	if len(q.Topics) != 1 || q.Topics[0][0] != event.ID {
		t.Fatalf("topic0 filter mismatch: %v", q.Topics)
	}
}
