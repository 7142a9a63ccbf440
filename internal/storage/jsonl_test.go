package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autopoolScope/internal/model"
)

func TestJsonlPutLogBatch(t *testing.T) {
	dir := t.TempDir()
	s := NewJsonlStorage(dir)

	records := []model.LogRecord{
		{ChainID: 1, BlockNumber: 10, TxHash: "0xaa", LogIndex: 0},
		{ChainID: 1, BlockNumber: 11, TxHash: "0xbb", LogIndex: 3},
	}
	if err := s.PutLogBatch(records); err != nil {
		t.Fatalf("put logs: %v", err)
	}
	if err := s.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}

	file, err := os.Open(filepath.Join(dir, "logs.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.LogRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 || got[1].LogIndex != 3 {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestJsonlTableRoundTripWithFilter(t *testing.T) {
	ctx := context.Background()
	s := NewJsonlStorage(t.TempDir())

	rows := []model.TableRow{
		{ChainID: 1, Block: 5, Values: map[string]interface{}{"event": "Deposit", "assets": 10}},
		{ChainID: 1, Block: 6, Values: map[string]interface{}{"event": "Withdraw", "assets": 4}},
		{ChainID: 1, Block: 9, Values: map[string]interface{}{"event": "Deposit", "assets": 7}},
	}
	if err := s.WriteTable(ctx, "autopool_events", rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	all, err := s.LoadTable(ctx, "autopool_events", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}

	deposits, err := s.LoadTable(ctx, "autopool_events", map[string]interface{}{"event": "Deposit"})
	if err != nil {
		t.Fatalf("load filtered: %v", err)
	}
	if len(deposits) != 2 || deposits[1].Block != 9 {
		t.Fatalf("filter mismatch: %+v", deposits)
	}

	missing, err := s.LoadTable(ctx, "nothing_here", nil)
	if err != nil || missing != nil {
		t.Fatalf("missing table should load empty, got %v %v", missing, err)
	}
}

func TestJsonlTableKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	s := NewJsonlStorage(t.TempDir())

	assets, _ := new(big.Int).SetString("1000000000000000000001", 10)
	rows := []model.TableRow{
		{ChainID: 1, Block: 5, Values: map[string]interface{}{"assets": assets}},
		{ChainID: 1, Block: 6, Values: map[string]interface{}{"assets": big.NewInt(7)}},
	}
	if err := s.WriteTable(ctx, "deposits", rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.LoadTable(ctx, "deposits", map[string]interface{}{"assets": assets})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Block != 5 {
		t.Fatalf("exact amount filter mismatch: %+v", got)
	}
	n, ok := got[0].Values["assets"].(json.Number)
	if !ok || n.String() != "1000000000000000000001" {
		t.Fatalf("assets lost precision: %#v", got[0].Values["assets"])
	}
}

func TestJsonlShouldUpdateTable(t *testing.T) {
	ctx := context.Background()
	s := NewJsonlStorage(t.TempDir())

	stale, err := s.ShouldUpdateTable(ctx, "state", time.Hour)
	if err != nil || !stale {
		t.Fatalf("missing table should need an update: %v %v", stale, err)
	}

	if err := s.WriteTable(ctx, "state", []model.TableRow{{Block: 1, Values: map[string]interface{}{}}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale, err = s.ShouldUpdateTable(ctx, "state", time.Hour)
	if err != nil || stale {
		t.Fatalf("fresh table should not need an update: %v %v", stale, err)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !IsStale(time.Time{}, now, time.Hour) {
		t.Fatalf("zero time is always stale")
	}
	if IsStale(now.Add(-30*time.Minute), now, time.Hour) {
		t.Fatalf("30m old table is fresh under 1h latency")
	}
	if !IsStale(now.Add(-2*time.Hour), now, time.Hour) {
		t.Fatalf("2h old table is stale under 1h latency")
	}
}
