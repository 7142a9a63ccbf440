package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autopoolScope/internal/model"
)

const logsFile = "logs.jsonl"

// JsonlStorage writes raw logs and fetched tables as JSON lines under a directory.
type JsonlStorage struct {
	dir string
	mu  sync.Mutex
}

func NewJsonlStorage(dir string) *JsonlStorage {
	return &JsonlStorage{dir: dir}
}

func (s *JsonlStorage) tablePath(name string) string {
	return filepath.Join(s.dir, name+".jsonl")
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	lines := make([]interface{}, 0, len(logs))
	for _, record := range logs {
		lines = append(lines, record)
	}
	return s.appendLines(filepath.Join(s.dir, logsFile), lines)
}

// WriteTable appends rows to <dir>/<name>.jsonl.
func (s *JsonlStorage) WriteTable(_ context.Context, name string, rows []model.TableRow) error {
	if name == "" {
		return fmt.Errorf("table name required")
	}
	if len(rows) == 0 {
		return nil
	}
	lines := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row)
	}
	return s.appendLines(s.tablePath(name), lines)
}

func (s *JsonlStorage) appendLines(path string, lines []interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		data, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// LoadTable reads <dir>/<name>.jsonl. A missing file is an empty table.
func (s *JsonlStorage) LoadTable(_ context.Context, name string, where map[string]interface{}) ([]model.TableRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.tablePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	defer file.Close()

	var rows []model.TableRow
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var row model.TableRow
		if err := UnmarshalExact(scanner.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("parse table %s: %w", name, err)
		}
		if matches(row, where) {
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	return rows, nil
}

// ShouldUpdateTable compares the table file's modification time with maxLatency.
func (s *JsonlStorage) ShouldUpdateTable(_ context.Context, name string, maxLatency time.Duration) (bool, error) {
	stat, err := os.Stat(s.tablePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("stat table %s: %w", name, err)
	}
	return IsStale(stat.ModTime(), time.Now(), maxLatency), nil
}

func matches(row model.TableRow, where map[string]interface{}) bool {
	for column, want := range where {
		got, ok := row.Values[column]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
