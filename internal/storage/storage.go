package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"autopoolScope/internal/model"
)

// Storage defines a sink for raw log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// TableWriter persists fetched tables.
type TableWriter interface {
	WriteTable(ctx context.Context, name string, rows []model.TableRow) error
}

// TableLoader reads rows back, keeping those whose values equal every entry of where.
type TableLoader interface {
	LoadTable(ctx context.Context, name string, where map[string]interface{}) ([]model.TableRow, error)
}

// FreshnessChecker decides whether a table is older than the allowed latency.
type FreshnessChecker interface {
	ShouldUpdateTable(ctx context.Context, name string, maxLatency time.Duration) (bool, error)
}

// IsStale reports whether a table last written at updatedAt needs a refresh at now.
func IsStale(updatedAt, now time.Time, maxLatency time.Duration) bool {
	if updatedAt.IsZero() {
		return true
	}
	return now.Sub(updatedAt) > maxLatency
}

// UnmarshalExact decodes data into v keeping numbers as json.Number, so
// uint256 amounts above 2^53 load back without rounding.
func UnmarshalExact(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
