package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autopoolScope/internal/model"
	"autopoolScope/internal/storage"
)

// Store provides Postgres persistence for fetched tables. Rows live in a generic
// fetched_rows table with a JSONB payload; table_state tracks when each table
// was last written and fetch_state holds named checkpoints.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WriteTable upserts rows and marks the table as updated.
func (s *Store) WriteTable(ctx context.Context, name string, rows []model.TableRow) error {
	if name == "" {
		return fmt.Errorf("table name required")
	}
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		payload, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("marshal row at block %d: %w", row.Block, err)
		}
		batch.Queue(`
			INSERT INTO fetched_rows (
				table_name, chain_id, block, row_key, block_ts, payload, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (table_name, chain_id, block, row_key)
			DO UPDATE SET
				block_ts = EXCLUDED.block_ts,
				payload = EXCLUDED.payload,
				updated_at = now()
		`,
			name,
			int64(row.ChainID),
			int64(row.Block),
			row.Key,
			timestampArg(row.Timestamp),
			payload,
		)
	}
	batch.Queue(`
		INSERT INTO table_state (name, updated_at)
		VALUES ($1, now())
		ON CONFLICT (name) DO UPDATE SET updated_at = now()
	`, name)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("write table %s: %w", name, err)
		}
	}
	return nil
}

// LoadTable returns rows of name whose payload contains every where entry.
func (s *Store) LoadTable(ctx context.Context, name string, where map[string]interface{}) ([]model.TableRow, error) {
	filter, err := whereFilter(where)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, block, row_key, COALESCE(block_ts, 0), payload
		FROM fetched_rows
		WHERE table_name = $1 AND payload @> $2::jsonb
		ORDER BY block, row_key
	`, name, string(filter))
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}
	defer rows.Close()

	var out []model.TableRow
	for rows.Next() {
		var (
			chainID, block, ts int64
			key                string
			payload            []byte
		)
		if err := rows.Scan(&chainID, &block, &key, &ts, &payload); err != nil {
			return nil, err
		}
		values, err := decodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload of %s at block %d: %w", name, block, err)
		}
		row := model.TableRow{ChainID: uint64(chainID), Block: uint64(block), Timestamp: uint64(ts), Key: key, Values: values}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ShouldUpdateTable reports whether name was never written or is older than maxLatency.
func (s *Store) ShouldUpdateTable(ctx context.Context, name string, maxLatency time.Duration) (bool, error) {
	var updatedAt time.Time
	row := s.pool.QueryRow(ctx, `SELECT updated_at FROM table_state WHERE name=$1`, name)
	if err := row.Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return storage.IsStale(updatedAt, s.now(), maxLatency), nil
}

// LoadState returns the last processed block for a named fetch.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM fetch_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a named fetch.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

func decodePayload(payload []byte) (map[string]interface{}, error) {
	var values map[string]interface{}
	if err := storage.UnmarshalExact(payload, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func whereFilter(where map[string]interface{}) ([]byte, error) {
	if len(where) == 0 {
		return []byte("{}"), nil
	}
	filter, err := json.Marshal(where)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	return filter, nil
}

func timestampArg(ts uint64) interface{} {
	if ts == 0 {
		return nil
	}
	return int64(ts)
}
