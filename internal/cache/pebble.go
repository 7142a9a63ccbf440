package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/sstable/block"
)

// Pebble is a disk-backed Store with one database directory per chain.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the cache for chainID under dir.
func OpenPebble(dir string, chainID uint64) (*Pebble, error) {
	chainPath := filepath.Join(dir, fmt.Sprintf("%d", chainID))

	opts := &pebble.Options{}

	// Multicall responses are small and highly repetitive.
	opts.ApplyCompressionSettings(func() pebble.DBCompressionSettings {
		return pebble.UniformDBCompressionSettings(block.BalancedCompression)
	})
	opts.MemTableSize = 16 << 20

	db, err := pebble.Open(chainPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	value, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %x: %w", key, err)
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

func (p *Pebble) Put(_ context.Context, key, value []byte) error {
	if err := p.db.Set(key, value, pebble.NoSync); err != nil {
		return fmt.Errorf("cache put %x: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (p *Pebble) Close() error {
	if err := p.db.Flush(); err != nil {
		return err
	}
	return p.db.Close()
}
