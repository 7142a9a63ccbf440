package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

const defaultTieredEntries = 4096

// Tiered keeps recently used entries in memory in front of a slower Store.
type Tiered struct {
	local  *lru.Cache
	remote Store
}

// NewTiered wraps remote with an LRU of size entries (<= 0 uses a default).
func NewTiered(remote Store, size int) (*Tiered, error) {
	if size <= 0 {
		size = defaultTieredEntries
	}
	local, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Tiered{local: local, remote: remote}, nil
}

func (t *Tiered) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if wanted, found := t.local.Get(string(key)); found {
		return wanted.([]byte), true, nil
	}

	value, ok, err := t.remote.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.local.Add(string(key), value)
	return value, true, nil
}

func (t *Tiered) Put(ctx context.Context, key, value []byte) error {
	if err := t.remote.Put(ctx, key, value); err != nil {
		return err
	}
	t.local.Add(string(key), value)
	return nil
}

func (t *Tiered) Close() error {
	t.local.Purge()
	return t.remote.Close()
}
