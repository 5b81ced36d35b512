package artifact

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of keys remembered by NewCached when size <= 0.
const DefaultCacheSize = 4096

// CachedStore remembers keys known to exist so that repeated Exists checks
// (the resume check on re-runs) do not hit the underlying store. Negative
// answers are never cached because another writer may create the key.
type CachedStore struct {
	Store
	known *lru.Cache[string, struct{}]
}

// NewCached wraps store with an LRU of positive Exists results.
func NewCached(store Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("creating artifact cache: %w", err)
	}
	return &CachedStore{Store: store, known: cache}, nil
}

func (c *CachedStore) Put(ctx context.Context, key string, data []byte) error {
	if err := c.Store.Put(ctx, key, data); err != nil {
		return err
	}
	c.known.Add(key, struct{}{})
	return nil
}

func (c *CachedStore) Exists(ctx context.Context, key string) (bool, error) {
	if c.known.Contains(key) {
		return true, nil
	}
	ok, err := c.Store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		c.known.Add(key, struct{}{})
	}
	return ok, nil
}

// Cached returns the number of keys currently remembered.
func (c *CachedStore) Cached() int {
	return c.known.Len()
}
