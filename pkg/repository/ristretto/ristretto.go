package ristretto

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// Cache is an in-process CacheStore for single-node deployments and
// tests. Ristretto cannot enumerate its keys, so a side index tracks
// every live key with its expiry; Keys prunes the index lazily.
type Cache struct {
	cache *ristretto.Cache

	mu    sync.Mutex
	index map[string]time.Time // key to expiry, zero means no expiry
}

var _ interfaces.CacheStore = &Cache{}

type Option func(*ristretto.Config)

// WithMaxCost overrides the total cache budget in bytes
func WithMaxCost(bytes int64) Option {
	return func(cfg *ristretto.Config) {
		cfg.MaxCost = bytes
	}
}

func New(opts ...Option) (*Cache, error) {
	cfg := &ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     64 << 20,
		BufferItems: 64,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cache, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create ristretto cache")
	}

	return &Cache{
		cache: cache,
		index: make(map[string]time.Time),
	}, nil
}

func (c *Cache) Close() error {
	c.cache.Close()
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	if ttl < 0 {
		ttl = 0
	}

	if ok := c.cache.SetWithTTL(key, v, int64(len(key)+len(v)), ttl); !ok {
		return goerr.New("cache did not admit entry", goerr.V("key", key))
	}
	// SetWithTTL is asynchronous; Wait makes the entry visible to
	// subsequent Gets before we report success
	c.cache.Wait()

	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.index[key] = expiry
	c.mu.Unlock()

	return nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrCacheMiss, "key not found", goerr.V("key", key))
	}

	b, ok := v.([]byte)
	if !ok {
		return nil, goerr.New("unexpected cache value type", goerr.V("key", key))
	}

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.cache.Del(key)

	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()

	return nil
}

func (c *Cache) Keys(ctx context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(c.index))
	for k, expiry := range c.index {
		if !expiry.IsZero() && expiry.Before(now) {
			delete(c.index, k)
			continue
		}
		if _, ok := c.cache.Get(k); !ok {
			// evicted behind our back
			delete(c.index, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)
	return keys, nil
}
