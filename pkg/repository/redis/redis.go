package redis

import (
	"context"
	"errors"
	"net"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// Client is the Redis-backed cache tier. Every operation runs under its
// own deadline so a dead Redis degrades the caller instead of hanging it.
type Client struct {
	client    *redis.Client
	opTimeout time.Duration
}

var _ interfaces.CacheStore = &Client{}

type Option func(*Client)

// WithOpTimeout overrides the per-operation deadline
func WithOpTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.opTimeout = d
	}
}

func New(addr, password string, db int, opts ...Option) (*Client, error) {
	c := &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		opTimeout: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapOpErr(err, "redis set failed", key)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, goerr.Wrap(interfaces.ErrCacheMiss, "key not found", goerr.V("key", key))
		}
		return nil, wrapOpErr(err, "redis get failed", key)
	}
	return value, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return wrapOpErr(err, "redis delete failed", key)
	}
	return nil
}

func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	keys := make([]string, 0)
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, wrapOpErr(err, "redis scan failed", prefix)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// wrapOpErr maps transport-level failures to ErrBackendUnavailable so
// callers can degrade instead of aborting
func wrapOpErr(err error, msg, key string) error {
	if isUnavailable(err) {
		return goerr.Wrap(interfaces.ErrBackendUnavailable, msg,
			goerr.V("key", key), goerr.V("cause", err.Error()))
	}
	return goerr.Wrap(err, msg, goerr.V("key", key))
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
