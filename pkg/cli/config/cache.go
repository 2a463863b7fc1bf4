package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/redis"
	"github.com/secmon-lab/mnemosyne/pkg/repository/ristretto"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Cache holds CLI flags for the cache memory tier
type Cache struct {
	backend       string
	redisAddr     string
	redisPassword string
	redisDB       int

	redisClient *redis.Client
	ristretto   *ristretto.Cache
}

// Flags returns CLI flags for cache configuration
func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cache-backend",
			Usage:       "Cache memory backend (redis or ristretto)",
			Value:       "ristretto",
			Sources:     cli.EnvVars("MNEMOSYNE_CACHE_BACKEND"),
			Destination: &c.backend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis server address (required when using redis backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_ADDR"),
			Destination: &c.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis server password",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_PASSWORD"),
			Destination: &c.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("MNEMOSYNE_REDIS_DB"),
			Destination: &c.redisDB,
		},
	}
}

// Configure initializes and returns the cache store based on the
// configured backend. opTimeout bounds every cache operation on
// networked backends.
func (c *Cache) Configure(opTimeout time.Duration) (interfaces.CacheStore, error) {
	switch c.backend {
	case "redis":
		if c.redisAddr == "" {
			return nil, goerr.New("redis-addr is required when using redis backend",
				goerr.V(FlagKey, "redis-addr"))
		}
		client, err := redis.New(c.redisAddr, c.redisPassword, c.redisDB,
			redis.WithOpTimeout(opTimeout))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize redis cache")
		}
		c.redisClient = client
		logging.Default().Info("Using Redis cache store", "addr", c.redisAddr, "db", c.redisDB)
		return client, nil

	case "ristretto":
		cache, err := ristretto.New()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize ristretto cache")
		}
		c.ristretto = cache
		logging.Default().Info("Using in-process ristretto cache store")
		return cache, nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "cache-backend must be redis or ristretto",
			goerr.V(BackendKey, c.backend))
	}
}

// Close releases the cache backend
func (c *Cache) Close() error {
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	if c.ristretto != nil {
		return c.ristretto.Close()
	}
	return nil
}
