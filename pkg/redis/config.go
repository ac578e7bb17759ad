package redis

import (
	"time"

	"github.com/Alijeyrad/franchise_backend/config"
)

// Config holds Redis connection settings
type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeoutSeconds  int
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int

	// KeyPrefix namespaces cache entries and locks, e.g. "franchise".
	KeyPrefix string
}

func seconds(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

func (c Config) DialTimeout() time.Duration  { return seconds(c.DialTimeoutSeconds, 5) }
func (c Config) ReadTimeout() time.Duration  { return seconds(c.ReadTimeoutSeconds, 3) }
func (c Config) WriteTimeout() time.Duration { return seconds(c.WriteTimeoutSeconds, 3) }

// CachePrefix and LockPrefix derive the key namespaces from KeyPrefix.
func (c Config) CachePrefix() string { return c.KeyPrefix + ":cache:" }
func (c Config) LockPrefix() string  { return c.KeyPrefix + ":lock" }

// FromCentralConfig converts central config.RedisConfig to package Config.
// Unset pool sizes fall back to 10 connections with 2 idle.
func FromCentralConfig(c config.RedisConfig) Config {
	cfg := Config{
		Addr:                c.Addr,
		DB:                  c.DB,
		Username:            c.Username,
		Password:            c.Password,
		PoolSize:            c.PoolSize,
		MinIdleConns:        c.MinIdleConns,
		DialTimeoutSeconds:  c.DialTimeoutSeconds,
		ReadTimeoutSeconds:  c.ReadTimeoutSeconds,
		WriteTimeoutSeconds: c.WriteTimeoutSeconds,
		KeyPrefix:           c.KeyPrefix,
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdleConns <= 0 {
		cfg.MinIdleConns = 2
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "franchise"
	}
	return cfg
}
