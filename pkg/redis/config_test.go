package redis

import (
	"testing"
	"time"

	"github.com/Alijeyrad/franchise_backend/config"
)

func TestFromCentralConfig(t *testing.T) {
	tests := []struct {
		name  string
		in    config.RedisConfig
		pool  int
		idle  int
		dial  time.Duration
		cache string
		lock  string
	}{
		{
			name: "defaults", in: config.RedisConfig{Addr: "localhost:6379"},
			pool: 10, idle: 2, dial: 5 * time.Second,
			cache: "franchise:cache:", lock: "franchise:lock",
		},
		{
			name: "explicit", in: config.RedisConfig{Addr: "redis:6379", PoolSize: 50, MinIdleConns: 8, DialTimeoutSeconds: 1, KeyPrefix: "acme"},
			pool: 50, idle: 8, dial: time.Second,
			cache: "acme:cache:", lock: "acme:lock",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromCentralConfig(tt.in)
			if c.PoolSize != tt.pool || c.MinIdleConns != tt.idle {
				t.Errorf("pool = %d/%d, want %d/%d", c.PoolSize, c.MinIdleConns, tt.pool, tt.idle)
			}
			if c.DialTimeout() != tt.dial {
				t.Errorf("DialTimeout = %v, want %v", c.DialTimeout(), tt.dial)
			}
			if c.ReadTimeout() != 3*time.Second && tt.in.ReadTimeoutSeconds == 0 {
				t.Errorf("ReadTimeout default = %v", c.ReadTimeout())
			}
			if c.CachePrefix() != tt.cache || c.LockPrefix() != tt.lock {
				t.Errorf("prefixes = %q %q", c.CachePrefix(), c.LockPrefix())
			}
		})
	}
}

func TestNewRedisRejectsEmptyAddr(t *testing.T) {
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
