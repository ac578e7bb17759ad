package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived mutual exclusion across processes.
type Locker struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewLocker(rdb goredis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = "lock"
	}
	return &Locker{rdb: rdb, prefix: prefix}
}

// TryLock takes key for ttl. ok is false when someone else holds it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()

	ok, err = l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %q: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.rdb, []string{full}, token).Err()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("redis unlock %q: %w", full, err)
		}
		return nil
	}, true, nil
}
