package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = errors.New("operation already in flight")

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen records key and reports whether it had been recorded before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard is a redis lease that rejects a second in-flight operation on the same key.
type Guard struct {
	rdb    *redis.Client
	prefix string
	lease  time.Duration
}

func NewGuard(rdb *redis.Client, prefix string, lease time.Duration) *Guard {
	return &Guard{rdb: rdb, prefix: prefix, lease: lease}
}

// Acquire takes the lease for key. The returned release func is safe to call more than once.
// The lease expires on its own if the holder dies.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	k := g.prefix + ":" + key
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, k, token, g.lease).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", k, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{k}, token).Err()
	}, nil
}
