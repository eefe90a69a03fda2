package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 600 * time.Millisecond

// L2 is a Redis-backed Store. All operations fail soft: if Redis is
// unavailable, reads are misses and writes are dropped.
type L2 struct {
	rdb *redis.Client
}

// NewL2 creates a Redis-backed store.
func NewL2(addr, password string, db int) *L2 {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &L2{rdb: rdb}
}

// NewL2FromURL creates a Redis-backed store from a redis:// URL.
func NewL2FromURL(rawURL string) (*L2, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &L2{rdb: redis.NewClient(opts)}, nil
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		// Fail soft: treat connection errors as a miss.
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL. Errors are discarded.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	_ = l.rdb.Set(ctx, key, val, ttl).Err()
	return nil
}

// Delete removes key. Errors are discarded.
func (l *L2) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	_ = l.rdb.Del(ctx, key).Err()
	return nil
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
