package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
// KEYS[1] = lock key
// ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Defaults for RedisLocker.
const (
	DefaultTTL       = 30 * time.Second
	DefaultRetryWait = 50 * time.Millisecond
)

// ErrLockLost is returned by the release path when the lock expired and was
// taken by someone else before release.
var ErrLockLost = errors.New("lock lost before release")

// RedisLocker is a Locker shared between processes, built on SET NX PX.
// A holder that crashes releases the lock when the TTL expires.
type RedisLocker struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	onRelease func(key string, err error)
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock survives without release.
func WithTTL(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithRetryWait sets the poll interval while waiting for a held lock.
func WithRetryWait(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryWait = d
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(p string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = p
	}
}

// WithReleaseHook is called after every release with the release error, if
// any. Useful for logging lost locks.
func WithReleaseHook(fn func(key string, err error)) RedisOption {
	return func(l *RedisLocker) {
		l.onRelease = fn
	}
}

// NewRedisLocker creates a locker on an existing client.
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:    client,
		prefix:    "halo:lock:",
		ttl:       DefaultTTL,
		retryWait: DefaultRetryWait,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisLockerAddr connects to a single Redis server.
func NewRedisLockerAddr(addr, password string, db int, opts ...RedisOption) *RedisLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLocker(rdb, opts...)
}

// Ping checks connectivity.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Lock polls SET NX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		err := l.release(full, token)
		if l.onRelease != nil {
			l.onRelease(key, err)
		}
	}, nil
}

func (l *RedisLocker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
