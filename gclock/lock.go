package gclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the Redis key used when none is configured.
	DefaultKey = "gosession:gc:lease"
	// DefaultTTL bounds how long a crashed holder can keep others from sweeping.
	DefaultTTL = 30 * time.Second
)

// ErrNilClient is returned by New when no Redis client is supplied.
var ErrNilClient = errors.New("gclock: nil redis client")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLua = redis.NewScript(releaseScript)

// Locker hands out the sweep lease.
type Locker struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// Lease is a held sweep lease.
type Lease struct {
	locker *Locker
	token  string
}

// New creates a Locker on key with the given lease TTL. Empty key and
// non-positive ttl fall back to the defaults.
func New(client redis.UniversalClient, key string, ttl time.Duration) (*Locker, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{redis: client, key: key, ttl: ttl}, nil
}

// Key returns the Redis key guarding the lease.
func (l *Locker) Key() string {
	return l.key
}

// TryAcquire attempts to take the lease without waiting. It returns
// acquired=false with a nil error when another holder has it.
func (l *Locker) TryAcquire(ctx context.Context) (*Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("gclock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{locker: l, token: token}, true, nil
}

// Release frees the lease if it is still held by this holder. Releasing an
// expired or already released lease is not an error.
func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil || ls.locker == nil {
		return nil
	}
	l := ls.locker
	if err := releaseLua.Run(ctx, l.redis, []string{l.key}, ls.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("gclock: release %s: %w", l.key, err)
	}
	ls.locker = nil
	return nil
}

// TryLock is TryAcquire shaped as an unlock callback, the form goSession.Store
// accepts through WithGCLocker.
func (l *Locker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	lease, ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lease.Release, true, nil
}
