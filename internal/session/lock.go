package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the same action is already running for a session.
var ErrLocked = errors.New("session: action already in progress")

// Locker serializes one action per session. Locks expire on their own so a
// crashed request never leaves the action blocked.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker uses SET NX with an expiry. Each holder stores its own token and
// release only deletes the key while it still carries that token, so a holder
// that outlived its TTL cannot free a lock someone else has since taken.
type RedisLocker struct {
	redis *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		panic("session: redis client required")
	}
	return &RedisLocker{redis: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := "funnel:lock:" + key
	owner := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, k, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("session: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.redis, []string{k}, owner).Err()
	}, nil
}

// MemoryLocker is the in-process Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	seq   uint64
	locks map[string]memoryLock
}

type memoryLock struct {
	owner   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{now: time.Now, locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return nil, ErrLocked
	}
	l.seq++
	owner := l.seq
	l.locks[key] = memoryLock{owner: owner, expires: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		if l.locks[key].owner == owner {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}, nil
}
