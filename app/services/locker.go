package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived named locks. Acquired is false when another holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// releaseScript deletes the lock only when it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rc     *redis.Client
	prefix string
}

// NewRedisLocker returns a SETNX-based locker. With a nil client it falls back to an in-process locker.
func NewRedisLocker(rc *redis.Client, prefix string) Locker {
	if rc == nil {
		return NewLocalLocker()
	}
	return &redisLocker{rc: rc, prefix: prefix}
}

func (l *redisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := RedisKey(l.prefix, name)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		_ = releaseScript.Run(context.Background(), l.rc, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// localLocker serializes within a single process
type localLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
}

type localLock struct {
	token     string
	expiresAt time.Time
}

// NewLocalLocker returns an in-process Locker
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]localLock)}
}

func (l *localLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.locks[name]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.locks[name] = localLock{token: token, expiresAt: now.Add(ttl)}

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.locks[name]; ok && cur.token == token {
			delete(l.locks, name)
		}
	}
	return unlock, true, nil
}
