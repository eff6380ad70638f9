package cron

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

const (
	defaultLockName = "cron-worker"
	defaultLockTTL  = time.Hour
)

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock holds a named Redis lock for one cron cycle. Every Acquire mints
// a new owner token, so releasing after the TTL lapsed never frees a lock
// another replica has since taken.
type RedisLock struct {
	locker redis.Locker
	key    string
	ttl    time.Duration
	owner  atomic.Pointer[string]
}

// NewRedisLock defaults to defaultLockName held for defaultLockTTL.
func NewRedisLock(locker redis.Locker, key string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for cron lock")
	}
	l := &RedisLock{locker: locker, key: key, ttl: ttl}
	if l.key == "" {
		l.key = defaultLockName
	}
	if l.ttl <= 0 {
		l.ttl = defaultLockTTL
	}
	return l, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.locker.AcquireLock(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if won {
		l.owner.Store(&token)
	}
	return won, nil
}

// Release is a no-op unless this instance holds the lock.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.owner.Swap(nil)
	if token == nil {
		return nil
	}
	if err := l.locker.ReleaseLock(ctx, l.key, *token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
