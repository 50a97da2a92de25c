package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

// LoginLimiter blocks an email after max failed logins inside window.
type LoginLimiter struct {
	store  *Store
	max    int
	window time.Duration
}

func (s *Store) LoginLimiter(max int, window time.Duration) *LoginLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginLimiter{store: s, max: max, window: window}
}

func loginFailKey(email string) string {
	return "login_fail:" + email
}

func (l *LoginLimiter) Blocked(ctx context.Context, email string) (bool, error) {
	n, err := l.store.rdb.Get(ctx, loginFailKey(email)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n >= l.max, nil
}

// RecordFailure increments the counter; the window starts at the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) error {
	key := loginFailKey(email)
	pipe := l.store.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	return l.store.rdb.Del(ctx, loginFailKey(email)).Err()
}
