package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/matchbot/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so they survive restarts. Expiry is left
// to Redis key TTLs
type RedisStore struct {
	Client *redis.Client
	ttl    time.Duration
}

// RedisOptions mirrors the fields of config.Redis
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore initializes a Redis client. Only Addr is mandatory
func NewRedisStore(opts RedisOptions, ttl time.Duration) *RedisStore {
	ro := &redis.Options{Addr: opts.Addr}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB != 0 {
		ro.DB = opts.DB
	}
	return &RedisStore{Client: redis.NewClient(ro), ttl: ttl}
}

// Ping checks the connection
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return apperr.Wrap(apperr.ErrTransport, "redis ping", err)
	}
	return nil
}

// Close releases the client
func (r *RedisStore) Close() error {
	return r.Client.Close()
}

// KeyForSession generates the Redis key for a user's session
func (r *RedisStore) KeyForSession(userID int64) string {
	return fmt.Sprintf("wizard:session:%d", userID)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	val, err := r.Client.Get(ctx, r.KeyForSession(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, apperr.Wrap(apperr.ErrTransport, "session get", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		// unreadable state is as good as none
		_ = r.Client.Del(ctx, r.KeyForSession(userID)).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStore) Set(ctx context.Context, s *Session) error {
	stored := *s
	stored.UpdatedAt = time.Now()
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	// always refresh TTL when updating
	if err := r.Client.Set(ctx, r.KeyForSession(s.UserID), data, r.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.ErrTransport, "session set", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.Client.Del(ctx, r.KeyForSession(userID)).Err(); err != nil {
		return apperr.Wrap(apperr.ErrTransport, "session delete", err)
	}
	return nil
}
