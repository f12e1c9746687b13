// Package redis implements store.Conn on Redis. Job records and attachment
// blobs are plain string keys, queues are Lists, and every primitive maps
// onto a single Redis command (or one MULTI/EXEC transaction for the
// remove-and-append transfer).
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	conn := redisstore.New(client)
//	if err := conn.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mrexodia/sjq/store"
)

// Compile-time interface check.
var _ store.Conn = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.Conn backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// SetNX stores value under key only if the key is absent.
func (s *Store) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("sjq/redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

// SetNXGet stores value under key only if the key is absent and returns the
// previous value. Maps onto SET key value NX GET.
func (s *Store) SetNXGet(ctx context.Context, key, value string) (string, bool, error) {
	prev, err := s.client.SetArgs(ctx, key, value, goredis.SetArgs{
		Mode: "NX",
		Get:  true,
	}).Result()
	if err != nil {
		// Nil reply means no previous value: the set succeeded.
		if errors.Is(err, goredis.Nil) {
			return "", true, nil
		}
		return "", false, fmt.Errorf("sjq/redis: setnxget %s: %w", key, err)
	}
	// A previous value blocked the set.
	return prev, false, nil
}

// Get fetches the value under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sjq/redis: get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key unconditionally.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("sjq/redis: set %s: %w", key, err)
	}
	return nil
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("sjq/redis: del %s: %w", key, err)
	}
	return nil
}

// RPush appends value to the tail of the list at key.
func (s *Store) RPush(ctx context.Context, key, value string) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("sjq/redis: rpush %s: %w", key, err)
	}
	return nil
}

// BLMoveHeadTail atomically moves the head of src to the tail of dst,
// blocking up to timeout.
func (s *Store) BLMoveHeadTail(ctx context.Context, src, dst string, timeout time.Duration) (string, bool, error) {
	val, err := s.client.BLMove(ctx, src, dst, "LEFT", "RIGHT", timeout).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sjq/redis: blmove %s -> %s: %w", src, dst, err)
	}
	s.logger.Debug("blmove",
		slog.String("src", src),
		slog.String("dst", dst),
		slog.String("value", val))
	return val, true, nil
}

// LMoveTailHead atomically moves the tail of src to the head of dst.
func (s *Store) LMoveTailHead(ctx context.Context, src, dst string) (string, bool, error) {
	val, err := s.client.LMove(ctx, src, dst, "RIGHT", "LEFT").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sjq/redis: lmove %s -> %s: %w", src, dst, err)
	}
	s.logger.Debug("lmove",
		slog.String("src", src),
		slog.String("dst", dst),
		slog.String("value", val))
	return val, true, nil
}

// LLen returns the length of the list at key.
func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("sjq/redis: llen %s: %w", key, err)
	}
	return n, nil
}

// LRemTail removes one occurrence of value from the list at key, searching
// from the tail.
func (s *Store) LRemTail(ctx context.Context, key, value string) (int64, error) {
	n, err := s.client.LRem(ctx, key, -1, value).Result()
	if err != nil {
		return 0, fmt.Errorf("sjq/redis: lrem %s: %w", key, err)
	}
	return n, nil
}

// LRemTailPush removes one occurrence of value from rem and appends it to
// push inside one MULTI/EXEC transaction, so the value is never observable
// in both lists at once.
func (s *Store) LRemTailPush(ctx context.Context, rem, push, value string) error {
	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, rem, -1, value)
	pipe.RPush(ctx, push, value)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sjq/redis: lrem+rpush %s -> %s: %w", rem, push, err)
	}
	s.logger.Debug("lrem+rpush",
		slog.String("src", rem),
		slog.String("dst", push),
		slog.String("value", value))
	return nil
}

// LIndex returns the element at index of the list at key.
func (s *Store) LIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	val, err := s.client.LIndex(ctx, key, index).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sjq/redis: lindex %s: %w", key, err)
	}
	return val, true, nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
