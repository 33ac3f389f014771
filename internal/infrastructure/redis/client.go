package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amberops/workspace/internal/reliability/circuitbreaker"
)

// ErrNil is returned when a key does not exist
var ErrNil = redis.Nil

// Client wraps the Redis client with our custom methods. Every call goes
// through a circuit breaker; missing keys do not count as failures.
type Client struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a new Redis client
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, logger), nil
}

func newClient(rdb *redis.Client, logger *slog.Logger) *Client {
	cb := circuitbreaker.NewCircuitBreaker(5, 2, 10*time.Second)
	cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("redis circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &Client{rdb: rdb, breaker: cb, logger: logger}
}

func (c *Client) do(fn func() error) error {
	return c.breaker.Execute(fn, func(err error) bool { return !errors.Is(err, redis.Nil) })
}

// Set stores a value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.do(func() error { return c.rdb.Set(ctx, key, value, ttl).Err() })
}

// Get retrieves a value; missing keys return ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var out string
	err := c.do(func() error {
		var err error
		out, err = c.rdb.Get(ctx, key).Result()
		return err
	})
	return out, err
}

// Delete removes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.do(func() error { return c.rdb.Del(ctx, keys...).Err() })
}

// SAdd adds members to a set and refreshes its TTL
func (c *Client) SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.do(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.SAdd(ctx, key, args...)
			if ttl > 0 {
				p.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	})
}

// SMembers lists set members
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := c.do(func() error {
		var err error
		out, err = c.rdb.SMembers(ctx, key).Result()
		return err
	})
	return out, err
}

// SRem removes members from a set
func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.do(func() error { return c.rdb.SRem(ctx, key, args...).Err() })
}

// TTL returns the remaining TTL for a key (-1 if no TTL, -2 if not exists)
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	var out time.Duration
	err := c.do(func() error {
		var err error
		out, err = c.rdb.TTL(ctx, key).Result()
		return err
	})
	return out, err
}

// Exists reports how many of keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	var out int64
	err := c.do(func() error {
		var err error
		out, err = c.rdb.Exists(ctx, keys...).Result()
		return err
	})
	return out, err
}

// Scan collects every key matching pattern using cursor iteration
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	err := c.do(func() error {
		out = out[:0]
		iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
		for iter.Next(ctx) {
			out = append(out, iter.Val())
		}
		return iter.Err()
	})
	return out, err
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.do(func() error { return c.rdb.Ping(ctx).Err() })
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
