package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/infrastructure/config"
	"user-registry/internal/infrastructure/telemetry"
)

// Client is a traced string key/value connection. Every call gets its own
// client span; the redisotel hook adds the command spans underneath.
type Client struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

func options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxConnAge:      time.Duration(cfg.MaxConnAge) * time.Minute,
		PoolTimeout:     time.Duration(cfg.PoolTimeout) * time.Second,
		IdleTimeout:     time.Duration(cfg.IdleTimeout) * time.Minute,
	}
}

// NewClient dials cfg.Addr and fails unless the server answers a ping
func NewClient(ctx context.Context, cfg config.RedisConfig, tel *telemetry.Telemetry) (*Client, error) {
	rdb := redis.NewClient(options(cfg))
	rdb.AddHook(redisotel.NewTracingHook())

	c := &Client{rdb: rdb, tracer: tel.Tracer}
	if err := c.HealthCheck(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Connected to Redis user cache", nil,
		attribute.String("redis.addr", cfg.Addr),
		attribute.Int("redis.db", cfg.DB),
	)
	return c, nil
}

// HealthCheck pings the server
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.traced(ctx, "ping", nil, func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	})
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Put stores value under key for ttl
func (c *Client) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.traced(ctx, "set", []string{key}, func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
}

// Fetch reads key. A missing key is ok == false with a nil error.
func (c *Client) Fetch(ctx context.Context, key string) (value string, ok bool, err error) {
	err = c.traced(ctx, "get", []string{key}, func(ctx context.Context) error {
		value, err = c.rdb.Get(ctx, key).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return value, err == nil, err
}

// Drop deletes keys; absent keys are not an error
func (c *Client) Drop(ctx context.Context, keys ...string) error {
	return c.traced(ctx, "del", keys, func(ctx context.Context) error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

func (c *Client) traced(ctx context.Context, op string, keys []string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "redis."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(attribute.String("redis.operation", op))
	if len(keys) > 0 {
		span.SetAttributes(attribute.StringSlice("redis.keys", keys))
	}

	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		span.SetAttributes(attribute.Bool("redis.key_not_found", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
