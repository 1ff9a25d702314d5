package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"

	"github.com/thebtf/ticketsim/pkg/models"
)

// Redis stores runs in Redis with SET ... EX, so expiry is enforced server side.
type Redis struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
	hits   int64
	misses int64
}

// NewRedis creates a Redis-backed cache. Keys are stored under prefix.
func NewRedis(addr, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	pool := &redis.Pool{
		MaxIdle:     4,
		MaxActive:   16,
		IdleTimeout: 5 * time.Minute,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &Redis{pool: pool, prefix: prefix, ttl: ttl}
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = conn.Close() }()
	_, err = conn.Do("PING")
	return err
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (*models.AnalysisRun, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	data, err := redis.Bytes(conn.Do("GET", r.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		atomic.AddInt64(&r.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var run models.AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false, fmt.Errorf("decode cached run: %w", err)
	}
	atomic.AddInt64(&r.hits, 1)
	return &run, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, run *models.AnalysisRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	seconds := max(int(r.ttl.Seconds()), 1)
	if _, err := conn.Do("SET", r.prefix+key, data, "EX", seconds); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stats implements Cache.
func (r *Redis) Stats() map[string]any {
	ps := r.pool.Stats()
	return map[string]any{
		"type":         "redis",
		"ttl_sec":      r.ttl.Seconds(),
		"hits":         atomic.LoadInt64(&r.hits),
		"misses":       atomic.LoadInt64(&r.misses),
		"active_conns": ps.ActiveCount,
		"idle_conns":   ps.IdleCount,
	}
}

// Close implements Cache.
func (r *Redis) Close() error {
	return r.pool.Close()
}
