package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL      string
	PoolSize int
}

// Client wraps go-redis with health checks and pool gauges.
type Client struct {
	*redis.Client
}

// New connects and pings. It returns (nil, nil) when no URL is configured.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		c.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// Wrap adapts an existing go-redis client.
func Wrap(rc *redis.Client) *Client {
	return &Client{Client: rc}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RegisterPoolMetrics exposes pool statistics as gauges sampled at scrape time.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	stat := func(name, help string, pick func(*redis.PoolStats) uint32) {
		f.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(pick(c.PoolStats()))
		})
	}
	stat("warden_redis_pool_total_conns", "Total connections in the Redis pool",
		func(s *redis.PoolStats) uint32 { return s.TotalConns })
	stat("warden_redis_pool_idle_conns", "Idle connections in the Redis pool",
		func(s *redis.PoolStats) uint32 { return s.IdleConns })
	stat("warden_redis_pool_hits", "Times a free connection was found in the pool",
		func(s *redis.PoolStats) uint32 { return s.Hits })
	stat("warden_redis_pool_timeouts", "Times a connection wait timed out",
		func(s *redis.PoolStats) uint32 { return s.Timeouts })
}
