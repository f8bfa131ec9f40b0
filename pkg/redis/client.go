// Package redis provides the Redis client and distributed locking used
// for scheduler coordination.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/logging"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the go-redis client.
type Client struct {
	rdb    *redis.Client
	logger logging.Logger
}

func NewClient(cfg Config, logger logging.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Client{
		rdb:    rdb,
		logger: logger,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
