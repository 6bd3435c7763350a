package kvclient

import (
	"context"
	"errors"
	"time"

	"oidcop/pkg/logger"
	"oidcop/pkg/model"
	"oidcop/pkg/trace"

	"github.com/redis/go-redis/v9"
)

// Client holds the kv object
type Client struct {
	RedisClient *redis.Client
	cfg         *model.Cfg
	log         *logger.Log
	tp          *trace.Tracer
}

// New creates a new instance of kv
func New(ctx context.Context, cfg *model.Cfg, tracer *trace.Tracer, log *logger.Log) (*Client, error) {
	c := &Client{
		cfg: cfg,
		log: log,
		tp:  tracer,
	}

	c.RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Common.KeyValue.Addr,
		Password: cfg.Common.KeyValue.Password,
		DB:       cfg.Common.KeyValue.DB,
	})

	c.log.Info("Started")

	return c, nil
}

// Set stores a value under key with the given ttl.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := c.tp.Start(ctx, "kvclient:Set")
	defer span.End()

	return c.RedisClient.Set(ctx, key, value, ttl).Err()
}

// Take returns the value under key and removes it in the same round trip,
// GETDEL keeps redemption one-shot even when several replicas race.
func (c *Client) Take(ctx context.Context, key string) ([]byte, error) {
	ctx, span := c.tp.Start(ctx, "kvclient:Take")
	defer span.End()

	value, err := c.RedisClient.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Status reports reachability of the backing store.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.RedisClient.Ping(ctx).Result()
	return err
}

// Close closes the connection to the database
func (c *Client) Close(ctx context.Context) error {
	return c.RedisClient.Close()
}
