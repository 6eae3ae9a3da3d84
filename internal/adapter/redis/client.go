package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, installs hooks and verifies the connection.
func NewClient(ctx context.Context, redisURL string, hooks ...goredis.Hook) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	for _, h := range hooks {
		rdb.AddHook(h)
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// keyspace namespaces every key of one resource pool.
type keyspace string

func (k keyspace) state() string     { return "hearth:" + string(k) + ":state" }
func (k keyspace) cooldowns() string { return "hearth:" + string(k) + ":cooldowns" }
func (k keyspace) inventory() string { return "hearth:" + string(k) + ":inventory" }
func (k keyspace) status() string    { return "hearth:" + string(k) + ":status" }
func (k keyspace) writer() string    { return "hearth:" + string(k) + ":writer" }
func (k keyspace) mutation() string  { return "hearth:" + string(k) + ":mutation" }
