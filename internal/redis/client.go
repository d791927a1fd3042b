// Package redis owns the single shared connection to the Redis instance that
// backs the feed caches and the fan-out stream.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectTimeout bounds the startup ping. An unreachable Redis should fail the
// boot, not hang it.
const ConnectTimeout = 5 * time.Second

// Connect parses the URL (redis://[:password@]host:port[/db]), opens a client,
// and pings it before handing it back. The feed cache, the stream publisher,
// and the worker consumers all share the returned client's connection pool.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[Redis] Connected: db=%d", opts.DB)
	return client, nil
}
