package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second
	clientName         = "delivery-tracking"
)

// Config holds the connection settings shared by the KV store, the stream
// transport and the kill switch. They all use one client.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int // zero keeps the go-redis default
	Timeout  time.Duration
}

// Connect dials Redis and pings it before returning the client. Blocking
// stream reads extend the client read timeout on their own, so no special
// read timeout is set here.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: timeout,
		ClientName:  clientName,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr, err)
	}
	return client, nil
}
