// Package redis provides a Redis-backed drain lease so several processes
// sharing one account can serialize queue drains.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/offlinesync/internal/ports"
)

var _ ports.Lease = (*Lease)(nil)

// DefaultKey is the lease key used when none is configured.
const DefaultKey = "offlinesync:lease:sync_queue"

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease implements ports.Lease with SET NX PX.
type Lease struct {
	client *redis.Client
	key    string
}

// NewLease connects to redisURL and verifies the connection.
func NewLease(redisURL, key string) (*Lease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewLeaseWithClient(client, key), nil
}

// NewLeaseWithClient creates a lease from an existing client.
func NewLeaseWithClient(client *redis.Client, key string) *Lease {
	if key == "" {
		key = DefaultKey
	}
	return &Lease{client: client, key: key}
}

// Acquire takes the lease, or renews it if holder already owns it.
func (l *Lease) Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	if ok {
		return true, nil
	}
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return n == 1, nil
}

// Release deletes the lease only if holder still owns it.
func (l *Lease) Release(ctx context.Context, holder string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, holder).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (l *Lease) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the client.
func (l *Lease) Close() error {
	return l.client.Close()
}
