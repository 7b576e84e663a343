package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions selects the redis server backing the queue, the token
// revocation list and the activity tracker.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeout bounds reads and writes; dialing gets twice as long.
	Timeout time.Duration
}

// Redis wraps the shared redis client.
type Redis struct {
	Client *redis.Client
}

var errNoRedis = errors.New("redis client not configured")

func NewRedis(opts RedisOptions) *Redis {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  2 * timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &Redis{Client: client}
}

// Ping reports whether redis answers; it doubles as the health check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errNoRedis
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
