package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sweeper/internal/core/domain"
)

// Client wraps the Redis operations shared by sweeper replicas.
type Client struct {
	rdb     *redis.Client
	prefix  string
	lockTTL time.Duration
	log     *slog.Logger
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string        `yaml:"url" env:"REDIS_URL"`
	Password  string        `yaml:"password" env:"REDIS_PASSWORD"`
	KeyPrefix string        `yaml:"key_prefix"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "sweeper"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Client{
		rdb:     rdb,
		prefix:  cfg.KeyPrefix,
		lockTTL: cfg.LockTTL,
		log:     slog.Default().With("component", "redis"),
	}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) lockKey() string {
	return c.prefix + ":sweep_lock"
}

func (c *Client) reportKey(runID string) string {
	return fmt.Sprintf("%s:report:%s", c.prefix, runID)
}

func (c *Client) reportsKey() string {
	return c.prefix + ":reports"
}

// releaseScript deletes the lock only while it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Acquire takes the cluster-wide sweep lock for owner. The lock is refreshed
// in the background until release is called.
func (c *Client) Acquire(ctx context.Context, owner string) (func(), error) {
	ok, err := c.rdb.SetNX(ctx, c.lockKey(), owner, c.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		holder, _ := c.rdb.Get(ctx, c.lockKey()).Result()
		return nil, fmt.Errorf("%w: held by run %s", domain.ErrSweepInProgress, holder)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := refreshScript.Run(rctx, c.rdb, []string{c.lockKey()}, owner, c.lockTTL.Milliseconds()).Err()
				cancel()
				if err != nil {
					c.log.Warn("failed to refresh sweep lock", "error", err)
				}
			}
		}
	}()

	release := func() {
		close(stop)
		<-done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, c.rdb, []string{c.lockKey()}, owner).Err(); err != nil {
			c.log.Warn("failed to release sweep lock", "error", err)
		}
	}
	return release, nil
}
