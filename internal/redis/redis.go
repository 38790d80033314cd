package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings for the lock store
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr joins host and port into a dial address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Client wraps redis.Client. The scheduler only uses Redis to back the
// per-version advisory locks, so the pool stays small.
type Client struct {
	*redis.Client
}

// New connects to Redis and verifies the connection with a ping
func New(config Config) (*Client, error) {
	addr := config.Addr()
	log.Printf("[REDIS] Connecting to lock store at %s", addr)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("lock store unreachable at %s: %w", addr, err)
	}

	log.Printf("[REDIS] Connected to lock store at %s", addr)
	return &Client{Client: client}, nil
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	log.Println("[REDIS] Closing lock store connection")
	return c.Client.Close()
}

// HealthCheck pings the lock store, for the /health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
