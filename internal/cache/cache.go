// Package cache mirrors the newest announcement per symbol in Redis so the
// latest-lookup endpoint can skip the database.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection for latest-announcement lookups.
type Client struct {
	client *redis.Client
}

// New creates a Redis client and verifies the connection.
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password
		DB:       0,  // default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

func latestKey(symbol string) string {
	return fmt.Sprintf("announcement:latest:%s", strings.ToUpper(strings.TrimSpace(symbol)))
}

// SetLatest stores the serialized announcement as the newest one for the
// symbol.
func (c *Client) SetLatest(ctx context.Context, symbol string, payload []byte) error {
	if err := c.client.Set(ctx, latestKey(symbol), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache latest announcement: %w", err)
	}
	return nil
}

// GetLatest retrieves the newest cached announcement for a symbol.
// Returns nil if the symbol has no cached entry.
func (c *Client) GetLatest(ctx context.Context, symbol string) ([]byte, error) {
	data, err := c.client.Get(ctx, latestKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest announcement: %w", err)
	}
	return data, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
