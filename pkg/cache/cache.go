// Package cache is a time-boxed key/value store for rendered pages.
//
// Entries expire on their own after the TTL given to Set; Clear drops every
// entry at once so an operator (or a test) can force recomputation.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store 页面缓存存储
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
