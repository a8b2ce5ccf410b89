// Package cache stores assembled query results keyed by query plan, with a
// freshness window that depends on the plan's resolution level.
package cache

import (
	"context"
	"errors"
	"time"
)

// Backend is the minimal key/value contract the Manager needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// UnavailableError wraps a backend failure. The Manager logs and counts it
// and then behaves as if the cache were empty.
type UnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *UnavailableError) Error() string {
	return "cache " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// NoopBackend never stores anything.
type NoopBackend struct{}

// Get always returns ErrCacheMiss.
func (NoopBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

// Set discards the value.
func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopBackend) Delete(context.Context, string) error { return nil }

func (NoopBackend) Close() error { return nil }
