// Package store provides storage backends for IntakeLine.
//
// Call state lives in a string-keyed store with per-key TTLs (Redis in
// production, an in-memory map for tests and local runs). Completion
// deliveries are queued in a SQL outbox (SQLite or PostgreSQL).
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by KV.Get when the key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// KV is the key-value contract the call-state registries are built on.
// Every entry is string keyed and carries its own TTL.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// SetAdd adds member to the set at key and refreshes the set's TTL.
	SetAdd(ctx context.Context, key, member string, ttl time.Duration) error
	// SetRemove removes member from the set at key.
	SetRemove(ctx context.Context, key, member string) error
	// SetMembers lists the members of the set at key.
	SetMembers(ctx context.Context, key string) ([]string, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN       string
	RedisURL  string
	OpTimeout time.Duration
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the DSN for the PostgreSQL outbox.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the database file path for the SQLite outbox.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisURL sets the redis:// or rediss:// URL for the call-state store.
func WithRedisURL(url string) Option {
	return func(o *Opts) { o.RedisURL = url }
}

// WithOpTimeout bounds every individual store round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(o *Opts) { o.OpTimeout = d }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for everything else (file paths).
func DetectDSNType(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(trimmed, "host=") || strings.Contains(trimmed, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
