package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DegradedKV wraps a KV so that store outages never reach callers: failed
// reads come back as ErrNotFound and failed writes are dropped. Conversations
// then behave as fresh ones instead of failing the call. Ping still reports
// the real error so health checks can see the outage.
type DegradedKV struct {
	kv KV
}

// Compile-time check that DegradedKV implements KV.
var _ KV = (*DegradedKV)(nil)

// NewDegradedKV wraps kv. A nil kv yields a store where every read is empty
// and every write is a no-op.
func NewDegradedKV(kv KV) *DegradedKV {
	return &DegradedKV{kv: kv}
}

func (d *DegradedKV) Get(ctx context.Context, key string) (string, error) {
	if d.kv == nil {
		return "", ErrNotFound
	}
	val, err := d.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("DegradedKV.Get: store unavailable, treating as empty", "key", key, "error", err)
		}
		return "", ErrNotFound
	}
	return val, nil
}

func (d *DegradedKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("DegradedKV.Set: store unavailable, write dropped", "key", key, "error", err)
	}
	return nil
}

func (d *DegradedKV) Delete(ctx context.Context, keys ...string) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.Delete(ctx, keys...); err != nil {
		slog.Warn("DegradedKV.Delete: store unavailable, delete dropped", "keys", keys, "error", err)
	}
	return nil
}

func (d *DegradedKV) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.SetAdd(ctx, key, member, ttl); err != nil {
		slog.Warn("DegradedKV.SetAdd: store unavailable, write dropped", "key", key, "error", err)
	}
	return nil
}

func (d *DegradedKV) SetRemove(ctx context.Context, key, member string) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.SetRemove(ctx, key, member); err != nil {
		slog.Warn("DegradedKV.SetRemove: store unavailable, write dropped", "key", key, "error", err)
	}
	return nil
}

func (d *DegradedKV) SetMembers(ctx context.Context, key string) ([]string, error) {
	if d.kv == nil {
		return nil, nil
	}
	members, err := d.kv.SetMembers(ctx, key)
	if err != nil {
		slog.Warn("DegradedKV.SetMembers: store unavailable, treating as empty", "key", key, "error", err)
		return nil, nil
	}
	return members, nil
}

func (d *DegradedKV) Ping(ctx context.Context) error {
	if d.kv == nil {
		return errors.New("store: no backend configured")
	}
	return d.kv.Ping(ctx)
}
