package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/store"
)

// ResumeRegistry maps a (called, caller) pair to the canonical call id of
// the conversation most recently active for that pair.
type ResumeRegistry struct {
	kv   store.KV
	keys Keyspace
}

func NewResumeRegistry(kv store.KV, keys Keyspace) *ResumeRegistry {
	return &ResumeRegistry{kv: kv, keys: keys}
}

// Get returns the pointer for the pair, or "" when there is none.
func (r *ResumeRegistry) Get(ctx context.Context, called, caller string) string {
	if called == "" || caller == "" {
		return ""
	}
	v, err := r.kv.Get(ctx, r.keys.Resume(called, caller))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("ResumeRegistry.Get failed", "called", called, "caller", caller, "error", err)
		}
		return ""
	}
	return v
}

// Save points the pair at callID for ResumePointerTTL.
func (r *ResumeRegistry) Save(ctx context.Context, called, caller, callID string) {
	if called == "" || caller == "" || callID == "" {
		return
	}
	if err := r.kv.Set(ctx, r.keys.Resume(called, caller), callID, ResumePointerTTL); err != nil {
		slog.Warn("ResumeRegistry.Save failed", "called", called, "caller", caller, "callID", callID, "error", err)
		return
	}
	slog.Debug("ResumeRegistry.Save", "called", called, "caller", caller, "callID", callID)
}

// Clear removes the pointer for the pair.
func (r *ResumeRegistry) Clear(ctx context.Context, called, caller string) {
	if called == "" || caller == "" {
		return
	}
	if err := r.kv.Delete(ctx, r.keys.Resume(called, caller)); err != nil {
		slog.Warn("ResumeRegistry.Clear failed", "called", called, "caller", caller, "error", err)
		return
	}
	slog.Debug("ResumeRegistry.Clear", "called", called, "caller", caller)
}

// AliasRegistry maps a new call id to the canonical id it continues.
// Aliases are a single hop and expire on their own; they are never deleted.
type AliasRegistry struct {
	kv   store.KV
	keys Keyspace
}

func NewAliasRegistry(kv store.KV, keys Keyspace) *AliasRegistry {
	return &AliasRegistry{kv: kv, keys: keys}
}

// Lookup returns the canonical id for callID, or "" when it has no alias.
func (a *AliasRegistry) Lookup(ctx context.Context, callID string) string {
	if callID == "" {
		return ""
	}
	v, err := a.kv.Get(ctx, a.keys.Alias(callID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("AliasRegistry.Lookup failed", "callID", callID, "error", err)
		}
		return ""
	}
	return v
}

// Resolve follows at most one alias hop.
func (a *AliasRegistry) Resolve(ctx context.Context, callID string) string {
	if target := a.Lookup(ctx, callID); target != "" {
		return target
	}
	return callID
}

// Set records newID as a continuation of canonicalID. Self aliases are ignored.
func (a *AliasRegistry) Set(ctx context.Context, newID, canonicalID string) {
	if newID == "" || canonicalID == "" || newID == canonicalID {
		return
	}
	if err := a.kv.Set(ctx, a.keys.Alias(newID), canonicalID, AliasTTL); err != nil {
		slog.Warn("AliasRegistry.Set failed", "newID", newID, "canonicalID", canonicalID, "error", err)
		return
	}
	slog.Info("AliasRegistry.Set: call aliased", "newID", newID, "canonicalID", canonicalID)
}

// LiveCallRegistry tracks the call ids currently active per contractor.
// Membership is best effort.
type LiveCallRegistry struct {
	kv   store.KV
	keys Keyspace
	ttl  time.Duration
}

// NewLiveCallRegistry creates a registry whose sets expire ttl after the last add.
func NewLiveCallRegistry(kv store.KV, keys Keyspace, ttl time.Duration) *LiveCallRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &LiveCallRegistry{kv: kv, keys: keys, ttl: ttl}
}

func (l *LiveCallRegistry) Register(ctx context.Context, contractorKey, callID string) {
	if contractorKey == "" || callID == "" {
		return
	}
	if err := l.kv.SetAdd(ctx, l.keys.LiveCalls(contractorKey), callID, l.ttl); err != nil {
		slog.Warn("LiveCallRegistry.Register failed", "contractor", contractorKey, "callID", callID, "error", err)
		return
	}
	slog.Debug("LiveCallRegistry.Register", "contractor", contractorKey, "callID", callID)
}

func (l *LiveCallRegistry) Unregister(ctx context.Context, contractorKey, callID string) {
	if contractorKey == "" || callID == "" {
		return
	}
	if err := l.kv.SetRemove(ctx, l.keys.LiveCalls(contractorKey), callID); err != nil {
		slog.Warn("LiveCallRegistry.Unregister failed", "contractor", contractorKey, "callID", callID, "error", err)
		return
	}
	slog.Debug("LiveCallRegistry.Unregister", "contractor", contractorKey, "callID", callID)
}

// List returns the live call ids for the contractor.
func (l *LiveCallRegistry) List(ctx context.Context, contractorKey string) []string {
	if contractorKey == "" {
		return nil
	}
	members, err := l.kv.SetMembers(ctx, l.keys.LiveCalls(contractorKey))
	if err != nil {
		slog.Warn("LiveCallRegistry.List failed", "contractor", contractorKey, "error", err)
		return nil
	}
	return members
}
