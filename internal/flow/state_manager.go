// Package flow implements the voice intake state machine and the keyed,
// TTL-bound call state it runs on.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

// SessionStore persists CallSessions in a KV backend, one JSON value per
// canonical call id, each write refreshing the idle TTL.
type SessionStore struct {
	kv   store.KV
	keys Keyspace
	ttl  time.Duration
}

// NewSessionStore creates a SessionStore. A non-positive ttl selects DefaultSessionTTL.
func NewSessionStore(kv store.KV, keys Keyspace, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	slog.Debug("Creating SessionStore", "prefix", keys.SessionPrefix, "ttl", ttl)
	return &SessionStore{kv: kv, keys: keys, ttl: ttl}
}

// TTL returns the idle lifetime applied on every save.
func (ss *SessionStore) TTL() time.Duration { return ss.ttl }

// Load returns the session for callID, or nil when none exists. A value
// that cannot be decoded is treated as absent.
func (ss *SessionStore) Load(ctx context.Context, callID string) (*models.CallSession, error) {
	if callID == "" {
		return nil, nil
	}
	raw, err := ss.kv.Get(ctx, ss.keys.Session(callID))
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("SessionStore.Load: not found", "callID", callID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SessionStore.Load: get failed", "callID", callID, "error", err)
		return nil, fmt.Errorf("load session %s: %w", callID, err)
	}

	var s models.CallSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		slog.Warn("SessionStore.Load: bad session JSON, treating as absent", "callID", callID, "error", err)
		return nil, nil
	}
	if s.CallID == "" {
		s.CallID = callID
	}
	return &s, nil
}

// Exists reports whether a session is stored for callID.
func (ss *SessionStore) Exists(ctx context.Context, callID string) bool {
	s, err := ss.Load(ctx, callID)
	return err == nil && s != nil
}

// Save writes the session and refreshes its TTL.
func (ss *SessionStore) Save(ctx context.Context, s *models.CallSession) error {
	if s == nil || s.CallID == "" {
		return fmt.Errorf("save session: missing call id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.CallID, err)
	}
	if err := ss.kv.Set(ctx, ss.keys.Session(s.CallID), string(data), ss.ttl); err != nil {
		slog.Error("SessionStore.Save: set failed", "callID", s.CallID, "error", err)
		return fmt.Errorf("save session %s: %w", s.CallID, err)
	}
	slog.Debug("SessionStore.Save", "callID", s.CallID, "step", s.Step)
	return nil
}

// Delete removes the session for callID.
func (ss *SessionStore) Delete(ctx context.Context, callID string) error {
	if callID == "" {
		return nil
	}
	if err := ss.kv.Delete(ctx, ss.keys.Session(callID)); err != nil {
		return fmt.Errorf("delete session %s: %w", callID, err)
	}
	slog.Debug("SessionStore.Delete", "callID", callID)
	return nil
}

// MarkClosed records that the conversation for callID has been closed out,
// so a redelivered final turn is answered without a second submission.
func (ss *SessionStore) MarkClosed(ctx context.Context, callID string) error {
	return ss.kv.Set(ctx, ss.keys.Closed(callID), "1", ClosedMarkerTTL)
}

// IsClosed reports whether callID was closed out recently.
func (ss *SessionStore) IsClosed(ctx context.Context, callID string) bool {
	if callID == "" {
		return false
	}
	_, err := ss.kv.Get(ctx, ss.keys.Closed(callID))
	return err == nil
}
