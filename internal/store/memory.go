package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	set       map[string]struct{}
	expiresAt time.Time
}

// InMemoryStore is a process-local KV with TTL support. It backs tests and
// single-instance local runs; it is not shared between processes.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewInMemoryStore creates an empty in-memory KV.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

// SetClock replaces the time source, letting tests move past TTLs.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// lookup returns the live entry for key, evicting it if expired. Callers hold mu.
func (s *InMemoryStore) lookup(key string) *memEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *InMemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.set != nil {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memEntry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *InMemoryStore) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.set == nil {
		e = &memEntry{set: make(map[string]struct{})}
		s.entries[key] = e
	}
	e.set[member] = struct{}{}
	e.expiresAt = s.expiry(ttl)
	return nil
}

func (s *InMemoryStore) SetRemove(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.set == nil {
		return nil
	}
	delete(e.set, member)
	if len(e.set) == 0 {
		delete(s.entries, key)
	}
	return nil
}

func (s *InMemoryStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.set == nil {
		return nil, nil
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

// TTL reports the remaining lifetime of key, or zero if it has none or is missing.
func (s *InMemoryStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(s.now())
}
