package csrf

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryStore is a process-local SessionStore. Entries expire after the
// configured TTL; a zero TTL keeps them forever. Expired entries are swept
// on insert at most once per TTL.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token implements SessionStore.
func (m *MemoryStore) Token(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(sessionID)
	return e.token, ok, nil
}

// SetTokenIfAbsent implements SessionStore.
func (m *MemoryStore) SetTokenIfAbsent(_ context.Context, sessionID, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.lookup(sessionID); ok {
		return e.token, nil
	}
	m.sweep()

	e := memoryEntry{token: token}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[sessionID] = e
	return token, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id := range m.entries {
		if _, ok := m.lookup(id); ok {
			n++
		}
	}
	return n
}

// sweep drops every expired entry. It must be called with mu held.
func (m *MemoryStore) sweep() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	if now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

// lookup must be called with mu held. Expired entries are dropped.
func (m *MemoryStore) lookup(sessionID string) (memoryEntry, bool) {
	e, ok := m.entries[sessionID]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, sessionID)
		return memoryEntry{}, false
	}
	return e, true
}
