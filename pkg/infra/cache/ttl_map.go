package cache

import (
	"sync"
	"time"
)

// TTLEntry represents an entry in TTLMap
type TTLEntry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// TTLMap is a thread-safe map where every entry carries its own expiry.
type TTLMap struct {
	data map[string]*TTLEntry
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
}

// NewTTLMap creates a new TTLMap whose Set uses ttl as the default lifetime.
func NewTTLMap(ttl time.Duration) *TTLMap {
	return &TTLMap{
		data: make(map[string]*TTLEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock swaps the time source, mostly for tests.
func (m *TTLMap) WithClock(now func() time.Time) *TTLMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
	return m
}

// Get retrieves a value from the TTLMap if it hasn't expired
func (m *TTLMap) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Set adds or updates a value with the default TTL.
func (m *TTLMap) Set(key string, value interface{}) {
	m.SetWithTTL(key, value, m.ttl)
}

func (m *TTLMap) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &TTLEntry{
		Value:     value,
		ExpiresAt: m.now().Add(ttl),
	}
}

// Update runs fn under the map lock. fn receives the live value, if any, and
// returns the value to store with its TTL; keep=false deletes the key.
func (m *TTLMap) Update(key string, fn func(value interface{}, ok bool) (next interface{}, ttl time.Duration, keep bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current interface{}
	entry, ok := m.live(key)
	if ok {
		current = entry.Value
	}
	next, ttl, keep := fn(current, ok)
	if !keep {
		delete(m.data, key)
		return
	}
	if ttl <= 0 && ok {
		entry.Value = next
		return
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.data[key] = &TTLEntry{Value: next, ExpiresAt: m.now().Add(ttl)}
}

// Delete removes a key from the TTLMap
func (m *TTLMap) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Len counts live entries and drops expired ones on the way.
func (m *TTLMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		m.live(key)
	}
	return len(m.data)
}

// Clear removes all entries from the TTLMap
func (m *TTLMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*TTLEntry)
}

// live must be called with mu held.
func (m *TTLMap) live(key string) (*TTLEntry, bool) {
	entry, exists := m.data[key]
	if !exists {
		return nil, false
	}
	if !m.now().Before(entry.ExpiresAt) {
		delete(m.data, key)
		return nil, false
	}
	return entry, true
}
