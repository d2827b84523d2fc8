package session

import (
	"sort"
	"sync"
)

// MemoryStore is the session-scoped key/value store tools use to park
// large text out of the conversation. One interface, two backends;
// callers never special-case which one they hold.
type MemoryStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) (bool, error)
	Keys() ([]string, error)
	Exists(key string) (bool, error)
}

// MapMemory is the local in-process MemoryStore implementation.
type MapMemory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapMemory returns an empty in-memory store.
func NewMapMemory() *MapMemory {
	return &MapMemory{values: make(map[string]string)}
}

// Get returns the value for key and whether it exists.
func (m *MapMemory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (m *MapMemory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key, reporting whether it was present.
func (m *MapMemory) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	delete(m.values, key)
	return ok, nil
}

// Keys returns all keys in sorted order.
func (m *MapMemory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether key is present.
func (m *MapMemory) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}
