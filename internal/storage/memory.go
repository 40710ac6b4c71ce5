package storage

import (
	"sync"
)

// MemoryAdapter is a map-backed Adapter for tests. Read and write
// failures can be injected per call site to exercise the managers'
// error paths.
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string]string

	// Fault injection. When set, the corresponding operation returns the
	// error instead of touching the map.
	ReadErr  error
	WriteErr error
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: make(map[string]string)}
}

// Get returns the stored value for key.
func (m *MemoryAdapter) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ReadErr != nil {
		return "", false, m.ReadErr
	}
	value, ok := m.data[key]
	return value, ok, nil
}

// Set stores value under key.
func (m *MemoryAdapter) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data[key] = value
	return nil
}

// Remove deletes key.
func (m *MemoryAdapter) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.data, key)
	return nil
}

// RemoveMany deletes all given keys.
func (m *MemoryAdapter) RemoveMany(keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Close is a no-op for the in-memory adapter.
func (m *MemoryAdapter) Close() error { return nil }

// Len reports how many keys are stored, for test assertions.
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
