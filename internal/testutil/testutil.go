// Package testutil provides shared test doubles: an in-memory key-value
// store, a manual clock, and a scripted trade log source.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/service"
)

// MemoryStore is an in-memory service.Store.
type MemoryStore struct {
	data map[string][]byte
	mu   sync.Mutex
	// Sets counts Set calls, for asserting write behavior.
	Sets int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements service.Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements service.Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.Sets++
	return nil
}

// Delete implements service.Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close implements service.Store.
func (m *MemoryStore) Close() error { return nil }

// Put seeds a raw value, bypassing Set accounting.
func (m *MemoryStore) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Raw returns the stored bytes for key, if present.
func (m *MemoryStore) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Clock is a manually advanced clock for TTL tests.
type Clock struct {
	now time.Time
	mu  sync.Mutex
}

// NewClock creates a clock at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// LogSource is a scripted service.LogSource.
type LogSource struct {
	entries   []service.Entry
	callbacks []func()
	session   string
	gen       int64
	mu        sync.Mutex
}

// NewLogSource creates an empty source at generation 1.
func NewLogSource() *LogSource {
	return &LogSource{gen: 1}
}

// Entries implements service.LogSource.
func (s *LogSource) Entries() []service.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Generation implements service.LogSource.
func (s *LogSource) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SessionID implements service.LogSource.
func (s *LogSource) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// OnMutation implements service.LogSource.
func (s *LogSource) OnMutation(fn func()) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Append adds entries and fires the mutation callbacks.
func (s *LogSource) Append(entries ...service.Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, entries...)
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Replace swaps the whole log for a new generation, as when the source
// document is rebuilt underneath the watcher.
func (s *LogSource) Replace(entries ...service.Entry) {
	s.mu.Lock()
	s.entries = append([]service.Entry(nil), entries...)
	s.gen++
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// SetSessionID binds a session identity.
func (s *LogSource) SetSessionID(id string) {
	s.mu.Lock()
	s.session = id
	s.mu.Unlock()
}
