package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/runnerr0/histlens/internal/analysis"
)

type memoryEntry struct {
	id      string
	bundle  *analysis.Bundle
	expires time.Time
}

// Memory is an in-process LRU cache with an optional TTL.
type Memory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

// NewMemory returns a cache holding at most capacity bundles (unbounded when
// capacity <= 0). Entries older than ttl are misses; ttl <= 0 disables
// expiry.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (m *Memory) Get(_ context.Context, id string) (*analysis.Bundle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if m.expired(e) {
		m.remove(el)
		return nil, false, nil
	}
	m.order.MoveToFront(el)
	return e.bundle, true, nil
}

func (m *Memory) Put(_ context.Context, b *analysis.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}

	if el, ok := m.entries[b.ID]; ok {
		e := el.Value.(*memoryEntry)
		e.bundle = b
		e.expires = expires
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[b.ID] = m.order.PushFront(&memoryEntry{id: b.ID, bundle: b, expires: expires})
	for m.capacity > 0 && m.order.Len() > m.capacity {
		m.remove(m.order.Back())
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[id]; ok {
		m.remove(el)
	}
	return nil
}

// Len counts live entries, dropping expired ones first.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if m.expired(el.Value.(*memoryEntry)) {
			m.remove(el)
		}
		el = prev
	}
	return m.order.Len(), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) expired(e *memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *Memory) remove(el *list.Element) {
	e := m.order.Remove(el).(*memoryEntry)
	delete(m.entries, e.id)
}
