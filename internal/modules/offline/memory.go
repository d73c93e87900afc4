package offline

import (
	"context"
	"sync"
)

// memoryStore is the default Store and the fallback when the persistent
// backend degrades.
type memoryStore struct {
	mu       sync.Mutex
	items    map[string]*Item
	maxBytes int64
	total    int64
	degraded bool
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore creates an in-process queue bounded by maxBytes.
func NewMemoryStore(maxBytes int64) Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &memoryStore{
		items:    make(map[string]*Item),
		maxBytes: maxBytes,
	}
}

// newDegradedStore is the fallback used when a persistent backend fails.
// Capacity is halved: the memory budget is shared with the host application.
func newDegradedStore(maxBytes int64) *memoryStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &memoryStore{
		items:    make(map[string]*Item),
		maxBytes: maxBytes / 2,
		degraded: true,
	}
}

func (m *memoryStore) Put(ctx context.Context, item *Item) error {
	fillSize(item)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[item.ID]; ok {
		m.total -= old.SizeBytes
	}
	m.items[item.ID] = item
	m.total += item.SizeBytes

	m.evictLocked()
	return nil
}

// evictLocked removes the oldest items of the lowest non-empty priority band
// until the store fits under the cap again.
func (m *memoryStore) evictLocked() {
	for m.total > m.maxBytes && len(m.items) > 0 {
		victim := m.oldestInLowestBandLocked()
		if victim == nil {
			return
		}
		m.total -= victim.SizeBytes
		delete(m.items, victim.ID)
	}
}

func (m *memoryStore) oldestInLowestBandLocked() *Item {
	var victim *Item
	lowest := int(^uint(0) >> 1)
	for _, it := range m.items {
		w := it.Priority.Weight()
		switch {
		case w < lowest:
			lowest = w
			victim = it
		case w == lowest && (victim == nil || it.CreatedAt < victim.CreatedAt):
			victim = it
		}
	}
	return victim
}

func (m *memoryStore) Remove(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			m.total -= it.SizeBytes
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memoryStore) BumpRetry(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			it.RetryCount++
		}
	}
	return nil
}

func (m *memoryStore) ByKind(ctx context.Context, kind string) ([]*Item, error) {
	return m.filter(func(it *Item) bool { return it.Kind == kind }), nil
}

func (m *memoryStore) ByPriority(ctx context.Context, p Priority) ([]*Item, error) {
	return m.filter(func(it *Item) bool { return it.Priority == p }), nil
}

func (m *memoryStore) All(ctx context.Context) ([]*Item, error) {
	return m.filter(func(*Item) bool { return true }), nil
}

func (m *memoryStore) Since(ctx context.Context, ts int64) ([]*Item, error) {
	return m.filter(func(it *Item) bool { return it.CreatedAt > ts }), nil
}

func (m *memoryStore) TotalBytes(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *memoryStore) Degraded() bool { return m.degraded }

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) filter(keep func(*Item) bool) []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Item, 0, len(m.items))
	for _, it := range m.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}
