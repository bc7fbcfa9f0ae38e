package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// / In-memory implementation
// ---------------------------------------------------------------------------

type memoryList struct {
	nextID  int64
	version int64
	items   map[int64]Item
	order   []int64
}

type memoryLock struct {
	owner   string
	expires time.Time
}

// MemoryProvider keeps lists in maps protected by a RWMutex. Field values are
// passed through JSON so callers observe the same types as with the SQL provider.
type MemoryProvider struct {
	mu    sync.RWMutex
	lists map[string]*memoryList
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryProvider returns a store provisioned with the standard lists plus
// any extra list names given.
func NewMemoryProvider(extra ...string) *MemoryProvider {
	m := &MemoryProvider{
		lists: make(map[string]*memoryList),
		locks: make(map[string]memoryLock),
		now:   func() time.Time { return time.Now().UTC() },
	}
	names := append([]string{ListGroups, ListSessions, ListProfiles, ListEntries, ListConsentRecords}, extra...)
	for _, name := range names {
		m.lists[name] = &memoryList{nextID: 1, items: make(map[int64]Item)}
	}
	return m
}

func normalizeFields(fields Fields) (Fields, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Fields{}
	}
	return out, nil
}

func (m *MemoryProvider) Close() error { return nil }

func (m *MemoryProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	return 1, nil
}

func (m *MemoryProvider) ListAll(ctx context.Context, list string, fields []string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lists[list]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, list)
	}

	items := make([]Item, 0, len(l.order))
	for _, id := range l.order {
		item := l.items[id]
		item.Fields = selectFields(item.Fields, fields)
		items = append(items, item)
	}
	return items, nil
}

func (m *MemoryProvider) Create(ctx context.Context, list string, fields Fields) (int64, error) {
	values, err := normalizeFields(fields)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lists[list]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrListNotFound, list)
	}

	id := l.nextID
	l.nextID++
	l.version++
	now := m.now()
	l.items[id] = Item{ID: id, Fields: values, Created: now, Modified: now}
	l.order = append(l.order, id)
	return id, nil
}

func (m *MemoryProvider) Update(ctx context.Context, list string, id int64, fields Fields) error {
	values, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lists[list]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, list)
	}
	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrItemNotFound, list, id)
	}

	merged := selectFields(item.Fields, nil)
	for k, v := range values {
		merged[k] = v
	}
	item.Fields = merged
	item.Modified = m.now()
	l.items[id] = item
	l.version++
	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, list string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lists[list]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListNotFound, list)
	}
	if _, ok := l.items[id]; !ok {
		return fmt.Errorf("%w: %s/%d", ErrItemNotFound, list, id)
	}
	delete(l.items, id)
	l.version++
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryProvider) ListVersion(ctx context.Context, list string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lists[list]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrListNotFound, list)
	}
	return l.version, nil
}

func (m *MemoryProvider) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[name]; ok && held.owner != owner && !held.expires.Before(now) {
		return false, nil
	}
	m.locks[name] = memoryLock{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryProvider) Unlock(ctx context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.locks[name]; ok && held.owner == owner {
		delete(m.locks, name)
	}
	return nil
}
