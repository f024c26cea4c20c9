package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps records in process. Used when no database is configured
// and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
	order  map[string][]string // insertion order per table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: map[string]map[string][]byte{},
		order:  map[string][]string{},
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, table, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", table, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		t = map[string][]byte{}
		m.tables[table] = t
	}
	if _, exists := t[key]; !exists {
		m.order[table] = append(m.order[table], key)
	}
	t[key] = data
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, table, key string, out any) (bool, error) {
	m.mu.RLock()
	data, ok := m.tables[table][key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s record: %w", table, err)
	}
	return true, nil
}

func (m *MemoryStore) Select(ctx context.Context, table string, filter Filter, opts SelectOptions) ([]json.RawMessage, error) {
	m.mu.RLock()
	keys := append([]string(nil), m.order[table]...)
	raws := make([][]byte, 0, len(keys))
	for _, k := range keys {
		raws = append(raws, m.tables[table][k])
	}
	m.mu.RUnlock()

	return applySelect(raws, filter, opts)
}

// Tables lists table names, for diagnostics.
func (m *MemoryStore) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tables))
	for t := range m.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
