// Package telemetry publishes per-frame tracking results to a shared
// key/value table and reads the few inputs other processes write back.
package telemetry

import (
	"sort"
	"sync"
)

// Table is a key/value store shared with the robot controller. Values are
// bool, float64, string, []float64 or []string.
type Table interface {
	Put(key string, value any)
	Get(key string) (any, bool)
	Delete(key string)
}

// MemoryTable is an in-process Table safe for concurrent use. Every write
// bumps a version so readers can tell when something changed.
type MemoryTable struct {
	mu      sync.RWMutex
	values  map[string]any
	version uint64
}

// NewMemoryTable returns an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{values: make(map[string]any)}
}

func (t *MemoryTable) Put(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = value
	t.version++
}

func (t *MemoryTable) Get(key string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	return v, ok
}

func (t *MemoryTable) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.values[key]; ok {
		delete(t.values, key)
		t.version++
	}
}

// Version returns the number of changes made so far.
func (t *MemoryTable) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Snapshot returns a copy of every entry and the version it reflects.
func (t *MemoryTable) Snapshot() (map[string]any, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out, t.version
}

// Keys returns the table keys in sorted order.
func (t *MemoryTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns the string stored at key, or def when it is missing or
// not a string.
func GetString(t Table, key, def string) string {
	v, ok := t.Get(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// GetNumber returns the number stored at key, or def.
func GetNumber(t Table, key string, def float64) float64 {
	v, ok := t.Get(key)
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}

// GetBool returns the boolean stored at key, or def.
func GetBool(t Table, key string, def bool) bool {
	v, ok := t.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
