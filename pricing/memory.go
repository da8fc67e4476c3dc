package pricing

import (
	"context"
	"sync"
)

// MemoryTier is the in-process fast tier, shared across all sessions.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]*CostEntry
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{
		entries: make(map[string]*CostEntry, 64),
	}
}

func (t *MemoryTier) Get(_ context.Context, serviceKey, region string) (*CostEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[entryKey(serviceKey, region)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := *entry
	return &out, nil
}

func (t *MemoryTier) Put(_ context.Context, entry *CostEntry) error {
	if entry == nil {
		return ErrNilEntry
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := *entry
	t.entries[entryKey(entry.ServiceKey, entry.Region)] = &stored
	return nil
}

// Len reports the number of cached entries. Used by the updater's logging.
func (t *MemoryTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
