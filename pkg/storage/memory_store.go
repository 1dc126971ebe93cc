package storage

import (
	"slices"
	"sync"
	"sync/atomic"
)

// MemoryStore implements VisitedStore on a sync.Map
type MemoryStore struct {
	keys  sync.Map
	count atomic.Int64
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// MarkVisited implements the VisitedStore interface
func (s *MemoryStore) MarkVisited(key string) (bool, error) {
	if _, loaded := s.keys.LoadOrStore(key, struct{}{}); loaded {
		return false, nil
	}
	s.count.Add(1)
	return true, nil
}

// IsVisited implements the VisitedStore interface
func (s *MemoryStore) IsVisited(key string) (bool, error) {
	_, ok := s.keys.Load(key)
	return ok, nil
}

// VisitedCount implements the VisitedStore interface
func (s *MemoryStore) VisitedCount() int {
	return int(s.count.Load())
}

// VisitedKeys implements the VisitedStore interface
func (s *MemoryStore) VisitedKeys() ([]string, error) {
	keys := make([]string, 0, s.VisitedCount())
	s.keys.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.Sort(keys)
	return keys, nil
}

// Close implements the VisitedStore interface
func (s *MemoryStore) Close() error {
	return nil
}
