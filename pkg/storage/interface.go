package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// VisitedStore is the DuplicateLog: a concurrent set of duplicate keys.
// Implementations are internally synchronized; callers hold no lock.
type VisitedStore interface {
	// MarkVisited atomically inserts key.
	// Returns true only for the call that added it, false if it already existed
	MarkVisited(key string) (bool, error)

	// IsVisited reports membership without inserting
	IsVisited(key string) (bool, error)

	// VisitedCount returns the number of keys inserted so far
	VisitedCount() int

	// VisitedKeys returns every key in lexical order
	VisitedKeys() ([]string, error)

	// Close releases resources held by the store
	Close() error
}

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// New constructs a fresh, empty store for one crawl invocation.
func New(backend string, logger *logrus.Entry) (VisitedStore, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		return NewBadgerStore(logger)
	default:
		return nil, fmt.Errorf("unknown visited store backend %q", backend)
	}
}
