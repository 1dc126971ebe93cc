package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/log"
	"github.com/Sriram-PR/webtree/pkg/utils"
)

const visitedKeyPrefix = "visited:" // Prefix for duplicate keys in DB

// BadgerStore implements the VisitedStore interface using an in-memory BadgerDB.
// Nothing is written to disk; the store lives for one crawl.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) VisitedCount
}

// NewBadgerStore opens an in-memory badger database
func NewBadgerStore(logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open in-memory badger: %w", utils.ErrDatabase, err)
	}
	logger.Debug("In-memory visited URL database initialized")
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Two workers discovering the same URL produce overlapping transactions; the loser retries and sees the key.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkVisited implements the VisitedStore interface
func (s *BadgerStore) MarkVisited(key string) (bool, error) {
	added := false
	dbKey := []byte(visitedKeyPrefix + key)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(dbKey)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(dbKey, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet // nil when the key already exists
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking key '%s': %w", utils.ErrDatabase, key, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// IsVisited implements the VisitedStore interface
func (s *BadgerStore) IsVisited(key string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, errGet := txn.Get([]byte(visitedKeyPrefix + key))
		switch {
		case errGet == nil:
			found = true
			return nil
		case errors.Is(errGet, badger.ErrKeyNotFound):
			return nil
		default:
			return errGet
		}
	})
	if err != nil {
		return false, fmt.Errorf("%w: reading key '%s': %w", utils.ErrDatabase, key, err)
	}
	return found, nil
}

// VisitedCount implements the VisitedStore interface
func (s *BadgerStore) VisitedCount() int {
	return int(s.keyCount.Load())
}

// VisitedKeys implements the VisitedStore interface. Badger iterates in key order.
func (s *BadgerStore) VisitedKeys() ([]string, error) {
	keys := make([]string, 0, s.VisitedCount())
	prefix := []byte(visitedKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iterating keys: %w", utils.ErrDatabase, err)
	}
	return keys, nil
}

// Close implements the VisitedStore interface
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Debug("Closing in-memory visited URL database")
	err := s.db.Close()
	s.db = nil
	return err
}
