// Package store provides the BadgerDB-backed local secret store. It is a
// plain key-value resource: writes are set/overwrite with no transactional
// semantics across keys, which is exactly what the bundle layer above it
// assumes.
package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/fairdatasociety/fairtrade/pkg/spaceinfo"
)

// Prefix for secret entries in BadgerDB, so future record types can share
// the database.
const secretPrefix = "secret:"

// Config configures the store. Only Paths[0] is used at the moment.
type Config struct {
	Paths            []string
	MinimumFreeSpace int // GB
	Logger           *logrus.Logger
}

// Store is a Badger-backed secret store.
type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open checks free disk space and opens the database.
func Open(config *Config) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("store config must contain at least one path")
	}

	if err := spaceinfo.CheckMinimumFree(config.Paths[0], config.MinimumFreeSpace); err != nil {
		return nil, err
	}
	if usage, err := spaceinfo.GetUsage(config.Paths[0]); err == nil {
		config.Logger.Info("Secret store disk usage", "path", usage.Path, "free_bytes", usage.FreeBytes, "used_percent", fmt.Sprintf("%.1f", usage.UsedPercent))
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.SyncWrites = true // secret material must survive a crash

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret store: %w", err)
	}

	return &Store{db: db, log: config.Logger}, nil
}

// Set stores or overwrites one entry.
func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(secretPrefix+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to set secret %q: %w", key, err)
	}
	return nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(secretPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get secret %q: %w", key, err)
	}
	return string(value), true, nil
}

// Remove deletes key and reports whether it existed.
func (s *Store) Remove(key string) (bool, error) {
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		fullKey := []byte(secretPrefix + key)
		if _, err := txn.Get(fullKey); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		existed = true
		return txn.Delete(fullKey)
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove secret %q: %w", key, err)
	}
	return existed, nil
}

// List returns all stored keys.
func (s *Store) List() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(secretPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	return keys, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
