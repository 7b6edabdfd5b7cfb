// Package store persists users, sessions and the per-user records in an
// embedded badger database.
package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/etnz/askwarren"
	"github.com/phuslu/log"
	"github.com/timshannon/badgerhold/v4"
)

// Config locates the database.
type Config struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// Store is a badgerhold backed askwarren.DocumentStore, it also holds the
// authentication records.
type Store struct {
	db *badgerhold.Store

	watchlistMu sync.Mutex
}

var _ askwarren.DocumentStore = (*Store)(nil)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	if cfg.InMemory {
		options.InMemory = true
		options.Dir, options.ValueDir = "", ""
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: database path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory: %w", err)
		}
		options.Dir = cfg.Path
		options.ValueDir = cfg.Path
	}

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", cfg.Path, err)
	}
	log.Debug().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("database opened")
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// get loads the record stored under key, mapping badgerhold's not found error.
func (s *Store) get(key string, dst any) error {
	err := s.db.Get(key, dst)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return askwarren.ErrNotFound
	}
	return err
}

// del removes the record stored under key, a missing record is not an error.
func (s *Store) del(key string, dataType any) error {
	err := s.db.Delete(key, dataType)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}
	return nil
}
