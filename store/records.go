package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/etnz/askwarren"
	"github.com/timshannon/badgerhold/v4"
)

func (s *Store) GetProfile(uid string) (*askwarren.UserProfile, error) {
	var p askwarren.UserProfile
	if err := s.get(uid, &p); err != nil {
		return nil, fmt.Errorf("cannot get profile %q: %w", uid, err)
	}
	return &p, nil
}

func (s *Store) SaveProfile(p *askwarren.UserProfile) error {
	if p.UID == "" {
		return fmt.Errorf("profile uid is required")
	}
	if err := s.db.Upsert(p.UID, p); err != nil {
		return fmt.Errorf("cannot save profile %q: %w", p.UID, err)
	}
	return nil
}

func (s *Store) DeleteProfile(uid string) error {
	if err := s.del(uid, &askwarren.UserProfile{}); err != nil {
		return fmt.Errorf("cannot delete profile %q: %w", uid, err)
	}
	return nil
}

// ListWatchlist returns the user's saved analyses, newest first.
func (s *Store) ListWatchlist(uid string) ([]askwarren.WatchlistItem, error) {
	var items []askwarren.WatchlistItem
	q := badgerhold.Where("UserID").Eq(uid).SortBy("Timestamp").Reverse()
	if err := s.db.Find(&items, q); err != nil {
		return nil, fmt.Errorf("cannot list watchlist of %q: %w", uid, err)
	}
	return items, nil
}

// SaveWatchlistItem upserts item. Any other item of the same user for the
// same query is removed in the same transaction, so that a company appears
// only once.
func (s *Store) SaveWatchlistItem(item *askwarren.WatchlistItem) error {
	if item.ID == "" || item.UserID == "" {
		return fmt.Errorf("watchlist item id and user are required")
	}
	// badger does not detect two transactions inserting the same query.
	s.watchlistMu.Lock()
	defer s.watchlistMu.Unlock()
	err := s.db.Badger().Update(func(tx *badger.Txn) error {
		return s.saveWatchlistItem(tx, item)
	})
	if err != nil {
		return fmt.Errorf("cannot save watchlist item %q: %w", item.ID, err)
	}
	return nil
}

func (s *Store) saveWatchlistItem(tx *badger.Txn, item *askwarren.WatchlistItem) error {
	var items []askwarren.WatchlistItem
	if err := s.db.TxFind(tx, &items, badgerhold.Where("UserID").Eq(item.UserID)); err != nil {
		return err
	}
	w := askwarren.NewWatchlist(items...)
	for _, old := range w.Add(*item) {
		if old.ID == item.ID {
			continue
		}
		if err := s.db.TxDelete(tx, old.ID, &askwarren.WatchlistItem{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("cannot replace watchlist item %q: %w", old.ID, err)
		}
	}
	return s.db.TxUpsert(tx, item.ID, item)
}

// DeleteWatchlistItem removes one of the user's items. Items of other users
// are reported as not found.
func (s *Store) DeleteWatchlistItem(uid, id string) error {
	var item askwarren.WatchlistItem
	if err := s.get(id, &item); err != nil {
		return fmt.Errorf("cannot get watchlist item %q: %w", id, err)
	}
	if item.UserID != uid {
		return fmt.Errorf("cannot get watchlist item %q: %w", id, askwarren.ErrNotFound)
	}
	if err := s.del(id, &item); err != nil {
		return fmt.Errorf("cannot delete watchlist item %q: %w", id, err)
	}
	return nil
}

// ListFiles returns the user's vault records, newest first.
func (s *Store) ListFiles(uid string) ([]askwarren.FileRecord, error) {
	var files []askwarren.FileRecord
	q := badgerhold.Where("UserID").Eq(uid).SortBy("Timestamp").Reverse()
	if err := s.db.Find(&files, q); err != nil {
		return nil, fmt.Errorf("cannot list files of %q: %w", uid, err)
	}
	return files, nil
}

func (s *Store) GetFile(uid, id string) (*askwarren.FileRecord, error) {
	var f askwarren.FileRecord
	if err := s.get(id, &f); err != nil {
		return nil, fmt.Errorf("cannot get file %q: %w", id, err)
	}
	if f.UserID != uid {
		return nil, fmt.Errorf("cannot get file %q: %w", id, askwarren.ErrNotFound)
	}
	return &f, nil
}

func (s *Store) SaveFile(f *askwarren.FileRecord) error {
	if f.ID == "" || f.UserID == "" {
		return fmt.Errorf("file id and user are required")
	}
	if err := s.db.Upsert(f.ID, f); err != nil {
		return fmt.Errorf("cannot save file %q: %w", f.ID, err)
	}
	return nil
}

func (s *Store) DeleteFile(uid, id string) error {
	if _, err := s.GetFile(uid, id); err != nil {
		return err
	}
	if err := s.del(id, &askwarren.FileRecord{}); err != nil {
		return fmt.Errorf("cannot delete file %q: %w", id, err)
	}
	return nil
}

// DeleteUserRecords removes every watchlist item and file record of uid.
func (s *Store) DeleteUserRecords(uid string) error {
	if err := s.db.DeleteMatching(&askwarren.WatchlistItem{}, badgerhold.Where("UserID").Eq(uid)); err != nil {
		return fmt.Errorf("cannot delete watchlist of %q: %w", uid, err)
	}
	if err := s.db.DeleteMatching(&askwarren.FileRecord{}, badgerhold.Where("UserID").Eq(uid)); err != nil {
		return fmt.Errorf("cannot delete files of %q: %w", uid, err)
	}
	return nil
}
