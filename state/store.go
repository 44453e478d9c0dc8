// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides the journaled slot store that backs program state.
// Writes are buffered in memory, can be rolled back to any snapshot taken
// during the transaction and are flushed to the database on Commit.
package state

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapvault/contract"
)

var _ contract.StateDB = (*Store)(nil)

// journalEntry records the value a slot held before a write.
type journalEntry struct {
	key      common.Hash
	prev     common.Hash
	wasDirty bool
}

// Store implements contract.StateDB on top of a database.Database.
type Store struct {
	db      database.Database
	dirty   map[common.Hash]common.Hash
	journal []journalEntry

	// dbErr is the first read error observed; reads cannot return errors
	// so it is surfaced on Commit.
	dbErr error
}

// New creates a store reading through to db.
func New(db database.Database) *Store {
	return &Store{
		db:    db,
		dirty: make(map[common.Hash]common.Hash),
	}
}

// Key derives a storage slot from a prefix and identifying parts.
// Key: BLAKE3(prefix || parts...)
func Key(prefix []byte, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// GetState returns the current value of a slot.
func (s *Store) GetState(key common.Hash) common.Hash {
	if v, ok := s.dirty[key]; ok {
		return v
	}
	raw, err := s.db.Get(key[:])
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) && s.dbErr == nil {
			s.dbErr = fmt.Errorf("read slot %s: %w", key.Hex(), err)
		}
		return common.Hash{}
	}
	return common.BytesToHash(raw)
}

// SetState writes a slot. The previous value is journaled.
func (s *Store) SetState(key common.Hash, value common.Hash) {
	prev, wasDirty := s.dirty[key]
	s.journal = append(s.journal, journalEntry{key: key, prev: prev, wasDirty: wasDirty})
	s.dirty[key] = value
}

// Snapshot returns an identifier for the current journal position.
func (s *Store) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes every write made after the snapshot, newest first.
func (s *Store) RevertToSnapshot(id int) {
	if id < 0 || id > len(s.journal) {
		panic(fmt.Errorf("revision id %d cannot be reverted (journal length %d)", id, len(s.journal)))
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		entry := s.journal[i]
		if entry.wasDirty {
			s.dirty[entry.key] = entry.prev
		} else {
			delete(s.dirty, entry.key)
		}
	}
	s.journal = s.journal[:id]
}

// Dirty returns the number of slots pending commit.
func (s *Store) Dirty() int {
	return len(s.dirty)
}

// Commit flushes pending writes to the database in one batch.
// Zero-valued slots are deleted.
func (s *Store) Commit() error {
	if s.dbErr != nil {
		err := s.dbErr
		s.Discard()
		return err
	}
	batch := s.db.NewBatch()
	for key, value := range s.dirty {
		var err error
		if value == (common.Hash{}) {
			err = batch.Delete(key[:])
		} else {
			err = batch.Put(key[:], value[:])
		}
		if err != nil {
			return fmt.Errorf("stage slot %s: %w", key.Hex(), err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	s.Discard()
	return nil
}

// Discard drops all pending writes.
func (s *Store) Discard() {
	s.dirty = make(map[common.Hash]common.Hash)
	s.journal = s.journal[:0]
	s.dbErr = nil
}
