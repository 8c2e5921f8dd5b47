// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statedb provides a key-value backed implementation of the
// pair.StateDB surface: contract storage words, an event log, a block
// index, and journal-based snapshot/revert. Writes are buffered in
// memory and reach the backing database only on Commit, so a reverted
// operation leaves no trace.
package statedb

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

var storagePrefix = []byte("st/")

// ErrStaleSnapshot is returned by RevertToSnapshot for an id that was
// already reverted or committed away.
var ErrStaleSnapshot = errors.New("statedb: stale snapshot id")

type journalEntry struct {
	key     string
	prev    common.Hash
	present bool
}

type snapshot struct {
	journalLen int
	logLen     int
}

// DB buffers storage writes over a database.Database.
type DB struct {
	backing database.Database
	block   uint64

	dirty     map[string]common.Hash
	journal   []journalEntry
	snapshots []snapshot
	logs      []*types.Log
}

// New returns an empty overlay on top of the backing database.
func New(backing database.Database) *DB {
	return &DB{
		backing: backing,
		dirty:   make(map[string]common.Hash),
	}
}

func storageKey(addr common.Address, slot common.Hash) string {
	key := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix...)
	key = append(key, addr.Bytes()...)
	key = append(key, slot.Bytes()...)
	return string(key)
}

// GetState returns the stored word, or the zero hash when unset.
func (s *DB) GetState(addr common.Address, slot common.Hash) common.Hash {
	key := storageKey(addr, slot)
	if value, ok := s.dirty[key]; ok {
		return value
	}
	raw, err := s.backing.Get([]byte(key))
	if err != nil {
		// Missing keys read as zero; any other backend failure would
		// surface on Commit.
		return common.Hash{}
	}
	return common.BytesToHash(raw)
}

// SetState records a storage write in the overlay.
func (s *DB) SetState(addr common.Address, slot common.Hash, value common.Hash) {
	key := storageKey(addr, slot)
	prev, present := s.dirty[key]
	s.journal = append(s.journal, journalEntry{key: key, prev: prev, present: present})
	s.dirty[key] = value
}

// AddLog appends an event to the log buffer.
func (s *DB) AddLog(log *types.Log) {
	s.logs = append(s.logs, log)
}

// Logs returns the events accumulated since construction, in order.
func (s *DB) Logs() []*types.Log {
	return s.logs
}

// SetBlockNumber sets the current block index.
func (s *DB) SetBlockNumber(block uint64) {
	s.block = block
}

// GetBlockNumber returns the current block index.
func (s *DB) GetBlockNumber() uint64 {
	return s.block
}

// Snapshot marks the current overlay state and returns its id.
func (s *DB) Snapshot() int {
	s.snapshots = append(s.snapshots, snapshot{
		journalLen: len(s.journal),
		logLen:     len(s.logs),
	})
	return len(s.snapshots) - 1
}

// RevertToSnapshot undoes every write and log since the snapshot was taken.
func (s *DB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrStaleSnapshot, id))
	}
	mark := s.snapshots[id]
	for i := len(s.journal) - 1; i >= mark.journalLen; i-- {
		entry := s.journal[i]
		if entry.present {
			s.dirty[entry.key] = entry.prev
		} else {
			delete(s.dirty, entry.key)
		}
	}
	s.journal = s.journal[:mark.journalLen]
	s.logs = s.logs[:mark.logLen]
	s.snapshots = s.snapshots[:id]
}

// Commit flushes the overlay to the backing database in one batch and
// resets the journal. Buffered logs are kept; the caller drains them.
func (s *DB) Commit() error {
	batch := s.backing.NewBatch()
	for key, value := range s.dirty {
		if err := batch.Put([]byte(key), value.Bytes()); err != nil {
			return fmt.Errorf("stage storage write: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("write storage batch: %w", err)
	}
	s.dirty = make(map[string]common.Hash)
	s.journal = s.journal[:0]
	s.snapshots = s.snapshots[:0]
	return nil
}
