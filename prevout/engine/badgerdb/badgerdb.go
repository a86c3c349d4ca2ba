// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package badgerdb implements engine.Engine on badger.  Writes go through a
// read-write badger transaction and snapshots are read-only transactions,
// which badger already isolates at their read timestamp.
package badgerdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/btcsuite/btcverify/prevout/engine"
	"github.com/dgraph-io/badger/v4"
)

// NewDB opens the badger database in the directory dbPath.  When create is
// set the directory must not already hold a database.
func NewDB(dbPath string, create bool) (engine.Engine, error) {
	if create {
		_, err := os.Stat(filepath.Join(dbPath, badger.ManifestFilename))
		if err == nil {
			return nil, fmt.Errorf("badgerdb: database %s already exists",
				dbPath)
		}
	}

	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{bdb: bdb}, nil
}

// DB wraps a badger handle.
type DB struct {
	bdb    *badger.DB
	closed atomic.Bool
}

func (d *DB) Transaction() (engine.Transaction, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	return &Transaction{txn: d.bdb.NewTransaction(true)}, nil
}

func (d *DB) Snapshot() (engine.Snapshot, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	return &Snapshot{txn: d.bdb.NewTransaction(false)}, nil
}

func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrDbClosed
	}
	return d.bdb.Close()
}

// Snapshot is a read-only badger transaction.
type Snapshot struct {
	txn      *badger.Txn
	released bool
}

func (s *Snapshot) Has(key []byte) (bool, error) {
	if s.released {
		return false, engine.ErrSnapshotReleased
	}
	_, err := s.txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrSnapshotReleased
	}
	item, err := s.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *Snapshot) NewIterator(r *engine.Range) engine.Iterator {
	if s.released {
		return &Iterator{err: engine.ErrSnapshotReleased}
	}
	if r == nil {
		r = &engine.Range{}
	}
	return &Iterator{
		iter:  s.txn.NewIterator(badger.DefaultIteratorOptions),
		start: r.Start,
		limit: r.Limit,
	}
}

func (s *Snapshot) Release() {
	if !s.released {
		s.released = true
		s.txn.Discard()
	}
}

// Transaction is a read-write badger transaction.
type Transaction struct {
	txn      *badger.Txn
	released bool
}

func (t *Transaction) Put(key, value []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.txn.Set(key, value)
}

func (t *Transaction) Delete(key []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.txn.Delete(key)
}

func (t *Transaction) Commit() error {
	if t.released {
		return engine.ErrTxClosed
	}
	t.released = true
	return t.txn.Commit()
}

func (t *Transaction) Discard() {
	if !t.released {
		t.released = true
		t.txn.Discard()
	}
}

// Iterator walks a badger iterator up to an exclusive limit.  Keys and values
// are copied out of badger so they stay valid after the iterator moves.
type Iterator struct {
	iter         *badger.Iterator
	start, limit []byte
	started      bool
	released     bool
	key, value   []byte
	err          error
}

func (i *Iterator) Next() bool {
	i.key, i.value = nil, nil
	if i.iter == nil || i.released || i.err != nil {
		return false
	}
	if !i.started {
		i.started = true
		if i.start == nil {
			i.iter.Rewind()
		} else {
			i.iter.Seek(i.start)
		}
	} else {
		i.iter.Next()
	}
	if !i.iter.Valid() {
		return false
	}

	item := i.iter.Item()
	key := item.KeyCopy(nil)
	if i.limit != nil && bytes.Compare(key, i.limit) >= 0 {
		return false
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		i.err = err
		return false
	}
	i.key, i.value = key, value
	return true
}

func (i *Iterator) Key() []byte {
	return i.key
}

func (i *Iterator) Value() []byte {
	return i.value
}

func (i *Iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if i.released {
		return engine.ErrIterReleased
	}
	return nil
}

func (i *Iterator) Release() {
	if i.released {
		return
	}
	i.released = true
	i.key, i.value = nil, nil
	if i.iter != nil {
		i.iter.Close()
	}
}
