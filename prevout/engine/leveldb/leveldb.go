// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package leveldb implements engine.Engine on goleveldb.
package leveldb

import (
	"errors"
	"sync/atomic"

	"github.com/btcsuite/btcverify/prevout/engine"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// NewDB opens the leveldb database at dbPath.  When create is set the
// database must not exist yet.
func NewDB(dbPath string, create bool) (engine.Engine, error) {
	opts := opt.Options{
		ErrorIfExist: create,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
		Filter:       filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, err
	}
	return &DB{ldb: ldb}, nil
}

// DB wraps a goleveldb handle.
type DB struct {
	ldb    *leveldb.DB
	closed atomic.Bool
}

func (d *DB) Transaction() (engine.Transaction, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	tx, err := d.ldb.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

func (d *DB) Snapshot() (engine.Snapshot, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	snapshot, err := d.ldb.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &Snapshot{snap: snapshot}, nil
}

func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrDbClosed
	}
	return d.ldb.Close()
}

// Snapshot wraps a goleveldb snapshot.
type Snapshot struct {
	snap     *leveldb.Snapshot
	released bool
}

func (s *Snapshot) Has(key []byte) (bool, error) {
	if s.released {
		return false, engine.ErrSnapshotReleased
	}
	return s.snap.Has(key, nil)
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrSnapshotReleased
	}
	val, err := s.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, engine.ErrNotFound
	}
	return val, err
}

func (s *Snapshot) NewIterator(r *engine.Range) engine.Iterator {
	var slice *util.Range
	if r != nil {
		slice = &util.Range{Start: r.Start, Limit: r.Limit}
	}
	return s.snap.NewIterator(slice, nil)
}

func (s *Snapshot) Release() {
	if !s.released {
		s.released = true
		s.snap.Release()
	}
}

// Transaction wraps a goleveldb transaction.
type Transaction struct {
	tx       *leveldb.Transaction
	released bool
}

func (t *Transaction) Put(key, value []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.tx.Put(key, value, nil)
}

func (t *Transaction) Delete(key []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.tx.Delete(key, nil)
}

func (t *Transaction) Commit() error {
	if t.released {
		return engine.ErrTxClosed
	}
	t.released = true
	return t.tx.Commit()
}

func (t *Transaction) Discard() {
	if !t.released {
		t.released = true
		t.tx.Discard()
	}
}
