// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pebbledb implements engine.Engine on pebble.
package pebbledb

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/btcsuite/btcverify/prevout/engine"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

const (
	// DefaultCache is the block cache size in MiB used when none is given.
	DefaultCache = 16

	// DefaultHandles is the number of open files used when none is given.
	DefaultHandles = 16
)

// NewDB opens the pebble database at dbPath with a cache of cache MiB and at
// most handles open files.  When create is set the database must not exist
// yet.
func NewDB(dbPath string, create bool, cache, handles int) (engine.Engine, error) {
	if cache <= 0 {
		cache = DefaultCache
	}
	if handles <= 0 {
		handles = DefaultHandles
	}

	blockCache := pebble.NewCache(int64(cache * 1024 * 1024))
	defer blockCache.Unref()

	levels := make([]pebble.LevelOptions, 7)
	for i := range levels {
		levels[i] = pebble.LevelOptions{
			TargetFileSize: int64(2*1024*1024) << i,
			FilterPolicy:   bloom.FilterPolicy(10),
		}
	}
	opts := &pebble.Options{
		Cache:                    blockCache,
		ErrorIfExists:            create,
		MaxOpenFiles:             handles,
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels:                   levels,
	}
	pdb, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, err
	}
	return &DB{pdb: pdb}, nil
}

// DB wraps a pebble handle.
type DB struct {
	pdb    *pebble.DB
	closed atomic.Bool
}

func (d *DB) Transaction() (engine.Transaction, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	return &Transaction{batch: d.pdb.NewBatch()}, nil
}

func (d *DB) Snapshot() (engine.Snapshot, error) {
	if d.closed.Load() {
		return nil, engine.ErrDbClosed
	}
	return &Snapshot{snap: d.pdb.NewSnapshot()}, nil
}

func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrDbClosed
	}
	return d.pdb.Close()
}

// Snapshot wraps a pebble snapshot.
type Snapshot struct {
	snap     *pebble.Snapshot
	released bool
}

func (s *Snapshot) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	switch {
	case errors.Is(err, engine.ErrNotFound):
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

	ori, closer, err := s.snap.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The returned slice is only valid until closer is closed.
	val := make([]byte, len(ori))
	copy(val, ori)
	return val, nil
}

func (s *Snapshot) NewIterator(r *engine.Range) engine.Iterator {
	if s.released {
		return &Iterator{err: engine.ErrSnapshotReleased}
	}

	opts := &pebble.IterOptions{}
	if r != nil {
		opts.LowerBound = r.Start
		opts.UpperBound = r.Limit
	}
	iter, err := s.snap.NewIter(opts)
	if err != nil {
		return &Iterator{err: err}
	}
	return &Iterator{iter: iter}
}

func (s *Snapshot) Release() {
	if !s.released {
		s.released = true
		s.snap.Close()
	}
}

// Transaction wraps a pebble batch.
type Transaction struct {
	batch    *pebble.Batch
	released bool
}

func (t *Transaction) Put(key, value []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.batch.Set(key, value, pebble.NoSync)
}

func (t *Transaction) Delete(key []byte) error {
	if t.released {
		return engine.ErrTxClosed
	}
	return t.batch.Delete(key, pebble.NoSync)
}

func (t *Transaction) Commit() error {
	if t.released {
		return engine.ErrTxClosed
	}
	t.released = true
	defer t.batch.Close()
	return t.batch.Commit(pebble.Sync)
}

func (t *Transaction) Discard() {
	if !t.released {
		t.released = true
		t.batch.Close()
	}
}
