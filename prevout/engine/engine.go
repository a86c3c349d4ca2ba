// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package engine defines the minimal ordered key-value interface the prevout
// store is written against, so the same store runs on top of leveldb, pebble
// or badger.
package engine

import "errors"

var (
	// ErrNotFound is returned by Snapshot.Get when the key does not exist.
	ErrNotFound = errors.New("engine: key not found")

	// ErrDbClosed is returned when an engine is used after Close.
	ErrDbClosed = errors.New("engine: closed")

	// ErrTxClosed is returned when a transaction is used after it has been
	// committed or discarded.
	ErrTxClosed = errors.New("engine: transaction already closed")

	// ErrSnapshotReleased is returned when a snapshot is read after
	// Release.
	ErrSnapshotReleased = errors.New("engine: snapshot released")

	// ErrIterReleased is returned by Iterator.Error after Release.
	ErrIterReleased = errors.New("engine: iterator released")
)

// Engine is an ordered key-value database.
type Engine interface {
	// Transaction opens a write batch.  Nothing written to it is visible
	// until Commit.
	Transaction() (Transaction, error)

	// Snapshot returns a consistent read-only view of the committed data.
	Snapshot() (Snapshot, error)

	Close() error
}

// Transaction is a batch of writes applied atomically on Commit.
type Transaction interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error

	// Discard drops the batch.  It is safe to call more than once and
	// after Commit.
	Discard()
}

// Snapshot is a read-only view of an engine.
type Snapshot interface {
	// Get returns a copy of the value stored under key or ErrNotFound.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)

	// NewIterator returns a forward iterator over the keys in r.  Every
	// iterator must be released before the snapshot that created it.
	NewIterator(r *Range) Iterator

	Releaser
}

// Releaser is implemented by resources that must be released after use.
// Release is safe to call more than once.
type Releaser interface {
	Release()
}
