// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/btcsuite/btcverify/prevout/engine"
	"github.com/cockroachdb/pebble"
)

// Iterator adapts a bounded pebble iterator to engine.Iterator.  A nil iter
// means the iterator could not be created and err says why.
type Iterator struct {
	iter     *pebble.Iterator
	started  bool
	released bool
	err      error
}

func (i *Iterator) Next() bool {
	if i.iter == nil || i.released {
		return false
	}
	if !i.started {
		i.started = true
		return i.iter.First()
	}
	return i.iter.Next()
}

func (i *Iterator) valid() bool {
	return i.iter != nil && !i.released && i.started && i.iter.Valid()
}

func (i *Iterator) Key() []byte {
	if !i.valid() {
		return nil
	}
	return i.iter.Key()
}

func (i *Iterator) Value() []byte {
	if !i.valid() {
		return nil
	}
	return i.iter.Value()
}

func (i *Iterator) Error() error {
	switch {
	case i.err != nil:
		return i.err
	case i.released:
		return engine.ErrIterReleased
	case i.iter == nil:
		return nil
	}
	return i.iter.Error()
}

func (i *Iterator) Release() {
	if i.released {
		return
	}
	i.released = true
	if i.iter != nil {
		i.iter.Close()
	}
}
