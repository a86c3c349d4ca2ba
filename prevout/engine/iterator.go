// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

// Iterator walks the pairs of a Range in ascending key order.  It starts
// before the first pair.
type Iterator interface {
	// Next advances to the following pair and reports whether there is
	// one.
	Next() bool

	// Error returns the error that stopped the iterator, if any.  Running
	// off the end of the range is not an error.
	Error() error

	// Key and Value return the current pair.  The slices are only valid
	// until the next call to Next and must not be modified.
	Key() []byte
	Value() []byte

	Releaser
}

// Range selects the keys k with Start <= k < Limit.  A nil Start means the
// first key and a nil Limit means past the last key.
type Range struct {
	Start []byte
	Limit []byte
}

// BytesPrefix returns the Range of every key that begins with prefix.
func BytesPrefix(prefix []byte) *Range {
	// The limit is the prefix with its last non-0xff byte incremented and
	// everything after it dropped.  A prefix of only 0xff bytes has no
	// upper bound.
	end := len(prefix)
	for end > 0 && prefix[end-1] == 0xff {
		end--
	}
	if end == 0 {
		return &Range{Start: prefix}
	}
	limit := append([]byte(nil), prefix[:end]...)
	limit[end-1]++
	return &Range{Start: prefix, Limit: limit}
}
