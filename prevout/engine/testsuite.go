// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// commit writes kvs to e in a single transaction.
func commit(t *testing.T, e Engine, kvs map[string]string) {
	t.Helper()

	tx, err := e.Transaction()
	require.NoError(t, err)
	for k, v := range kvs {
		require.NoError(t, tx.Put([]byte(k), []byte(v)))
	}
	require.NoError(t, tx.Commit())
	tx.Discard()
}

// collect returns every pair of r in iteration order.
func collect(t *testing.T, e Engine, r *Range) [][2]string {
	t.Helper()

	snapshot, err := e.Snapshot()
	require.NoError(t, err)
	defer snapshot.Release()

	iter := snapshot.NewIterator(r)
	defer iter.Release()

	var pairs [][2]string
	for iter.Next() {
		pairs = append(pairs, [2]string{string(iter.Key()),
			string(iter.Value())})
	}
	require.NoError(t, iter.Error())
	return pairs
}

// TestSuiteEngine runs the behaviour every Engine implementation must share.
// newEngine is called once per subtest and must return an empty engine.
func TestSuiteEngine(t *testing.T, newEngine func() Engine) {
	t.Run("PutGetDelete", func(t *testing.T) {
		e := newEngine()
		defer e.Close()

		key, value := []byte("o\x01\x00"), []byte("output")

		tx, err := e.Transaction()
		require.NoError(t, err)
		require.NoError(t, tx.Put(key, value))

		// Nothing is visible before the commit.
		snapshot, err := e.Snapshot()
		require.NoError(t, err)
		has, err := snapshot.Has(key)
		require.NoError(t, err)
		require.False(t, has)
		got, err := snapshot.Get(key)
		require.ErrorIs(t, err, ErrNotFound)
		require.Nil(t, got)
		snapshot.Release()

		require.NoError(t, tx.Commit())

		snapshot, err = e.Snapshot()
		require.NoError(t, err)
		got, err = snapshot.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)

		// Callers own the returned slice.
		got[0] ^= 0xff
		got, err = snapshot.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)
		snapshot.Release()

		tx, err = e.Transaction()
		require.NoError(t, err)
		require.NoError(t, tx.Delete(key))
		require.NoError(t, tx.Commit())

		snapshot, err = e.Snapshot()
		require.NoError(t, err)
		defer snapshot.Release()
		has, err = snapshot.Has(key)
		require.NoError(t, err)
		require.False(t, has)
		_, err = snapshot.Get(key)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Ranges", func(t *testing.T) {
		kvs := map[string]string{
			"a":            "0",
			"o1":           "10",
			"o10":          "100",
			"o2":           "20",
			"p":            "30",
			"\xff":         "40",
			"\xff\x01":     "41",
			"\xff\xff\x00": "42",
		}
		tests := []struct {
			name string
			r    *Range
			want [][2]string
		}{{
			name: "empty range",
			r:    &Range{Start: []byte("o2"), Limit: []byte("o2")},
		}, {
			name: "before first key",
			r:    &Range{Limit: []byte("a")},
		}, {
			name: "start inclusive, limit exclusive",
			r:    &Range{Start: []byte("o1"), Limit: []byte("o2")},
			want: [][2]string{{"o1", "10"}, {"o10", "100"}},
		}, {
			name: "start between keys",
			r:    &Range{Start: []byte("o11"), Limit: []byte("q")},
			want: [][2]string{{"o2", "20"}, {"p", "30"}},
		}, {
			name: "prefix",
			r:    BytesPrefix([]byte("o")),
			want: [][2]string{{"o1", "10"}, {"o10", "100"}, {"o2", "20"}},
		}, {
			name: "prefix of 0xff",
			r:    BytesPrefix([]byte("\xff")),
			want: [][2]string{{"\xff", "40"}, {"\xff\x01", "41"},
				{"\xff\xff\x00", "42"}},
		}, {
			name: "everything",
			r:    &Range{},
			want: [][2]string{{"a", "0"}, {"o1", "10"}, {"o10", "100"},
				{"o2", "20"}, {"p", "30"}, {"\xff", "40"},
				{"\xff\x01", "41"}, {"\xff\xff\x00", "42"}},
		}}

		e := newEngine()
		defer e.Close()
		commit(t, e, kvs)
		for _, test := range tests {
			require.Equal(t, test.want, collect(t, e, test.r), test.name)
		}
	})

	t.Run("ReleaseAndClose", func(t *testing.T) {
		e := newEngine()

		tx, err := e.Transaction()
		require.NoError(t, err)
		tx.Discard()
		tx.Discard()
		require.Error(t, tx.Commit(), "commit after discard")

		snapshot, err := e.Snapshot()
		require.NoError(t, err)
		iter := snapshot.NewIterator(&Range{})
		require.NoError(t, iter.Error())
		iter.Release()
		iter.Release()
		snapshot.Release()
		snapshot.Release()
		_, err = snapshot.Get([]byte("o"))
		require.ErrorIs(t, err, ErrSnapshotReleased)

		require.NoError(t, e.Close())
		require.ErrorIs(t, e.Close(), ErrDbClosed)
		_, err = e.Transaction()
		require.ErrorIs(t, err, ErrDbClosed)
		_, err = e.Snapshot()
		require.ErrorIs(t, err, ErrDbClosed)
	})
}
