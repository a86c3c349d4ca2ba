// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/prevout"
	"github.com/stretchr/testify/require"
)

const testTxid = "0437cd7f8525ceed2324359c2d0ba26006d92d856a9c20fa0241106ee5a597c9"

func TestParsePrevOutLine(t *testing.T) {
	t.Parallel()

	op, txOut, err := parsePrevOutLine(testTxid + ":1 5000000000 76a914" +
		"00112233445566778899aabbccddeeff0011223388ac")
	require.NoError(t, err)

	hash, err := chainhash.NewHashFromStr(testTxid)
	require.NoError(t, err)
	require.Equal(t, *wire.NewOutPoint(hash, 1), op)
	require.Equal(t, int64(5000000000), txOut.Value)
	require.Len(t, txOut.PkScript, 25)

	bad := []string{
		testTxid + ":1 5000",
		testTxid + " 5000 51",
		"zz:1 5000 51",
		testTxid + ":x 5000 51",
		testTxid + ":4294967296 5000 51",
		testTxid + ":1 -1 51",
		testTxid + ":1 2100000000000001 51",
		testTxid + ":1 five 51",
		testTxid + ":1 5000 5",
	}
	for _, line := range bad {
		_, _, err := parsePrevOutLine(line)
		require.Errorf(t, err, "line %q", line)
	}
}

func TestReadPrevOuts(t *testing.T) {
	t.Parallel()

	listing := strings.Join([]string{
		"# funding outputs",
		"",
		testTxid + ":0 1000 51 # OP_1",
		"  " + testTxid + ":1 2000 00  ",
	}, "\n")
	txOuts, err := readPrevOuts(strings.NewReader(listing))
	require.NoError(t, err)
	require.Len(t, txOuts, 2)

	_, err = readPrevOuts(strings.NewReader("\n" + testTxid + ":0 1000\n"))
	require.ErrorContains(t, err, "line 2")
}

// TestImportListPrevOuts ensures the listing of a store can be imported
// back.
func TestImportListPrevOuts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := prevout.OpenStore(prevout.DbTypeLevelDB, filepath.Join(dir, "a"))
	require.NoError(t, err)
	defer store.Close()

	importFile := filepath.Join(dir, "prevouts.txt")
	listing := testTxid + ":0 1000 51\n" + testTxid + ":1 2000 0014" +
		"00112233445566778899aabbccddeeff00112233\n"
	require.NoError(t, os.WriteFile(importFile, []byte(listing), 0600))

	n, err := importPrevOuts(store, importFile)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var buf bytes.Buffer
	require.NoError(t, listPrevOuts(store, &buf))
	require.Contains(t, buf.String(), "# 1\n")
	require.Contains(t, buf.String(), "# 0 00112233445566778899aabbccddeeff00112233\n")

	exported := filepath.Join(dir, "exported.txt")
	require.NoError(t, os.WriteFile(exported, buf.Bytes(), 0600))
	other, err := prevout.OpenStore(prevout.DbTypeLevelDB, filepath.Join(dir, "b"))
	require.NoError(t, err)
	defer other.Close()
	n, err = importPrevOuts(other, exported)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = importPrevOuts(other, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}
