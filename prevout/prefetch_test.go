// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
	"github.com/stretchr/testify/require"
)

// spendingTx returns a transaction spending every passed outpoint.
func spendingTx(ops ...wire.OutPoint) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for i := range ops {
		tx.AddTxIn(wire.NewTxIn(&ops[i], nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(1, []byte{0x51}))
	return tx
}

// TestPrefetch ensures every known output is collected once and unknown
// ones are left for verification to report.
func TestPrefetch(t *testing.T) {
	t.Parallel()

	funding := testTx(MaxPrefetchWorkers+4, 0xa0)
	fundingHash := funding.TxHash()
	unknown := testTx(1, 0xa1).TxHash()
	coinbase := wire.OutPoint{Index: math.MaxUint32}

	ops := []wire.OutPoint{coinbase, *wire.NewOutPoint(&unknown, 0)}
	for i := range funding.TxOut {
		ops = append(ops, *wire.NewOutPoint(&fundingHash, uint32(i)))
	}
	ops = append(ops, ops[2])
	tx := spendingTx(ops...)

	src := &stubSource{name: "src", outs: txOuts(funding)}
	prevOuts, err := Prefetch(context.Background(), src, tx)
	require.NoError(t, err)
	require.Equal(t, len(funding.TxOut), prevOuts.Len())
	require.Equal(t, int32(len(funding.TxOut)+1), src.calls.Load())

	for op, want := range txOuts(funding) {
		got, err := prevOuts.FetchPrevOutput(op)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err = prevOuts.FetchPrevOutput(*wire.NewOutPoint(&unknown, 0))
	require.True(t, txscript.IsErrorCode(err, txscript.ErrPrevOutNotFound))

	// A plain fetcher reporting misses its own way works as well.
	partial := txscript.NewMultiPrevOutFetcher(nil)
	partial.AddPrevOut(ops[2], funding.TxOut[0])
	prevOuts, err = Prefetch(context.Background(), partial, tx)
	require.NoError(t, err)
	require.Equal(t, 1, prevOuts.Len())
}

// TestPrefetchErrors ensures lookup failures and cancellation abort the
// prefetch.
func TestPrefetchErrors(t *testing.T) {
	t.Parallel()

	prevHash := chainhash.HashH([]byte("prefetch"))
	tx := spendingTx(*wire.NewOutPoint(&prevHash, 0),
		*wire.NewOutPoint(&prevHash, 1))

	errDown := errors.New("connection refused")
	_, err := Prefetch(context.Background(),
		&stubSource{name: "broken", err: errDown}, tx)
	require.ErrorIs(t, err, errDown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Prefetch(ctx, txscript.NewMultiPrevOutFetcher(nil), tx)
	require.ErrorIs(t, err, context.Canceled)
}
