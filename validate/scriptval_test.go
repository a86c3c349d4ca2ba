// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"runtime"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
	"github.com/stretchr/testify/require"
)

// arithSpend returns a transaction with numInputs P2WSH inputs that each
// reveal the arithmetic witness script.  The input at badIdx, when in range,
// pushes the wrong number.
func arithSpend(t *testing.T, numInputs, badIdx int) (*wire.MsgTx,
	*txscript.MultiPrevOutFetcher) {

	t.Helper()

	witnessScript := hexToBytes(arithScript)
	pkScript, err := txscript.PayToWitnessScriptHashScript(witnessScript)
	require.NoError(t, err)

	pkScripts := make([][]byte, numInputs)
	witnesses := make([]wire.TxWitness, numInputs)
	for i := range pkScripts {
		pkScripts[i] = pkScript
		witnesses[i] = wire.TxWitness{{0x04}, witnessScript}
		if i == badIdx {
			witnesses[i] = wire.TxWitness{{0x03}, witnessScript}
		}
	}
	return spendTx(1000, pkScripts, nil, witnesses)
}

// TestValidateTransactionScripts ensures the parallel validator accepts
// valid transactions and reports the first failing input.
func TestValidateTransactionScripts(t *testing.T) {
	t.Parallel()

	// More inputs than goroutines exercises the handler hand-off.
	numInputs := runtime.NumCPU()*3 + 5

	tx, fetcher := arithSpend(t, numInputs, -1)
	err := ValidateTransactionScripts(btcutil.NewTx(tx), fetcher, nil)
	require.NoError(t, err)

	tx, fetcher = arithSpend(t, numInputs, numInputs-2)
	err = ValidateTransactionScripts(btcutil.NewTx(tx), fetcher, nil)
	requireRuleError(t, err, ErrScriptValidation)

	tx, fetcher = witnessFixture(t)
	err = ValidateTransactionScripts(btcutil.NewTx(tx), fetcher,
		txscript.NewSigCache(10))
	require.NoError(t, err)

	tx, fetcher = p2pkhFixture()
	tx.TxIn[0].SignatureScript = []byte{txscript.OP_PUSHDATA2}
	err = ValidateTransactionScripts(btcutil.NewTx(tx), fetcher, nil)
	requireRuleError(t, err, ErrScriptMalformed)

	// Nothing to validate is not an error for the worker pool, but a
	// transaction without inputs is still rejected.
	require.NoError(t, newTxValidator(fetcher, nil).Validate(nil))
	err = ValidateTransactionScripts(
		btcutil.NewTx(wire.NewMsgTx(wire.TxVersion)), fetcher, nil)
	requireRuleError(t, err, ErrNoTxInputs)
}

// TestValidateTransactions ensures the inputs of several transactions are
// validated together and that the midstate cache is cleaned up afterwards.
func TestValidateTransactions(t *testing.T) {
	t.Parallel()

	p2pkhTx, p2pkhFetcher := p2pkhFixture()
	p2shTx, p2shFetcher := p2shFixture()
	witnessTx, witnessFetcher := witnessFixture(t)

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.Merge(p2pkhFetcher)
	fetcher.Merge(p2shFetcher)
	fetcher.Merge(witnessFetcher)

	txs := []*btcutil.Tx{
		btcutil.NewTx(p2pkhTx),
		btcutil.NewTx(p2shTx),
		btcutil.NewTx(witnessTx),
	}

	hashCache := txscript.NewHashCache(10)
	err := ValidateTransactions(txs, fetcher, txscript.NewSigCache(100),
		hashCache)
	require.NoError(t, err)
	for _, tx := range txs {
		require.False(t, hashCache.ContainsHashes(tx.Hash()))
	}

	// A precomputed midstate is used and then purged as well.
	hashCache.AddSigHashes(witnessTx)
	require.True(t, hashCache.ContainsHashes(txs[2].Hash()))
	require.NoError(t, ValidateTransactions(txs, fetcher, nil, hashCache))
	require.False(t, hashCache.ContainsHashes(txs[2].Hash()))

	// A failure in any transaction fails the batch.
	badTx, badFetcher := arithSpend(t, 3, 1)
	fetcher.Merge(badFetcher)
	txs = append(txs, btcutil.NewTx(badTx))
	err = ValidateTransactions(txs, fetcher, nil, nil)
	requireRuleError(t, err, ErrScriptValidation)

	// A missing prevout surfaces as a lookup failure.
	err = ValidateTransactions(txs[:1], txscript.NewMultiPrevOutFetcher(nil),
		nil, nil)
	requireRuleError(t, err, ErrMissingTxOut)
}
