// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

const (
	// witnessTxHex is the unsigned transaction of the native P2WPKH example
	// in BIP0143.  Input 0 spends a P2PK output and input 1 a P2WPKH one.
	witnessTxHex = "0100000002fff7f7881a8099afa6940d42d1e7f6362bec38171ea3edf433541db4e4ad969f0000000000eeffffffef51e1b804cc89d182d279655c3aa89e815b1b309fe287d9b2b55d57b90ec68a0100000000ffffffff02202cb206000000001976a9148280b37df378db99f66f85c95a783a76ac7a6d5988ac9093510d000000001976a9143bde42dbee7e4dbe6a21b2d50ce2f0167faa815988ac11000000"

	witnessTxP2PKScript   = "2103c9f4836b9a4f77fc0d81f7bcb01b7f1b35916864b9476c241ce9fc198bd25432ac"
	witnessTxP2PKAmount   = 625000000
	witnessTxP2PKSig      = "30450221008b9d1dc26ba6a9cb62127b02742fa9d754cd3bebf337f7a55d114c8e5cdd30be022040529b194ba3f9281a99f2b1c0a19c0489bc22ede944ccf4ecbab4cc618ef3ed01"
	witnessTxP2WPKHScript = "00141d0f172a0ecb48aee1be1f2687d2963ae33f71a1"
	witnessTxP2WPKHAmount = 600000000
	witnessTxP2WPKHSig    = "304402203609e17b84f6a7d30c80bfa610b5b4542f32a8a0d5447a12fb1366d7f01cc44a0220573a954c4518331561406f90300e8f3358f51928d43c212a8caed02de67eebee01"
	witnessTxP2WPKHPubKey = "025476c2e83188368da1ff3e292e7acafcdb3566bb0ad253f62fc70f07aeee6357"
	witnessTxFee          = 889210000

	// p2pkhTxHex spends a single P2PKH output.
	p2pkhTxHex   = "0100000001813f79011acb80925dfe69b3def355fe914bd1d96a3f5f71bf8303c6a989c7d1000000006b483045022100ed81ff192e75a3fd2304004dcadb746fa5e24c5031ccfcf21320b0277457c98f02207a986d955c6e0cb35d446a89d3f56100f4d7f67801c31967743a9c8e10615bed01210349fc4e631e3624a545de3f89f5d8684c7b8138bd94bdd531d2e213bf016b278afeffffff02a135ef01000000001976a914bc3b654dca7e56b04dca18f2566cdaf02e8d9ada88ac99c39800000000001976a9141c4bc762dd5423e332166702cb75f40df79fea1288ac19430600"
	p2pkhScript  = "76a914a802fc56c704ce87c42d7c92eb75e7896bdc41ae88ac"
	p2pkhAmount  = 42505594
	p2pkhOutputs = 42465594
	p2pkhFee     = 40000

	// p2shTxHex spends a 2-of-2 multisig P2SH output.
	p2shTxHex  = "0100000001868278ed6ddfb6c1ed3ad5f8181eb0c7a385aa0836f01d5e4789e6bd304d87221a000000db00483045022100dc92655fe37036f47756db8102e0d7d5e28b3beb83a8fef4f5dc0559bddfb94e02205a36d4e4e6c7fcd16658c50783e00c341609977aed3ad00937bf4ee942a8993701483045022100da6bee3c93766232079a01639d07fa869598749729ae323eab8eef53577d611b02207bef15429dcadce2121ea07f233115c6f09034c0be68db99980b9a6c5e75402201475221022626e955ea6ea6d98850c994f9107b036b1334f18ca8830bfff1295d21cfdb702103b287eaf122eea69030a0e9feed096bed8045c8b98bec453e1ffac7fbdbd4bb7152aeffffffff04d3b11400000000001976a914904a49878c0adfc3aa05de7afad2cc15f483a56a88ac7f400900000000001976a914418327e3f3dda4cf5b9089325a4b95abdfa0334088ac722c0c00000000001976a914ba35042cfe9fc66fd35ac2224eebdafd1028ad2788acdc4ace020000000017a91474d691da1574e6b3c192ecfb52cc8984ee7b6c568700000000"
	p2shScript = "a91474d691da1574e6b3c192ecfb52cc8984ee7b6c5687"
	p2shAmount = 100000000

	// arithScript is OP_5 OP_ADD OP_9 OP_EQUAL, satisfied by pushing 4.
	arithScript = "55935987"
)

// hexToBytes converts the passed hex string into bytes and will panic if there
// is an error.  This is only provided for the hard-coded constants so errors in
// the source code can be detected. It will only (and must only) be called with
// hard-coded values.
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

// mustDeserializeTx decodes a hard-coded transaction and panics on failure.
func mustDeserializeTx(txHex string) *wire.MsgTx {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(hexToBytes(txHex))); err != nil {
		panic("invalid transaction in source file: " + err.Error())
	}
	return &tx
}

// requireRuleError asserts err is a RuleError with the given code.
func requireRuleError(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	var rerr RuleError
	require.Truef(t, errors.As(err, &rerr), "want RuleError, got %v",
		spew.Sdump(err))
	require.Equal(t, code, rerr.ErrorCode, rerr.Description)
}

// p2pkhFixture returns the P2PKH spend and a fetcher for its prevout.
func p2pkhFixture() (*wire.MsgTx, *txscript.MultiPrevOutFetcher) {
	tx := mustDeserializeTx(p2pkhTxHex)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint,
		wire.NewTxOut(p2pkhAmount, hexToBytes(p2pkhScript)))
	return tx, fetcher
}

// p2shFixture returns the P2SH multisig spend and a fetcher for its prevout.
func p2shFixture() (*wire.MsgTx, *txscript.MultiPrevOutFetcher) {
	tx := mustDeserializeTx(p2shTxHex)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint,
		wire.NewTxOut(p2shAmount, hexToBytes(p2shScript)))
	return tx, fetcher
}

// witnessFixture returns the BIP0143 P2WPKH example with both inputs signed
// and a fetcher for its prevouts.
func witnessFixture(t *testing.T) (*wire.MsgTx, *txscript.MultiPrevOutFetcher) {
	t.Helper()

	tx := mustDeserializeTx(witnessTxHex)
	sigScript, err := txscript.NewScriptBuilder().
		AddData(hexToBytes(witnessTxP2PKSig)).RawScript()
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = sigScript
	tx.TxIn[1].Witness = wire.TxWitness{
		hexToBytes(witnessTxP2WPKHSig),
		hexToBytes(witnessTxP2WPKHPubKey),
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint,
		wire.NewTxOut(witnessTxP2PKAmount, hexToBytes(witnessTxP2PKScript)))
	fetcher.AddPrevOut(tx.TxIn[1].PreviousOutPoint,
		wire.NewTxOut(witnessTxP2WPKHAmount, hexToBytes(witnessTxP2WPKHScript)))
	return tx, fetcher
}

// spendTx returns a transaction spending one output per pkScript, each worth
// amount, with the passed signature scripts and witnesses.
func spendTx(amount int64, pkScripts [][]byte, sigScripts [][]byte,
	witnesses []wire.TxWitness) (*wire.MsgTx, *txscript.MultiPrevOutFetcher) {

	tx := wire.NewMsgTx(wire.TxVersion)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, pkScript := range pkScripts {
		op := wire.OutPoint{
			Hash:  chainhash.DoubleHashH([]byte{byte(i), byte(i >> 8)}),
			Index: uint32(i),
		}
		var sigScript []byte
		if sigScripts != nil {
			sigScript = sigScripts[i]
		}
		var witness wire.TxWitness
		if witnesses != nil {
			witness = witnesses[i]
		}
		tx.AddTxIn(wire.NewTxIn(&op, sigScript, witness))
		fetcher.AddPrevOut(op, wire.NewTxOut(amount, pkScript))
	}
	tx.AddTxOut(wire.NewTxOut(amount/2, hexToBytes(p2pkhScript)))
	return tx, fetcher
}

// TestVerifyInput ensures inputs of each supported kind verify against the
// known transactions.
func TestVerifyInput(t *testing.T) {
	t.Parallel()

	t.Run("p2pkh", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("p2sh multisig", func(t *testing.T) {
		tx, fetcher := p2shFixture()
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("p2pk and p2wpkh", func(t *testing.T) {
		tx, fetcher := witnessFixture(t)
		for idx := range tx.TxIn {
			valid, err := VerifyInput(tx, idx, fetcher, nil)
			require.NoError(t, err, "input %d", idx)
			require.True(t, valid, "input %d", idx)
		}
	})

	t.Run("p2wsh", func(t *testing.T) {
		witnessScript := hexToBytes(arithScript)
		pkScript, err := txscript.PayToWitnessScriptHashScript(witnessScript)
		require.NoError(t, err)

		tx, fetcher := spendTx(1000, [][]byte{pkScript}, nil,
			[]wire.TxWitness{{{0x04}, witnessScript}})
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)

		tx.TxIn[0].Witness[0] = []byte{0x05}
		valid, err = VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("bare arithmetic", func(t *testing.T) {
		tx, fetcher := spendTx(1000, [][]byte{hexToBytes(arithScript)},
			[][]byte{{txscript.OP_4}}, nil)
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})
}

// TestVerifyInputFalse ensures scripts that run to a negative outcome are
// reported as false rather than as errors.
func TestVerifyInputFalse(t *testing.T) {
	t.Parallel()

	t.Run("tampered legacy output", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		tx.TxOut[1].Value++
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("tampered p2sh multisig output", func(t *testing.T) {
		tx, fetcher := p2shFixture()
		tx.TxOut[0].Value--
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("witness amount mismatch", func(t *testing.T) {
		tx, fetcher := witnessFixture(t)
		fetcher.AddPrevOut(tx.TxIn[1].PreviousOutPoint,
			wire.NewTxOut(witnessTxP2WPKHAmount-1,
				hexToBytes(witnessTxP2WPKHScript)))
		valid, err := VerifyInput(tx, 1, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)

		// The legacy input does not commit to the amount.
		valid, err = VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("wrong redeem script", func(t *testing.T) {
		pkScript, err := txscript.PayToScriptHashScript(
			hexToBytes(arithScript))
		require.NoError(t, err)
		sigScript, err := txscript.NewScriptBuilder().AddOp(txscript.OP_4).
			AddData(hexToBytes("55935887")).RawScript()
		require.NoError(t, err)

		tx, fetcher := spendTx(1000, [][]byte{pkScript},
			[][]byte{sigScript}, nil)
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)
	})
}

// TestVerifyInputErrors ensures inputs that cannot be evaluated return the
// expected rule errors with the underlying cause reachable.
func TestVerifyInputErrors(t *testing.T) {
	t.Parallel()

	p2wsh, err := txscript.PayToWitnessScriptHashScript(
		hexToBytes(arithScript))
	require.NoError(t, err)

	t.Run("index out of range", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		_, err := VerifyInput(tx, 1, fetcher, nil)
		requireRuleError(t, err, ErrBadTxInput)
		_, err = VerifyInput(tx, -1, fetcher, nil)
		requireRuleError(t, err, ErrBadTxInput)
	})

	t.Run("missing prevout", func(t *testing.T) {
		tx, _ := p2pkhFixture()
		_, err := VerifyInput(tx, 0, txscript.NewMultiPrevOutFetcher(nil),
			nil)
		requireRuleError(t, err, ErrMissingTxOut)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrPrevOutNotFound))
	})

	t.Run("coinbase", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		tx.TxIn[0].PreviousOutPoint = wire.OutPoint{Index: math.MaxUint32}
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrCoinbaseInput)
	})

	t.Run("malformed signature script", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		tx.TxIn[0].SignatureScript = []byte{txscript.OP_PUSHDATA1}
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrScriptMalformed)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrMalformedPush))
	})

	t.Run("witness with signature script", func(t *testing.T) {
		tx, fetcher := witnessFixture(t)
		tx.TxIn[1].SignatureScript = []byte{txscript.OP_1}
		_, err := VerifyInput(tx, 1, fetcher, nil)
		requireRuleError(t, err, ErrScriptMalformed)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrWitnessMalleated))
	})

	t.Run("empty witness", func(t *testing.T) {
		tx, fetcher := spendTx(1000, [][]byte{p2wsh}, nil, nil)
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrScriptMalformed)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrWitnessProgramEmpty))
	})

	t.Run("witness script mismatch", func(t *testing.T) {
		tx, fetcher := spendTx(1000, [][]byte{p2wsh}, nil,
			[]wire.TxWitness{{{0x04}, hexToBytes("55935887")}})
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrScriptMalformed)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrWitnessProgramMismatch))
	})

	t.Run("unknown opcode executed", func(t *testing.T) {
		tx, fetcher := spendTx(1000, [][]byte{{txscript.OP_1, 0xba}},
			nil, nil)
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrScriptValidation)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrReservedOpcode))
	})

	t.Run("empty stack", func(t *testing.T) {
		tx, fetcher := spendTx(1000,
			[][]byte{{txscript.OP_DUP}}, nil, nil)
		_, err := VerifyInput(tx, 0, fetcher, nil)
		requireRuleError(t, err, ErrScriptValidation)
		require.True(t, txscript.IsErrorCode(err,
			txscript.ErrEmptyStack))
	})
}

// TestVerifyInputSigCache ensures successful signature checks populate the
// signature cache and later runs still verify.
func TestVerifyInputSigCache(t *testing.T) {
	t.Parallel()

	tx, fetcher := witnessFixture(t)
	sigCache := txscript.NewSigCache(10)
	for i := 0; i < 2; i++ {
		valid, err := VerifyTx(tx, fetcher, sigCache)
		require.NoError(t, err)
		require.True(t, valid)
	}

	// A cached signature does not make a different digest pass.
	tx.TxOut[0].Value--
	valid, err := VerifyTx(tx, fetcher, sigCache)
	require.NoError(t, err)
	require.False(t, valid)
}

// TestVerifyTx ensures whole transactions verify and that the fee check is
// enforced.
func TestVerifyTx(t *testing.T) {
	t.Parallel()

	t.Run("valid transactions", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		valid, err := VerifyTx(tx, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)

		tx, fetcher = p2shFixture()
		valid, err = VerifyTx(tx, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)

		tx, fetcher = witnessFixture(t)
		valid, err = VerifyTx(tx, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("insufficient fee", func(t *testing.T) {
		// The legacy signature does not commit to the spent amount,
		// so only the fee check can reject this spend.
		tx, fetcher := p2pkhFixture()
		fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint,
			wire.NewTxOut(p2pkhOutputs-1, hexToBytes(p2pkhScript)))
		valid, err := VerifyInput(tx, 0, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)

		valid, err = VerifyTx(tx, fetcher, nil)
		requireRuleError(t, err, ErrInsufficientFee)
		require.False(t, valid)
	})

	t.Run("zero fee", func(t *testing.T) {
		tx, fetcher := p2pkhFixture()
		fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint,
			wire.NewTxOut(p2pkhOutputs, hexToBytes(p2pkhScript)))
		valid, err := VerifyTx(tx, fetcher, nil)
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("failing input", func(t *testing.T) {
		tx, fetcher := witnessFixture(t)
		// Sign the witness input with the signature of the legacy one.
		tx.TxIn[1].Witness[0] = append([]byte{},
			tx.TxIn[0].SignatureScript[1:]...)
		valid, err := VerifyTx(tx, fetcher, nil)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("no inputs", func(t *testing.T) {
		tx := wire.NewMsgTx(wire.TxVersion)
		_, err := VerifyTx(tx, txscript.NewMultiPrevOutFetcher(nil), nil)
		requireRuleError(t, err, ErrNoTxInputs)
	})
}

// TestCheckTransactionSanity ensures output values are range checked.
func TestCheckTransactionSanity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outputs []int64
		err     *ErrorCode
	}{
		{"single output", []int64{1000}, nil},
		{"no outputs", nil, nil},
		{"max output", []int64{btcutil.MaxSatoshi}, nil},
		{"negative output", []int64{-1}, errCode(ErrBadTxOutValue)},
		{"output above max", []int64{btcutil.MaxSatoshi + 1},
			errCode(ErrBadTxOutValue)},
		{"total above max", []int64{btcutil.MaxSatoshi, 1},
			errCode(ErrBadTxOutValue)},
	}

	for _, test := range tests {
		tx, _ := spendTx(1000, [][]byte{{txscript.OP_1}}, nil, nil)
		tx.TxOut = nil
		for _, value := range test.outputs {
			tx.AddTxOut(wire.NewTxOut(value, nil))
		}
		err := CheckTransactionSanity(tx)
		if test.err == nil {
			require.NoError(t, err, test.name)
			continue
		}
		requireRuleError(t, err, *test.err)
	}
}

func errCode(c ErrorCode) *ErrorCode {
	return &c
}
