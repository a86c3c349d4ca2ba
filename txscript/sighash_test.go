// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const (
	// witnessTxHex is the unsigned transaction of the native P2WPKH example
	// in BIP0143.  Input 0 spends a P2PK output and input 1 a P2WPKH one.
	witnessTxHex = "0100000002fff7f7881a8099afa6940d42d1e7f6362bec38171ea3edf433541db4e4ad969f0000000000eeffffffef51e1b804cc89d182d279655c3aa89e815b1b309fe287d9b2b55d57b90ec68a0100000000ffffffff02202cb206000000001976a9148280b37df378db99f66f85c95a783a76ac7a6d5988ac9093510d000000001976a9143bde42dbee7e4dbe6a21b2d50ce2f0167faa815988ac11000000"

	witnessTxP2PKScript   = "2103c9f4836b9a4f77fc0d81f7bcb01b7f1b35916864b9476c241ce9fc198bd25432ac"
	witnessTxP2PKAmount   = 625000000
	witnessTxP2PKSig      = "30450221008b9d1dc26ba6a9cb62127b02742fa9d754cd3bebf337f7a55d114c8e5cdd30be022040529b194ba3f9281a99f2b1c0a19c0489bc22ede944ccf4ecbab4cc618ef3ed01"
	witnessTxP2PKDigest   = "63cec688ee06a91e913875356dd4dea2f8e0f2a2659885372da2a37e32c7532e"
	witnessTxP2WPKHScript = "00141d0f172a0ecb48aee1be1f2687d2963ae33f71a1"
	witnessTxP2WPKHAmount = 600000000
	witnessTxP2WPKHSig    = "304402203609e17b84f6a7d30c80bfa610b5b4542f32a8a0d5447a12fb1366d7f01cc44a0220573a954c4518331561406f90300e8f3358f51928d43c212a8caed02de67eebee01"
	witnessTxP2WPKHPubKey = "025476c2e83188368da1ff3e292e7acafcdb3566bb0ad253f62fc70f07aeee6357"
	witnessTxP2WPKHDigest = "c37af31116d1b27caf68aae9e3ac82f1477929014d5b917657d0eb49478cb670"

	// p2pkhTxHex spends a single P2PKH output.
	p2pkhTxHex    = "0100000001813f79011acb80925dfe69b3def355fe914bd1d96a3f5f71bf8303c6a989c7d1000000006b483045022100ed81ff192e75a3fd2304004dcadb746fa5e24c5031ccfcf21320b0277457c98f02207a986d955c6e0cb35d446a89d3f56100f4d7f67801c31967743a9c8e10615bed01210349fc4e631e3624a545de3f89f5d8684c7b8138bd94bdd531d2e213bf016b278afeffffff02a135ef01000000001976a914bc3b654dca7e56b04dca18f2566cdaf02e8d9ada88ac99c39800000000001976a9141c4bc762dd5423e332166702cb75f40df79fea1288ac19430600"
	p2pkhScript   = "76a914a802fc56c704ce87c42d7c92eb75e7896bdc41ae88ac"
	p2pkhAmount   = 42505594
	p2pkhTxDigest = "27e0c5994dec7824e56dec6b2fcb342eb7cdb0d0957c2fce9882f715e85d81a6"

	// p2shTxHex spends a 2-of-2 multisig P2SH output.
	p2shTxHex          = "0100000001868278ed6ddfb6c1ed3ad5f8181eb0c7a385aa0836f01d5e4789e6bd304d87221a000000db00483045022100dc92655fe37036f47756db8102e0d7d5e28b3beb83a8fef4f5dc0559bddfb94e02205a36d4e4e6c7fcd16658c50783e00c341609977aed3ad00937bf4ee942a8993701483045022100da6bee3c93766232079a01639d07fa869598749729ae323eab8eef53577d611b02207bef15429dcadce2121ea07f233115c6f09034c0be68db99980b9a6c5e75402201475221022626e955ea6ea6d98850c994f9107b036b1334f18ca8830bfff1295d21cfdb702103b287eaf122eea69030a0e9feed096bed8045c8b98bec453e1ffac7fbdbd4bb7152aeffffffff04d3b11400000000001976a914904a49878c0adfc3aa05de7afad2cc15f483a56a88ac7f400900000000001976a914418327e3f3dda4cf5b9089325a4b95abdfa0334088ac722c0c00000000001976a914ba35042cfe9fc66fd35ac2224eebdafd1028ad2788acdc4ace020000000017a91474d691da1574e6b3c192ecfb52cc8984ee7b6c568700000000"
	p2shRedeemScript   = "5221022626e955ea6ea6d98850c994f9107b036b1334f18ca8830bfff1295d21cfdb702103b287eaf122eea69030a0e9feed096bed8045c8b98bec453e1ffac7fbdbd4bb7152ae"
	p2shScript         = "a91474d691da1574e6b3c192ecfb52cc8984ee7b6c5687"
	p2shAmount         = 100000000
	p2shTxDigest       = "e71bfa115715d6fd33796948126f40a8cdd39f187e4afb03896795189fe1423c"
)

// mustDeserializeTx decodes a hard-coded transaction and panics on failure.
func mustDeserializeTx(txHex string) *wire.MsgTx {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(hexToBytes(txHex))); err != nil {
		panic("invalid transaction in source file: " + err.Error())
	}
	return &tx
}

// countingFetcher wraps a fetcher and records how often each outpoint is
// requested.
type countingFetcher struct {
	PrevOutputFetcher
	calls map[wire.OutPoint]int
}

func (c *countingFetcher) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	c.calls[op]++
	return c.PrevOutputFetcher.FetchPrevOutput(op)
}

// TestCalcSignatureHash ensures the legacy digest matches known transactions.
func TestCalcSignatureHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		txHex  string
		idx    int
		script string
		digest string
	}{
		{"p2pkh", p2pkhTxHex, 0, p2pkhScript, p2pkhTxDigest},
		{"p2sh redeem script", p2shTxHex, 0, p2shRedeemScript, p2shTxDigest},
		{"p2pk beside a witness input", witnessTxHex, 0,
			witnessTxP2PKScript, witnessTxP2PKDigest},
	}

	for _, test := range tests {
		tx := mustDeserializeTx(test.txHex)
		hash, err := CalcSignatureHash(hexToBytes(test.script),
			SigHashAll, tx, test.idx)
		require.NoError(t, err, test.name)
		require.Equal(t, hexToBytes(test.digest), hash[:], test.name)
	}
}

// TestCalcSignatureHashErrors ensures bad indices and unsupported hash types
// are rejected by the legacy digest.
func TestCalcSignatureHashErrors(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(p2pkhTxHex)
	script := hexToBytes(p2pkhScript)

	_, err := CalcSignatureHash(script, SigHashAll, tx, 1)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))

	_, err = CalcSignatureHash(script, SigHashAll, tx, -1)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))

	for _, hashType := range []SigHashType{SigHashNone, SigHashSingle,
		SigHashAll | SigHashAnyOneCanPay} {

		_, err = CalcSignatureHash(script, hashType, tx, 0)
		require.True(t, IsErrorCode(err, ErrUnsupportedSigHash),
			"hash type %v", hashType)
	}
}

// TestCalcSignatureHashLeavesTxUntouched ensures computing the legacy digest
// does not modify the signature scripts of the transaction.
func TestCalcSignatureHashLeavesTxUntouched(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(p2shTxHex)
	before := tx.TxIn[0].SignatureScript

	_, err := CalcSignatureHash(hexToBytes(p2shRedeemScript), SigHashAll,
		tx, 0)
	require.NoError(t, err)
	require.Equal(t, before, tx.TxIn[0].SignatureScript)
}

// TestCalcWitnessSigHash ensures the BIP0143 digest matches the native P2WPKH
// example.
func TestCalcWitnessSigHash(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(witnessTxHex)
	_, program, ok := ExtractWitnessProgram(hexToBytes(witnessTxP2WPKHScript))
	require.True(t, ok)
	scriptCode, err := PayToPubKeyHashScript(program)
	require.NoError(t, err)

	hash, err := CalcWitnessSigHash(scriptCode, nil, SigHashAll, tx, 1,
		witnessTxP2WPKHAmount)
	require.NoError(t, err)
	require.Equal(t, hexToBytes(witnessTxP2WPKHDigest), hash[:])

	// Precomputed hashes must produce the same digest.
	hash2, err := CalcWitnessSigHash(scriptCode, NewTxSigHashes(tx),
		SigHashAll, tx, 1, witnessTxP2WPKHAmount)
	require.NoError(t, err)
	require.Equal(t, hash, hash2)

	_, err = CalcWitnessSigHash(scriptCode, nil, SigHashAll, tx, 2,
		witnessTxP2WPKHAmount)
	require.True(t, IsErrorCode(err, ErrInvalidIndex))
}

// TestCalcWitnessSigHashCommitments ensures each hash type commits to the
// parts of the transaction it is meant to and nothing else.
func TestCalcWitnessSigHashCommitments(t *testing.T) {
	t.Parallel()

	scriptCode := hexToBytes(p2pkhScript)
	digest := func(tx *wire.MsgTx, hashType SigHashType, idx int) chainhash.Hash {
		hash, err := CalcWitnessSigHash(scriptCode, nil, hashType, tx,
			idx, witnessTxP2WPKHAmount)
		require.NoError(t, err)
		return hash
	}

	base := mustDeserializeTx(witnessTxHex)

	// Changing an output value.
	outputChanged := base.Copy()
	outputChanged.TxOut[1].Value++

	// Changing the sequence of the other input.
	sequenceChanged := base.Copy()
	sequenceChanged.TxIn[0].Sequence--

	// Changing the outpoint of the other input.
	prevOutChanged := base.Copy()
	prevOutChanged.TxIn[0].PreviousOutPoint.Index++

	tests := []struct {
		hashType         SigHashType
		idx              int
		commitsOutputs   bool
		commitsSequences bool
		commitsPrevOuts  bool
	}{
		{SigHashAll, 1, true, true, true},
		{SigHashNone, 1, false, false, true},
		{SigHashSingle, 0, false, false, true},
		{SigHashSingle, 1, true, false, true},
		{SigHashAll | SigHashAnyOneCanPay, 1, true, false, false},
		{SigHashNone | SigHashAnyOneCanPay, 1, false, false, false},
	}

	for _, test := range tests {
		want := digest(base, test.hashType, test.idx)

		got := digest(outputChanged, test.hashType, test.idx)
		require.Equal(t, !test.commitsOutputs, want == got,
			"%v outputs", test.hashType)

		// Only another input's sequence is changed, so the checked
		// input must not be input 0 for this comparison.
		if test.idx == 1 {
			got = digest(sequenceChanged, test.hashType, test.idx)
			require.Equal(t, !test.commitsSequences, want == got,
				"%v sequences", test.hashType)

			got = digest(prevOutChanged, test.hashType, test.idx)
			require.Equal(t, !test.commitsPrevOuts, want == got,
				"%v prevouts", test.hashType)
		}
	}
}

// TestCalcWitnessSigHashSingleNoOutput ensures SigHashSingle with no output at
// the input index commits to a zero output hash rather than failing.
func TestCalcWitnessSigHashSingleNoOutput(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(witnessTxHex)
	tx.TxOut = tx.TxOut[:1]
	scriptCode := hexToBytes(p2pkhScript)

	hash, err := CalcWitnessSigHash(scriptCode, nil, SigHashSingle, tx, 1,
		witnessTxP2WPKHAmount)
	require.NoError(t, err)

	// With no output at index 1, the remaining output is not committed to.
	tx.TxOut[0].Value++
	hash2, err := CalcWitnessSigHash(scriptCode, nil, SigHashSingle, tx, 1,
		witnessTxP2WPKHAmount)
	require.NoError(t, err)
	require.Equal(t, hash, hash2)
}

// TestSigHashTypeParsing ensures only the six defined hash type bytes parse.
func TestSigHashTypeParsing(t *testing.T) {
	t.Parallel()

	valid := map[byte]string{
		0x01: "ALL",
		0x02: "NONE",
		0x03: "SINGLE",
		0x81: "ALL|ANYONECANPAY",
		0x82: "NONE|ANYONECANPAY",
		0x83: "SINGLE|ANYONECANPAY",
	}

	for i := 0; i < 256; i++ {
		hashType, err := parseSigHashType(byte(i))
		name, ok := valid[byte(i)]
		if !ok {
			require.Truef(t, IsErrorCode(err, ErrInvalidSigHashType),
				"byte 0x%02x", i)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, name, hashType.String())
		require.Equal(t, i&0x80 != 0, hashType.IsAnyOneCanPay())
	}

	require.Equal(t, "SigHashType(0x00)", SigHashType(0).String())
}

// TestSigHasherDigest ensures each hasher variant resolves the right script
// and amount for the digest it implements.
func TestSigHasherDigest(t *testing.T) {
	t.Parallel()

	t.Run("legacy from prevout", func(t *testing.T) {
		tx := mustDeserializeTx(p2pkhTxHex)
		fetcher := NewCannedPrevOutputFetcher(hexToBytes(p2pkhScript),
			p2pkhAmount)
		hasher := NewLegacySigHasher(tx, fetcher)
		require.False(t, hasher.IsWitness())

		hash, err := hasher.Digest(0, SigHashAll, nil, 0)
		require.NoError(t, err)
		require.Equal(t, hexToBytes(p2pkhTxDigest), hash[:])

		_, err = hasher.Digest(0, SigHashNone, nil, 0)
		require.True(t, IsErrorCode(err, ErrUnsupportedSigHash))

		_, err = hasher.Digest(3, SigHashAll, nil, 0)
		require.True(t, IsErrorCode(err, ErrInvalidIndex))
	})

	t.Run("legacy with redeem script", func(t *testing.T) {
		tx := mustDeserializeTx(p2shTxHex)
		hasher := NewLegacySigHasher(tx, nil)

		hash, err := hasher.Digest(0, SigHashAll,
			hexToBytes(p2shRedeemScript), 0)
		require.NoError(t, err)
		require.Equal(t, hexToBytes(p2shTxDigest), hash[:])

		// Without a redeem script the prevout must be resolved.
		_, err = hasher.Digest(0, SigHashAll, nil, 0)
		require.True(t, IsErrorCode(err, ErrPrevOutNotFound))
	})

	t.Run("witness v0", func(t *testing.T) {
		tx := mustDeserializeTx(witnessTxHex)
		fetcher := NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{
			tx.TxIn[1].PreviousOutPoint: wire.NewTxOut(
				witnessTxP2WPKHAmount,
				hexToBytes(witnessTxP2WPKHScript)),
		})
		_, program, _ := ExtractWitnessProgram(
			hexToBytes(witnessTxP2WPKHScript))
		scriptCode, err := PayToPubKeyHashScript(program)
		require.NoError(t, err)

		hasher := NewWitnessV0SigHasher(tx, fetcher, scriptCode, nil)
		require.True(t, hasher.IsWitness())

		hash, err := hasher.Digest(1, SigHashAll, nil, 0)
		require.NoError(t, err)
		require.Equal(t, hexToBytes(witnessTxP2WPKHDigest), hash[:])

		// Input 0 is not known to the fetcher.
		_, err = hasher.Digest(0, SigHashAll, nil, 0)
		require.True(t, IsErrorCode(err, ErrPrevOutNotFound))

		// More separators than the script code holds.
		_, err = hasher.Digest(1, SigHashAll, nil, 1)
		require.True(t, IsErrorCode(err, ErrInternal))
	})

	t.Run("fixed", func(t *testing.T) {
		want := chainhash.DoubleHashH([]byte("message"))
		hasher := NewFixedSigHasher(want)
		for _, hashType := range []SigHashType{SigHashAll, SigHashNone} {
			hash, err := hasher.Digest(7, hashType, nil, 3)
			require.NoError(t, err)
			require.Equal(t, want, hash)
		}
	})
}

// TestSigHasherFetchesOnce ensures a hasher asks its fetcher for a previous
// output once no matter how many digests need it.
func TestSigHasherFetchesOnce(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(p2pkhTxHex)
	fetcher := &countingFetcher{
		PrevOutputFetcher: NewCannedPrevOutputFetcher(
			hexToBytes(p2pkhScript), p2pkhAmount),
		calls: make(map[wire.OutPoint]int),
	}
	hasher := NewLegacySigHasher(tx, fetcher)

	for i := 0; i < 3; i++ {
		_, err := hasher.Digest(0, SigHashAll, nil, 0)
		require.NoError(t, err)
	}
	require.Equal(t, 1, fetcher.calls[tx.TxIn[0].PreviousOutPoint])
}

// TestSigHasherFetchErrors ensures fetcher failures surface as missing
// previous outputs while keeping the cause.
func TestSigHasherFetchErrors(t *testing.T) {
	t.Parallel()

	tx := mustDeserializeTx(p2pkhTxHex)
	cause := errors.New("backend offline")
	hasher := NewLegacySigHasher(tx, failingFetcher{cause})

	_, err := hasher.Digest(0, SigHashAll, nil, 0)
	require.True(t, IsErrorCode(err, ErrPrevOutNotFound))
	require.ErrorIs(t, err, cause)

	hasher = NewLegacySigHasher(tx, failingFetcher{})
	_, err = hasher.Digest(0, SigHashAll, nil, 0)
	require.True(t, IsErrorCode(err, ErrPrevOutNotFound))
}

// failingFetcher fails every lookup with err, or reports a nil output when err
// is nil.
type failingFetcher struct {
	err error
}

func (f failingFetcher) FetchPrevOutput(wire.OutPoint) (*wire.TxOut, error) {
	return nil, f.err
}
