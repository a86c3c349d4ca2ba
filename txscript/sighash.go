// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SigHashType represents hash type bits at the end of a signature.
type SigHashType uint32

// Hash type bits from the end of a signature.
const (
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	// sigHashMask defines the number of bits of the hash type which is used
	// to identify which outputs are signed.
	sigHashMask = 0x1f
)

// IsAnyOneCanPay returns whether the AnyOneCanPay bit is set.
func (t SigHashType) IsAnyOneCanPay() bool {
	return t&SigHashAnyOneCanPay != 0
}

// String returns the hash type in human-readable form.
func (t SigHashType) String() string {
	var base string
	switch t & sigHashMask {
	case SigHashAll:
		base = "ALL"
	case SigHashNone:
		base = "NONE"
	case SigHashSingle:
		base = "SINGLE"
	default:
		return fmt.Sprintf("SigHashType(0x%02x)", uint32(t))
	}
	if t.IsAnyOneCanPay() {
		return base + "|ANYONECANPAY"
	}
	return base
}

// parseSigHashType maps the trailing signature byte onto one of the six
// defined hash types.
func parseSigHashType(b byte) (SigHashType, error) {
	hashType := SigHashType(b)
	switch hashType {
	case SigHashAll, SigHashNone, SigHashSingle,
		SigHashAll | SigHashAnyOneCanPay,
		SigHashNone | SigHashAnyOneCanPay,
		SigHashSingle | SigHashAnyOneCanPay:

		return hashType, nil
	}
	str := fmt.Sprintf("invalid hash type 0x%02x", b)
	return 0, scriptError(ErrInvalidSigHashType, str)
}

// shallowCopyTx creates a shallow copy of the transaction for use when
// calculating the signature hash.  It is used over the Copy method on the
// transaction itself since that is a deep copy and therefore does more work and
// allocates much more space than needed.
func shallowCopyTx(tx *wire.MsgTx) wire.MsgTx {
	// As an additional memory optimization, use contiguous backing arrays
	// for the copied inputs and outputs and point the final slice of
	// pointers into the contiguous arrays.  This avoids a lot of small
	// allocations.
	txCopy := wire.MsgTx{
		Version:  tx.Version,
		TxIn:     make([]*wire.TxIn, len(tx.TxIn)),
		TxOut:    make([]*wire.TxOut, len(tx.TxOut)),
		LockTime: tx.LockTime,
	}
	txIns := make([]wire.TxIn, len(tx.TxIn))
	for i, oldTxIn := range tx.TxIn {
		txIns[i] = *oldTxIn
		txCopy.TxIn[i] = &txIns[i]
	}
	txOuts := make([]wire.TxOut, len(tx.TxOut))
	for i, oldTxOut := range tx.TxOut {
		txOuts[i] = *oldTxOut
		txCopy.TxOut[i] = &txOuts[i]
	}
	return txCopy
}

// CalcSignatureHash computes the legacy signature hash of input idx, which
// commits to script in place of the input's signature script.  Only
// SigHashAll is supported.
//
// Every other input has its signature script cleared, the transaction is
// serialized without witness data, and the hash type is appended as a 4-byte
// little endian value before double hashing.
func CalcSignatureHash(script []byte, hashType SigHashType, tx *wire.MsgTx,
	idx int) (chainhash.Hash, error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("transaction input index %d is out of range "+
			"for %d inputs", idx, len(tx.TxIn))
		return chainhash.Hash{}, scriptError(ErrInvalidIndex, str)
	}
	if hashType != SigHashAll {
		str := fmt.Sprintf("legacy signature hash type %v is not "+
			"supported", hashType)
		return chainhash.Hash{}, scriptError(ErrUnsupportedSigHash, str)
	}

	txCopy := shallowCopyTx(tx)
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[i].SignatureScript = script
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	var buf bytes.Buffer
	buf.Grow(txCopy.SerializeSizeStripped() + 4)
	if err := txCopy.SerializeNoWitness(&buf); err != nil {
		return chainhash.Hash{}, wrapError(ErrInternal,
			"unable to serialize transaction", err)
	}
	var bHashType [4]byte
	binary.LittleEndian.PutUint32(bHashType[:], uint32(hashType))
	buf.Write(bHashType[:])

	return chainhash.DoubleHashH(buf.Bytes()), nil
}

// CalcWitnessSigHash computes the sighash digest of a transaction's segwit
// input using the digest calculation algorithm defined in BIP0143.  The
// scriptCode is the raw script the signature commits to; it is written with a
// varint length prefix.  The precomputed sigHashes let every input of the
// transaction share the prevout, sequence and output hashes.
func CalcWitnessSigHash(scriptCode []byte, sigHashes *TxSigHashes,
	hashType SigHashType, tx *wire.MsgTx, idx int,
	amt int64) (chainhash.Hash, error) {

	// As a sanity check, ensure the passed input index for the transaction
	// is valid.
	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("transaction input index %d is out of range "+
			"for %d inputs", idx, len(tx.TxIn))
		return chainhash.Hash{}, scriptError(ErrInvalidIndex, str)
	}
	if sigHashes == nil {
		sigHashes = NewTxSigHashes(tx)
	}

	// We'll utilize this buffer throughout to incrementally calculate
	// the signature hash for this transaction.
	var sigHash bytes.Buffer
	sigHash.Grow(156 + wire.VarIntSerializeSize(uint64(len(scriptCode))) +
		len(scriptCode))

	// First write out, then encode the transaction's version number.
	var bVersion [4]byte
	binary.LittleEndian.PutUint32(bVersion[:], uint32(tx.Version))
	sigHash.Write(bVersion[:])

	// Next write out the possibly pre-calculated hashes for the sequence
	// numbers of all inputs, and the hashes of the previous outs for all
	// outputs.
	var zeroHash chainhash.Hash

	// If anyone can pay isn't active, then we can use the cached
	// hashPrevOuts, otherwise we just write zeroes for the prev outs.
	if !hashType.IsAnyOneCanPay() {
		sigHash.Write(sigHashes.HashPrevOuts[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	// The sequence hash is only committed to by plain SigHashAll.
	if hashType == SigHashAll {
		sigHash.Write(sigHashes.HashSequence[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	txIn := tx.TxIn[idx]

	// Next, write the outpoint being spent.
	sigHash.Write(txIn.PreviousOutPoint.Hash[:])
	var bIndex [4]byte
	binary.LittleEndian.PutUint32(bIndex[:], txIn.PreviousOutPoint.Index)
	sigHash.Write(bIndex[:])

	if err := wire.WriteVarBytes(&sigHash, 0, scriptCode); err != nil {
		return chainhash.Hash{}, wrapError(ErrInternal,
			"unable to write script code", err)
	}

	// Next, add the input amount, and sequence number of the input being
	// signed.
	var bAmount [8]byte
	binary.LittleEndian.PutUint64(bAmount[:], uint64(amt))
	sigHash.Write(bAmount[:])
	var bSequence [4]byte
	binary.LittleEndian.PutUint32(bSequence[:], txIn.Sequence)
	sigHash.Write(bSequence[:])

	// If the current signature mode isn't single, or none, then we can
	// re-use the pre-generated hashoutputs sighash fragment. Otherwise,
	// we'll serialize and add only the target output index to the signature
	// pre-image.
	switch {
	case hashType&sigHashMask != SigHashSingle &&
		hashType&sigHashMask != SigHashNone:

		sigHash.Write(sigHashes.HashOutputs[:])

	case hashType&sigHashMask == SigHashSingle && idx < len(tx.TxOut):
		var b bytes.Buffer
		if err := wire.WriteTxOut(&b, 0, 0, tx.TxOut[idx]); err != nil {
			return chainhash.Hash{}, wrapError(ErrInternal,
				"unable to write output", err)
		}
		sigHash.Write(chainhash.DoubleHashB(b.Bytes()))

	default:
		sigHash.Write(zeroHash[:])
	}

	// Finally, write out the transaction's locktime, and the sig hash
	// type.
	var bLockTime [4]byte
	binary.LittleEndian.PutUint32(bLockTime[:], tx.LockTime)
	sigHash.Write(bLockTime[:])
	var bHashType [4]byte
	binary.LittleEndian.PutUint32(bHashType[:], uint32(hashType))
	sigHash.Write(bHashType[:])

	return chainhash.DoubleHashH(sigHash.Bytes()), nil
}

// sigHasherKind selects the digest algorithm of a SigHasher.
type sigHasherKind uint8

const (
	legacySigHasher sigHasherKind = iota
	witnessV0SigHasher
	fixedSigHasher
)

// SigHasher computes the digests signatures are checked against.  It is a
// closed set of variants chosen when the hasher is created: the legacy
// algorithm, the BIP0143 witness v0 algorithm, and a fixed digest for
// evaluating scripts against a known message.
//
// A SigHasher owns a cache of the previous outputs it resolved, so one
// verification never fetches the same output twice.  It must not be shared
// between concurrent verifications.
type SigHasher struct {
	kind     sigHasherKind
	tx       *wire.MsgTx
	prevOuts *prevOutCache

	// scriptCode and sigHashes are only set for witness v0 hashers.
	scriptCode []byte
	sigHashes  *TxSigHashes

	fixed chainhash.Hash
}

// NewLegacySigHasher returns a hasher implementing the legacy digest of tx.
// The locking script of the spent output is resolved through fetcher unless a
// redeem script is supplied with the request.
func NewLegacySigHasher(tx *wire.MsgTx, fetcher PrevOutputFetcher) *SigHasher {
	return &SigHasher{
		kind:     legacySigHasher,
		tx:       tx,
		prevOuts: newPrevOutCache(fetcher),
	}
}

// NewWitnessV0SigHasher returns a hasher implementing the BIP0143 digest of
// tx that commits to scriptCode.  The spent amount is resolved through
// fetcher.  sigHashes may be nil, in which case they are computed from tx.
func NewWitnessV0SigHasher(tx *wire.MsgTx, fetcher PrevOutputFetcher,
	scriptCode []byte, sigHashes *TxSigHashes) *SigHasher {

	if sigHashes == nil {
		sigHashes = NewTxSigHashes(tx)
	}
	return &SigHasher{
		kind:       witnessV0SigHasher,
		tx:         tx,
		prevOuts:   newPrevOutCache(fetcher),
		scriptCode: scriptCode,
		sigHashes:  sigHashes,
	}
}

// NewFixedSigHasher returns a hasher that answers every request with hash.
func NewFixedSigHasher(hash chainhash.Hash) *SigHasher {
	return &SigHasher{kind: fixedSigHasher, fixed: hash}
}

// IsWitness returns whether the hasher implements the witness v0 digest.
func (h *SigHasher) IsWitness() bool {
	return h.kind == witnessV0SigHasher
}

// Digest returns the digest a signature with the given hash type must commit
// to when spending input idx.
//
// redeemScript is the script revealed by a pay-to-script-hash spend, nil
// otherwise; the legacy variant commits to it in place of the spent output's
// locking script.  codeSeps is the number of code separators executed so far;
// the witness variant drops the script code up to and including the last of
// them.
func (h *SigHasher) Digest(idx int, hashType SigHashType, redeemScript []byte,
	codeSeps int) (chainhash.Hash, error) {

	switch h.kind {
	case fixedSigHasher:
		return h.fixed, nil

	case legacySigHasher:
		if idx < 0 || idx >= len(h.tx.TxIn) {
			str := fmt.Sprintf("transaction input index %d is out of "+
				"range for %d inputs", idx, len(h.tx.TxIn))
			return chainhash.Hash{}, scriptError(ErrInvalidIndex, str)
		}
		script := redeemScript
		if script == nil {
			prevOut, err := h.prevOuts.fetch(h.tx.TxIn[idx].PreviousOutPoint)
			if err != nil {
				return chainhash.Hash{}, err
			}
			script = prevOut.PkScript
		}
		return CalcSignatureHash(script, hashType, h.tx, idx)

	case witnessV0SigHasher:
		if idx < 0 || idx >= len(h.tx.TxIn) {
			str := fmt.Sprintf("transaction input index %d is out of "+
				"range for %d inputs", idx, len(h.tx.TxIn))
			return chainhash.Hash{}, scriptError(ErrInvalidIndex, str)
		}
		prevOut, err := h.prevOuts.fetch(h.tx.TxIn[idx].PreviousOutPoint)
		if err != nil {
			return chainhash.Hash{}, err
		}
		offset, err := codeSeparatorOffset(h.scriptCode, codeSeps)
		if err != nil {
			return chainhash.Hash{}, err
		}
		return CalcWitnessSigHash(h.scriptCode[offset:], h.sigHashes,
			hashType, h.tx, idx, prevOut.Value)
	}

	str := fmt.Sprintf("unknown signature hasher kind %d", h.kind)
	return chainhash.Hash{}, scriptError(ErrInternal, str)
}
