// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// calcHashPrevOuts calculates a double hash of all the previous outputs
// (txid:index) referenced within the passed transaction.  This calculated hash
// can be re-used when validating all inputs spending witness programs with a
// signature hash type that does not have AnyOneCanPay set.
func calcHashPrevOuts(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, in := range tx.TxIn {
		// First write out the 32-byte transaction ID one of whose
		// outputs are being referenced by this input.
		b.Write(in.PreviousOutPoint.Hash[:])

		// Next, we'll encode the index of the referenced output as a
		// little endian integer.
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], in.PreviousOutPoint.Index)
		b.Write(buf[:])
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// calcHashSequence computes an aggregated double hash of each of the sequence
// numbers within the inputs of the passed transaction.
func calcHashSequence(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, in := range tx.TxIn {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], in.Sequence)
		b.Write(buf[:])
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// calcHashOutputs computes a double hash digest of all outputs created by the
// transaction encoded using the wire format.
func calcHashOutputs(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, out := range tx.TxOut {
		wire.WriteTxOut(&b, 0, 0, out)
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// PrevOutputFetcher is an interface used to supply the signature hashers with
// the previous outputs spent by a transaction.  Implementations may block on
// disk or network access.
type PrevOutputFetcher interface {
	// FetchPrevOutput attempts to fetch the previous output referenced by
	// the passed outpoint.  An error is returned if the output cannot be
	// resolved.
	FetchPrevOutput(wire.OutPoint) (*wire.TxOut, error)
}

// CannedPrevOutputFetcher is an implementation of PrevOutputFetcher that only
// is able to return information for a single previous output.
type CannedPrevOutputFetcher struct {
	pkScript []byte
	amt      int64
}

// NewCannedPrevOutputFetcher returns an instance of a CannedPrevOutputFetcher
// that can only return the TxOut defined by the passed script and amount.
func NewCannedPrevOutputFetcher(script []byte, amt int64) *CannedPrevOutputFetcher {
	return &CannedPrevOutputFetcher{
		pkScript: script,
		amt:      amt,
	}
}

// FetchPrevOutput returns the canned output regardless of the outpoint.
//
// NOTE: This is a part of the PrevOutputFetcher interface.
func (c *CannedPrevOutputFetcher) FetchPrevOutput(wire.OutPoint) (*wire.TxOut, error) {
	return &wire.TxOut{
		PkScript: c.pkScript,
		Value:    c.amt,
	}, nil
}

// A compile-time assertion to ensure that CannedPrevOutputFetcher matches the
// PrevOutputFetcher interface.
var _ PrevOutputFetcher = (*CannedPrevOutputFetcher)(nil)

// MultiPrevOutFetcher is a custom implementation of the PrevOutputFetcher
// backed by a key-value map of prevouts to outputs.  It is safe for
// concurrent reads once populated.
type MultiPrevOutFetcher struct {
	prevOuts map[wire.OutPoint]*wire.TxOut
}

// NewMultiPrevOutFetcher returns an instance of a PrevOutputFetcher that's
// backed by an optional map which is used as an input source.
func NewMultiPrevOutFetcher(prevOuts map[wire.OutPoint]*wire.TxOut) *MultiPrevOutFetcher {
	if prevOuts == nil {
		prevOuts = make(map[wire.OutPoint]*wire.TxOut)
	}

	return &MultiPrevOutFetcher{
		prevOuts: prevOuts,
	}
}

// FetchPrevOutput attempts to fetch the previous output referenced by the
// passed outpoint.
//
// NOTE: This is a part of the PrevOutputFetcher interface.
func (m *MultiPrevOutFetcher) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	txOut, ok := m.prevOuts[op]
	if !ok {
		str := fmt.Sprintf("previous output %v is not known", op)
		return nil, scriptError(ErrPrevOutNotFound, str)
	}
	return txOut, nil
}

// AddPrevOut adds a new prev out, tx out pair to the backing map.
func (m *MultiPrevOutFetcher) AddPrevOut(op wire.OutPoint, txOut *wire.TxOut) {
	m.prevOuts[op] = txOut
}

// Merge merges two instances of a MultiPrevOutFetcher into a single source.
func (m *MultiPrevOutFetcher) Merge(other *MultiPrevOutFetcher) {
	for k, v := range other.prevOuts {
		m.prevOuts[k] = v
	}
}

// Len returns the number of outputs held by the fetcher.
func (m *MultiPrevOutFetcher) Len() int {
	return len(m.prevOuts)
}

// A compile-time assertion to ensure that MultiPrevOutFetcher matches the
// PrevOutputFetcher interface.
var _ PrevOutputFetcher = (*MultiPrevOutFetcher)(nil)

// prevOutCache remembers the outputs resolved through a fetcher so one
// verification sees a single consistent view of every prevout and never asks
// the fetcher for the same outpoint twice.  It is owned by a single signature
// hasher and is not safe for concurrent use.
type prevOutCache struct {
	fetcher PrevOutputFetcher
	outs    map[wire.OutPoint]*wire.TxOut
}

// newPrevOutCache returns an empty cache in front of the fetcher.
func newPrevOutCache(fetcher PrevOutputFetcher) *prevOutCache {
	return &prevOutCache{
		fetcher: fetcher,
		outs:    make(map[wire.OutPoint]*wire.TxOut),
	}
}

// fetch returns the output referenced by op.  Lookup failures are reported as
// ErrPrevOutNotFound with the fetcher's error as the cause.
func (c *prevOutCache) fetch(op wire.OutPoint) (*wire.TxOut, error) {
	if txOut, ok := c.outs[op]; ok {
		return txOut, nil
	}
	if c.fetcher == nil {
		str := fmt.Sprintf("no previous output source to resolve %v", op)
		return nil, scriptError(ErrPrevOutNotFound, str)
	}

	txOut, err := c.fetcher.FetchPrevOutput(op)
	if err != nil {
		if IsErrorCode(err, ErrPrevOutNotFound) {
			return nil, err
		}
		str := fmt.Sprintf("unable to fetch previous output %v", op)
		return nil, wrapError(ErrPrevOutNotFound, str, err)
	}
	if txOut == nil {
		str := fmt.Sprintf("previous output %v does not exist", op)
		return nil, scriptError(ErrPrevOutNotFound, str)
	}
	c.outs[op] = txOut
	return txOut, nil
}

// TxSigHashes houses the partial set of sighashes introduced within BIP0143.
// This partial set of sighashes may be re-used within each input across a
// transaction when validating all inputs.  As a result, validation complexity
// for SigHashAll can be reduced by a polynomial factor.
type TxSigHashes struct {
	HashPrevOuts chainhash.Hash
	HashSequence chainhash.Hash
	HashOutputs  chainhash.Hash
}

// NewTxSigHashes computes, and returns the cached sighashes of the given
// transaction.
func NewTxSigHashes(tx *wire.MsgTx) *TxSigHashes {
	return &TxSigHashes{
		HashPrevOuts: calcHashPrevOuts(tx),
		HashSequence: calcHashSequence(tx),
		HashOutputs:  calcHashOutputs(tx),
	}
}

// HashCache houses a set of partial sighashes keyed by txid.  Using this
// threadsafe shared cache, multiple goroutines can safely re-use the
// pre-computed partial sighashes while validating the inputs of many
// transactions.
type HashCache struct {
	sigHashes map[chainhash.Hash]*TxSigHashes

	sync.RWMutex
}

// NewHashCache returns a new instance of the HashCache given a maximum number
// of entries which may exist within it at anytime.
func NewHashCache(maxSize uint) *HashCache {
	return &HashCache{
		sigHashes: make(map[chainhash.Hash]*TxSigHashes, maxSize),
	}
}

// AddSigHashes computes, then adds the partial sighashes for the passed
// transaction.
func (h *HashCache) AddSigHashes(tx *wire.MsgTx) *TxSigHashes {
	sigHashes := NewTxSigHashes(tx)
	h.Lock()
	h.sigHashes[tx.TxHash()] = sigHashes
	h.Unlock()
	return sigHashes
}

// ContainsHashes returns true if the partial sighashes for the passed
// transaction currently exist within the HashCache, and false otherwise.
func (h *HashCache) ContainsHashes(txid *chainhash.Hash) bool {
	h.RLock()
	_, found := h.sigHashes[*txid]
	h.RUnlock()

	return found
}

// GetSigHashes possibly returns the previously cached partial sighashes for
// the passed transaction. This function also returns an additional boolean
// value indicating if the sighashes for the passed transaction were found to
// be present within the HashCache.
func (h *HashCache) GetSigHashes(txid *chainhash.Hash) (*TxSigHashes, bool) {
	h.RLock()
	item, found := h.sigHashes[*txid]
	h.RUnlock()

	return item, found
}

// PurgeSigHashes removes all partial sighashes from the HashCache belonging to
// the passed transaction.
func (h *HashCache) PurgeSigHashes(txid *chainhash.Hash) {
	h.Lock()
	delete(h.sigHashes, *txid)
	h.Unlock()
}
