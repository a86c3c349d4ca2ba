// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
)

// TxSource fetches whole transactions by hash from a remote service.
type TxSource interface {
	// FetchTx returns the transaction with the passed hash.  The returned
	// error wraps ErrNotFound when the source does not know it.
	FetchTx(ctx context.Context, txHash *chainhash.Hash) (*wire.MsgTx, error)
}

// ContextFetcher is a txscript.PrevOutputFetcher whose lookups can also be
// bounded by a context.
type ContextFetcher interface {
	txscript.PrevOutputFetcher

	FetchPrevOutputContext(ctx context.Context, op wire.OutPoint) (*wire.TxOut, error)
}

// txCache remembers the transactions a remote fetcher has downloaded, so
// every output of a transaction costs one round trip.
type txCache struct {
	mtx sync.RWMutex
	txs map[chainhash.Hash]*wire.MsgTx
}

func newTxCache() *txCache {
	return &txCache{txs: make(map[chainhash.Hash]*wire.MsgTx)}
}

func (c *txCache) get(txHash *chainhash.Hash) (*wire.MsgTx, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	tx, ok := c.txs[*txHash]
	return tx, ok
}

func (c *txCache) add(txHash *chainhash.Hash, tx *wire.MsgTx) {
	c.mtx.Lock()
	c.txs[*txHash] = tx
	c.mtx.Unlock()
}

// cachedFetchTx returns the transaction with the passed hash from cache, or
// from src after checking the transaction it returned really hashes to it.
func cachedFetchTx(ctx context.Context, src TxSource, cache *txCache,
	txHash *chainhash.Hash) (*wire.MsgTx, error) {

	if tx, ok := cache.get(txHash); ok {
		return tx, nil
	}

	tx, err := src.FetchTx(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if gotHash := tx.TxHash(); !gotHash.IsEqual(txHash) {
		return nil, fmt.Errorf("requested transaction %v but received %v",
			txHash, gotHash)
	}

	cache.add(txHash, tx)
	return tx, nil
}

// selectOutput returns output op.Index of tx, which must be the transaction
// op.Hash refers to.
func selectOutput(tx *wire.MsgTx, op wire.OutPoint) (*wire.TxOut, error) {
	if op.Index >= uint32(len(tx.TxOut)) {
		return nil, fmt.Errorf("transaction %v has %d outputs, no "+
			"output %d: %w", op.Hash, len(tx.TxOut), op.Index,
			ErrNotFound)
	}
	return tx.TxOut[op.Index], nil
}
