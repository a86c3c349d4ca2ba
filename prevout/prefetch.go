// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
	"golang.org/x/sync/errgroup"
)

// MaxPrefetchWorkers is the number of outputs Prefetch resolves at once.
const MaxPrefetchWorkers = 8

// Prefetch resolves every output spent by tx through fetcher, in parallel,
// and returns them in a fetcher that serves them from memory.  Verifying tx
// against the result performs no further I/O.
//
// Outputs fetcher does not know are left out, so verification reports them
// as missing, as are the null outpoints of coinbase inputs.  Any other
// failure aborts the prefetch.
func Prefetch(ctx context.Context, fetcher txscript.PrevOutputFetcher,
	tx *wire.MsgTx) (*txscript.MultiPrevOutFetcher, error) {

	var (
		mtx      sync.Mutex
		prevOuts = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
		seen     = make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxPrefetchWorkers)
	for idx, txIn := range tx.TxIn {
		idx, op := idx, txIn.PreviousOutPoint
		if isNullOutPoint(&op) {
			continue
		}
		if _, ok := seen[op]; ok {
			continue
		}
		seen[op] = struct{}{}

		g.Go(func() error {
			txOut, err := fetchWithContext(gctx, fetcher, op)
			switch {
			case isNotFound(err):
				log.Debugf("Output %v spent by input %d is unknown",
					op, idx)
				return nil
			case err != nil:
				return fmt.Errorf("unable to fetch output %v spent "+
					"by input %d: %w", op, idx, err)
			}

			mtx.Lock()
			prevOuts[op] = txOut
			mtx.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debugf("Prefetched %d of %d outputs spent by %v", len(prevOuts),
		len(seen), tx.TxHash())
	return txscript.NewMultiPrevOutFetcher(prevOuts), nil
}

// fetchWithContext uses the context aware lookup of fetcher when it has one.
func fetchWithContext(ctx context.Context, fetcher txscript.PrevOutputFetcher,
	op wire.OutPoint) (*wire.TxOut, error) {

	if cf, ok := fetcher.(ContextFetcher); ok {
		return cf.FetchPrevOutputContext(ctx, op)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fetcher.FetchPrevOutput(op)
}

// isNotFound reports whether err means the output does not exist, as
// opposed to a failure to look it up.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		txscript.IsErrorCode(err, txscript.ErrPrevOutNotFound)
}

// isNullOutPoint reports whether op is the outpoint of a coinbase input.
func isNullOutPoint(op *wire.OutPoint) bool {
	return op.Index == math.MaxUint32 && op.Hash == (chainhash.Hash{})
}
