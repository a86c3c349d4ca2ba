// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// ChainFetcher resolves an output from a local Store and then from a list of
// remote sources in order.  The first source that knows the output wins and
// its answer is written back into the Store.
type ChainFetcher struct {
	store   *Store
	sources []ContextFetcher
}

// Ensure ChainFetcher implements the ContextFetcher interface.
var _ ContextFetcher = (*ChainFetcher)(nil)

// NewChainFetcher returns a fetcher consulting store, which may be nil, and
// then sources.
func NewChainFetcher(store *Store, sources ...ContextFetcher) *ChainFetcher {
	return &ChainFetcher{
		store:   store,
		sources: sources,
	}
}

// FetchPrevOutputContext returns output op from the first place that has
// it.  A source that fails for a reason other than a miss does not stop the
// search, but its error is returned if no later source has the output.
func (c *ChainFetcher) FetchPrevOutputContext(ctx context.Context,
	op wire.OutPoint) (*wire.TxOut, error) {

	if c.store != nil {
		txOut, err := c.store.FetchPrevOutput(op)
		if err == nil {
			return txOut, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	lastErr := fmt.Errorf("output %v: %w", op, ErrNotFound)
	for _, src := range c.sources {
		txOut, err := src.FetchPrevOutputContext(ctx, op)
		if err == nil {
			log.Tracef("Resolved output %v from %v", op, src)
			c.writeBack(op, txOut)
			return txOut, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		log.Debugf("Unable to resolve output %v from %v: %v", op, src, err)
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	return nil, lastErr
}

// writeBack remembers a remotely resolved output in the store.  A failure
// only costs a later round trip, so it is logged and otherwise ignored.
func (c *ChainFetcher) writeBack(op wire.OutPoint, txOut *wire.TxOut) {
	if c.store == nil {
		return
	}
	err := c.store.PutTxOuts(map[wire.OutPoint]*wire.TxOut{op: txOut})
	if err != nil {
		log.Warnf("Unable to store output %v: %v", op, err)
	}
}

// FetchPrevOutput is FetchPrevOutputContext without a deadline beyond the
// ones of the individual sources.
//
// NOTE: This is a part of the txscript.PrevOutputFetcher interface.
func (c *ChainFetcher) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	return c.FetchPrevOutputContext(context.Background(), op)
}
