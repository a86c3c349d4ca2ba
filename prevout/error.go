// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"errors"

	"github.com/btcsuite/btcverify/prevout/engine"
)

var (
	// ErrNotFound is wrapped by every fetcher when the requested output
	// or transaction does not exist at that source.
	ErrNotFound = errors.New("previous output not found")

	// ErrClientShutdown is returned by a remote fetcher after Close.
	ErrClientShutdown = errors.New("prevout client has been shut down")

	// ErrDbClosed is returned when a Store is used after Close.
	ErrDbClosed = engine.ErrDbClosed
)
