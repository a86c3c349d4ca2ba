// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txscript implements the subset of the bitcoin transaction script
language needed to verify legacy, pay-to-script-hash and version 0 witness
spends.

# Script Overview

Bitcoin transaction scripts are written in a stack-based, FORTH-like
language.  A script is a sequence of commands, each either a data push or an
opcode.  Scripts are processed from left to right and provide no loops.

An input is authorized by running its signature script followed by the
locking script of the output it spends.  The spend succeeds when execution
completes and the top stack item is non-empty.

# Parsing

Raw scripts carry a varint length prefix when they appear in a transaction.
ParseScript reads that form and ParseRawScript reads a bare script such as a
redeem script or witness script.  Both reject pushes that run past the end of
the script and data longer than MaxScriptElementSize.

# Signature Digests

SigHasher produces the digests that signatures commit to.  Legacy inputs use
the original algorithm over a copy of the transaction and version 0 witness
inputs use the BIP0143 algorithm, whose midstate is kept in TxSigHashes so it
is computed once per transaction.

# Errors

Errors returned by this package are of type txscript.Error.  Use IsErrorCode
to check for a specific ErrorCode.
*/
package txscript
