// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ecdsa verifies secp256k1 ECDSA signatures as used by bitcoin
// scripts.
//
// Signatures are parsed from strict DER (BIP0066) and public keys from the
// SEC compressed or uncompressed formats.  Field and scalar arithmetic is
// provided by the dcrd secp256k1 package.  Parse failures are returned as
// Error values whose Err field is an ErrorKind, so errors.Is can match them.
package ecdsa
