// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecdsa

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// orderMinusTwo is n-2 in big-endian form, where n is the order of the
// secp256k1 base point.  Raising a nonzero scalar to this power yields its
// multiplicative inverse by Fermat's little theorem since n is prime.
var orderMinusTwo = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
	0xba, 0xae, 0xdc, 0xe6, 0xaf, 0x48, 0xa0, 0x3b,
	0xbf, 0xd2, 0x5e, 0x8c, 0xd0, 0x36, 0x41, 0x3f,
}

// fermatInverse stores a^(n-2) mod n in result using left-to-right
// square-and-multiply.  a must be nonzero.
func fermatInverse(a, result *secp256k1.ModNScalar) {
	var acc secp256k1.ModNScalar
	acc.SetInt(1)
	for _, b := range orderMinusTwo {
		for bit := 7; bit >= 0; bit-- {
			acc.Square()
			if (b>>uint(bit))&1 == 1 {
				acc.Mul(a)
			}
		}
	}
	result.Set(&acc)
}

// Verify returns whether or not the signature is valid for the provided hash
// and secp256k1 public key.
//
// The hash is interpreted as a big-endian integer and reduced modulo the
// group order n.  With w = s^-1 mod n, the signature is valid when the x
// coordinate of u1*G + u2*Q, reduced modulo n, equals r, where u1 = z*w and
// u2 = r*w.
func (sig *Signature) Verify(hash []byte, pubKey *PublicKey) bool {
	// Step 1.
	//
	// Fail if s is zero or the public key is the point at infinity.  R and S
	// are otherwise known to be in [1, N-1] from parsing.
	if sig.s.IsZero() || sig.r.IsZero() || pubKey == nil ||
		pubKey.IsInfinity() {

		return false
	}

	// Step 2.
	//
	// Convert the hash to a scalar, truncating to 256 bits and reducing
	// modulo the group order.
	var z secp256k1.ModNScalar
	if len(hash) > 32 {
		hash = hash[:32]
	}
	z.SetByteSlice(hash)

	// Step 3.
	//
	// w = s^-1 mod N
	var w secp256k1.ModNScalar
	fermatInverse(&sig.s, &w)

	// Step 4.
	//
	// u1 = z*w mod N
	// u2 = r*w mod N
	var u1, u2 secp256k1.ModNScalar
	u1.Mul2(&z, &w)
	u2.Mul2(&sig.r, &w)

	// Step 5.
	//
	// X = u1*G + u2*Q
	var X, Q, u1G, u2Q secp256k1.JacobianPoint
	pubKey.asJacobian(&Q)
	secp256k1.ScalarBaseMultNonConst(&u1, &u1G)
	secp256k1.ScalarMultNonConst(&u2, &Q, &u2Q)
	secp256k1.AddNonConst(&u1G, &u2Q, &X)

	// Step 6.
	//
	// Fail if X is the point at infinity.
	if (X.X.IsZero() && X.Y.IsZero()) || X.Z.IsZero() {
		return false
	}

	// Step 7.
	//
	// Accept iff X.x mod N == r.
	X.ToAffine()
	var xBytes [32]byte
	X.X.Normalize()
	X.X.PutBytes(&xBytes)
	var xModN secp256k1.ModNScalar
	xModN.SetBytes(&xBytes)
	return xModN.Equals(&sig.r)
}

// VerifyDER parses a DER signature and a SEC public key and verifies the
// signature over hash.  Parsing failures are returned as errors so callers
// can tell a malformed encoding from a signature that does not verify.
func VerifyDER(hash, derSig, serializedPubKey []byte) (bool, error) {
	sig, err := ParseDERSignature(derSig)
	if err != nil {
		return false, err
	}
	pubKey, err := ParsePubKey(serializedPubKey)
	if err != nil {
		return false, err
	}
	return sig.Verify(hash, pubKey), nil
}
