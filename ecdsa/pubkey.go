// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecdsa

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// PubKeyBytesLenCompressed is the number of bytes of a serialized
	// compressed public key.
	PubKeyBytesLenCompressed = 33

	// PubKeyBytesLenUncompressed is the number of bytes of a serialized
	// uncompressed public key.
	PubKeyBytesLenUncompressed = 65

	// PubKeyFormatCompressedEven is the identifier prefix byte for a public
	// key whose Y coordinate is even when serialized in the compressed
	// format.
	PubKeyFormatCompressedEven byte = 0x02

	// PubKeyFormatCompressedOdd is the identifier prefix byte for a public
	// key whose Y coordinate is odd when serialized in the compressed
	// format.
	PubKeyFormatCompressedOdd byte = 0x03

	// PubKeyFormatUncompressed is the identifier prefix byte for a public
	// key when serialized according in the uncompressed format.
	PubKeyFormatUncompressed byte = 0x04
)

// curveB is the constant b of the curve equation y^2 = x^3 + b.
const curveB = 7

// PublicKey is a point on the secp256k1 curve in affine coordinates, or the
// point at infinity.  The infinity point never parses from a serialized key
// but can arise as an intermediate value.
type PublicKey struct {
	x, y     secp256k1.FieldVal
	infinity bool
}

// NewPublicKey instantiates a new public key with the given x and y
// coordinates.
//
// The coordinates are normalized and no on-curve check is performed.
func NewPublicKey(x, y *secp256k1.FieldVal) *PublicKey {
	var pubKey PublicKey
	pubKey.x.Set(x).Normalize()
	pubKey.y.Set(y).Normalize()
	return &pubKey
}

// infinityPubKey returns the point at infinity.
func infinityPubKey() *PublicKey {
	return &PublicKey{infinity: true}
}

// isOnCurve returns whether or not the affine point (x,y) satisfies
// y^2 = x^3 + 7.  Both coordinates must be normalized.
func isOnCurve(x, y *secp256k1.FieldVal) bool {
	var lhs, rhs secp256k1.FieldVal
	lhs.SquareVal(y).Normalize()
	rhs.SquareVal(x).Mul(x).AddInt(curveB).Normalize()
	return lhs.Equals(&rhs)
}

// ParsePubKey parses a secp256k1 public key encoded according to the format
// specified by ANSI X9.62-1998, which means it is also compatible with the
// SEC (Standards for Efficient Cryptography) specification which is a subset
// of the former.  In other words, it supports the uncompressed and compressed
// formats as follows:
//
// Compressed:
//
//	<format byte = 0x02/0x03><32-byte X coordinate>
//
// Uncompressed:
//
//	<format byte = 0x04><32-byte X coordinate><32-byte Y coordinate>
//
// For compressed keys the Y coordinate is recovered as a square root of
// x^3 + 7 and the root whose parity matches the format byte is chosen.
func ParsePubKey(serialized []byte) (*PublicKey, error) {
	var x, y secp256k1.FieldVal
	switch len(serialized) {
	case PubKeyBytesLenUncompressed:
		format := serialized[0]
		if format != PubKeyFormatUncompressed {
			str := fmt.Sprintf("invalid public key: unsupported format: %x",
				format)
			return nil, pubKeyError(ErrPubKeyInvalidFormat, str)
		}

		// Parse the x and y coordinates while ensuring that they are in
		// the allowed range.
		if overflow := x.SetByteSlice(serialized[1:33]); overflow {
			str := "invalid public key: x >= field prime"
			return nil, pubKeyError(ErrPubKeyXTooBig, str)
		}
		if overflow := y.SetByteSlice(serialized[33:]); overflow {
			str := "invalid public key: y >= field prime"
			return nil, pubKeyError(ErrPubKeyYTooBig, str)
		}

	case PubKeyBytesLenCompressed:
		// Reject unsupported public key formats for the given length.
		format := serialized[0]
		switch format {
		case PubKeyFormatCompressedEven, PubKeyFormatCompressedOdd:
		default:
			str := fmt.Sprintf("invalid public key: unsupported format: %x",
				format)
			return nil, pubKeyError(ErrPubKeyInvalidFormat, str)
		}

		// Parse the x coordinate while ensuring that it is in the allowed
		// range.
		if overflow := x.SetByteSlice(serialized[1:33]); overflow {
			str := "invalid public key: x >= field prime"
			return nil, pubKeyError(ErrPubKeyXTooBig, str)
		}

		// Attempt to calculate the y coordinate for the given x
		// coordinate such that the result pair is a point on the
		// secp256k1 curve and the solution with desired oddness is
		// chosen.
		var rhs secp256k1.FieldVal
		rhs.SquareVal(&x).Mul(&x).AddInt(curveB).Normalize()
		if !y.SquareRootVal(&rhs) {
			str := fmt.Sprintf("invalid public key: x coordinate %v is "+
				"not on the secp256k1 curve", x)
			return nil, pubKeyError(ErrPubKeyNotOnCurve, str)
		}
		y.Normalize()
		wantOddY := format == PubKeyFormatCompressedOdd
		if y.IsOdd() != wantOddY {
			y.Negate(1).Normalize()
		}

	default:
		str := fmt.Sprintf("malformed public key: invalid length: %d",
			len(serialized))
		return nil, pubKeyError(ErrPubKeyInvalidLen, str)
	}

	x.Normalize()
	if !isOnCurve(&x, &y) {
		str := fmt.Sprintf("invalid public key: [%v,%v] not on secp256k1 "+
			"curve", x, y)
		return nil, pubKeyError(ErrPubKeyNotOnCurve, str)
	}

	return NewPublicKey(&x, &y), nil
}

// IsInfinity returns whether the key is the point at infinity.
func (p *PublicKey) IsInfinity() bool {
	return p.infinity
}

// X returns a copy of the x coordinate of the public key.
func (p *PublicKey) X() secp256k1.FieldVal {
	return p.x
}

// Y returns a copy of the y coordinate of the public key.
func (p *PublicKey) Y() secp256k1.FieldVal {
	return p.y
}

// SerializeUncompressed serializes a public key in the 65-byte uncompressed
// format.
func (p *PublicKey) SerializeUncompressed() []byte {
	// 0x04 || 32-byte x coordinate || 32-byte y coordinate
	var b [PubKeyBytesLenUncompressed]byte
	b[0] = PubKeyFormatUncompressed
	p.x.PutBytesUnchecked(b[1:33])
	p.y.PutBytesUnchecked(b[33:65])
	return b[:]
}

// SerializeCompressed serializes a public key in the 33-byte compressed
// format.
func (p *PublicKey) SerializeCompressed() []byte {
	// Choose the format byte depending on the oddness of the Y coordinate.
	format := PubKeyFormatCompressedEven
	if p.y.IsOdd() {
		format = PubKeyFormatCompressedOdd
	}

	// 0x02 or 0x03 || 32-byte x coordinate
	var b [PubKeyBytesLenCompressed]byte
	b[0] = format
	p.x.PutBytesUnchecked(b[1:33])
	return b[:]
}

// IsEqual compares this public key instance to the one passed, returning true
// if both public keys are equivalent.
func (p *PublicKey) IsEqual(otherPubKey *PublicKey) bool {
	if p.infinity || otherPubKey.infinity {
		return p.infinity == otherPubKey.infinity
	}
	return p.x.Equals(&otherPubKey.x) && p.y.Equals(&otherPubKey.y)
}

// asJacobian converts the public key into a Jacobian point with Z=1 and
// stores the result in the provided result param.
func (p *PublicKey) asJacobian(result *secp256k1.JacobianPoint) {
	if p.infinity {
		result.X.SetInt(0)
		result.Y.SetInt(0)
		result.Z.SetInt(0)
		return
	}
	result.X.Set(&p.x)
	result.Y.Set(&p.y)
	result.Z.SetInt(1)
}
