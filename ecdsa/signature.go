// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ecdsa

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// References:
//   [SEC1] Elliptic Curve Cryptography
//     https://www.secg.org/sec1-v2.pdf
//
//   [ISO/IEC 8825-1]: Information technology - ASN.1 encoding rules:
//     Specification of Basic Encoding Rules (BER), Canonical Encoding Rules
//     (CER) and Distinguished Encoding Rules (DER)

const (
	// asn1SequenceID is the ASN.1 identifier for a sequence and is used when
	// parsing and serializing signatures encoded with the Distinguished
	// Encoding Rules (DER) format per section 10 of [ISO/IEC 8825-1].
	asn1SequenceID = 0x30

	// asn1IntegerID is the ASN.1 identifier for an integer and is used when
	// parsing and serializing signatures encoded with the Distinguished
	// Encoding Rules (DER) format per section 10 of [ISO/IEC 8825-1].
	asn1IntegerID = 0x02

	// minSigLen is the minimum length of a DER encoded signature and is when
	// both R and S are 1 byte each.
	//
	// 0x30 + <1-byte> + 0x02 + 0x01 + <byte> + 0x2 + 0x01 + <byte>
	minSigLen = 8

	// maxSigLen is the maximum length of a DER encoded signature and is
	// when both R and S are 33 bytes each.  It is 33 bytes because a
	// 256-bit integer requires 32 bytes and an additional leading null byte
	// might be required if the high bit is set in the value.
	//
	// 0x30 + <1-byte> + 0x02 + 0x21 + <33 bytes> + 0x2 + 0x21 + <33 bytes>
	maxSigLen = 72

	// sequenceOffset is the byte offset within the signature of the
	// expected ASN.1 sequence identifier.
	sequenceOffset = 0

	// dataLenOffset is the byte offset within the signature of the expected
	// total length of all remaining data in the signature.
	dataLenOffset = 1

	// rTypeOffset is the byte offset within the signature of the ASN.1
	// identifier for R and is expected to indicate an ASN.1 integer.
	rTypeOffset = 2

	// rLenOffset is the byte offset within the signature of the length of
	// R.
	rLenOffset = 3

	// rOffset is the byte offset within the signature of R.
	rOffset = 4
)

// Signature is a type representing an ECDSA signature.
type Signature struct {
	r secp256k1.ModNScalar
	s secp256k1.ModNScalar
}

// NewSignature instantiates a new signature given some r and s values.
func NewSignature(r, s *secp256k1.ModNScalar) *Signature {
	return &Signature{*r, *s}
}

// R returns the r value of the signature.
func (sig *Signature) R() secp256k1.ModNScalar {
	return sig.r
}

// S returns the s value of the signature.
func (sig *Signature) S() secp256k1.ModNScalar {
	return sig.s
}

// IsEqual compares this Signature instance to the one passed, returning true
// if both Signatures are equivalent.
func (sig *Signature) IsEqual(otherSig *Signature) bool {
	return sig.r.Equals(&otherSig.r) && sig.s.Equals(&otherSig.s)
}

// canonicalPadding strips leading zero bytes from a big-endian integer and
// prepends a single zero byte when the high bit of the first remaining byte
// is set, yielding the minimal DER integer body.
func canonicalPadding(b []byte) []byte {
	for len(b) > 1 && b[0] == 0x00 {
		b = b[1:]
	}
	if b[0]&0x80 != 0 {
		padded := make([]byte, len(b)+1)
		copy(padded[1:], b)
		return padded
	}
	return b
}

// Serialize returns the ECDSA signature in the Distinguished Encoding Rules
// (DER) format per section 10 of [ISO/IEC 8825-1]:
//
//	0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
//
// R and S are minimal big-endian integers with a leading 0x00 when their
// high bit would otherwise be set.
func (sig *Signature) Serialize() []byte {
	rBytes := sig.r.Bytes()
	sBytes := sig.s.Bytes()
	canonR := canonicalPadding(rBytes[:])
	canonS := canonicalPadding(sBytes[:])

	// Total length of returned signature is 1 byte for each magic and
	// length (6 total), plus lengths of R and S.
	totalLen := 6 + len(canonR) + len(canonS)
	b := make([]byte, 0, totalLen)
	b = append(b, asn1SequenceID)
	b = append(b, byte(totalLen-2))
	b = append(b, asn1IntegerID)
	b = append(b, byte(len(canonR)))
	b = append(b, canonR...)
	b = append(b, asn1IntegerID)
	b = append(b, byte(len(canonS)))
	b = append(b, canonS...)
	return b
}

// ParseDERSignature parses a signature in the Distinguished Encoding Rules
// (DER) format per section 10 of [ISO/IEC 8825-1].  The entire passed slice
// must be consumed by the encoding.
func ParseDERSignature(sig []byte) (*Signature, error) {
	signature, sigLen, err := ParseDERSignaturePrefix(sig)
	if err != nil {
		return nil, err
	}
	if sigLen != len(sig) {
		str := fmt.Sprintf("malformed signature: %d trailing bytes after "+
			"the DER encoding", len(sig)-sigLen)
		return nil, signatureError(ErrSigInvalidDataLen, str)
	}
	return signature, nil
}

// ParseDERSignaturePrefix parses a DER signature from the front of sig and
// returns it along with the number of bytes it occupies.  Any bytes after the
// encoding, such as a trailing sighash type byte, are left to the caller.
//
// The format of a DER encoded signature is as follows:
//
//	0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
//	  - 0x30 is the ASN.1 identifier for a sequence
//	  - Total length is 1 byte and specifies length of all remaining data
//	  - 0x02 is the ASN.1 identifier that specifies an integer follows
//	  - Length of R is 1 byte and specifies how many bytes R occupies
//	  - R is the arbitrary length big-endian encoded number which
//	    represents the R value of the signature.  DER encoding dictates
//	    that the value must be encoded using the minimum possible number
//	    of bytes.  This implies the first byte can only be null if the
//	    highest bit of the next byte is set in order to prevent it from
//	    being interpreted as a negative number.
//	  - 0x02 is once again the ASN.1 integer identifier
//	  - Length of S is 1 byte and specifies how many bytes S occupies
//	  - S is the arbitrary length big-endian encoded number which
//	    represents the S value of the signature.  The encoding rules are
//	    identical as those for R.
func ParseDERSignaturePrefix(sig []byte) (*Signature, int, error) {
	// The signature must adhere to the minimum length requirement.
	if len(sig) < minSigLen {
		str := fmt.Sprintf("malformed signature: too short: %d < %d",
			len(sig), minSigLen)
		return nil, 0, signatureError(ErrSigTooShort, str)
	}

	// The signature must start with the ASN.1 sequence identifier.
	if sig[sequenceOffset] != asn1SequenceID {
		str := fmt.Sprintf("malformed signature: format has wrong type: %#x",
			sig[sequenceOffset])
		return nil, 0, signatureError(ErrSigInvalidSeqID, str)
	}

	// The signature must indicate a length for the data that follows that
	// fits in the passed slice and in a canonical signature.
	sigLen := int(sig[dataLenOffset]) + 2
	if sigLen > maxSigLen {
		str := fmt.Sprintf("malformed signature: too long: %d > %d",
			sigLen, maxSigLen)
		return nil, 0, signatureError(ErrSigTooLong, str)
	}
	if sigLen < minSigLen || sigLen > len(sig) {
		str := fmt.Sprintf("malformed signature: bad length: %d != %d",
			sigLen-2, len(sig)-2)
		return nil, 0, signatureError(ErrSigInvalidDataLen, str)
	}
	sig = sig[:sigLen]

	// Calculate the offsets of the elements related to S and ensure S is
	// inside the signature.
	//
	// rLen specifies the length of the big-endian encoded number which
	// represents the R value of the signature.
	//
	// sTypeOffset is the offset of the ASN.1 identifier for S and, like its
	// R counterpart, is expected to indicate an ASN.1 integer.
	//
	// sLenOffset and sOffset are the byte offsets within the signature of
	// the length of S and S itself, respectively.
	rLen := int(sig[rLenOffset])
	sTypeOffset := rOffset + rLen
	sLenOffset := sTypeOffset + 1
	if sTypeOffset >= sigLen {
		str := "malformed signature: S type indicator missing"
		return nil, 0, signatureError(ErrSigMissingSTypeID, str)
	}
	if sLenOffset >= sigLen {
		str := "malformed signature: S length missing"
		return nil, 0, signatureError(ErrSigMissingSLen, str)
	}

	// The lengths of R and S must match the overall length of the
	// signature.
	//
	// sLen specifies the length of the big-endian encoded number which
	// represents the S value of the signature.
	sOffset := sLenOffset + 1
	sLen := int(sig[sLenOffset])
	if sOffset+sLen != sigLen {
		str := "malformed signature: invalid S length"
		return nil, 0, signatureError(ErrSigInvalidSLen, str)
	}

	// R elements must be ASN.1 integers.
	if sig[rTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: R integer marker: %#x != %#x",
			sig[rTypeOffset], asn1IntegerID)
		return nil, 0, signatureError(ErrSigInvalidRIntID, str)
	}

	// Zero-length integers are not allowed for R.
	if rLen == 0 {
		str := "malformed signature: R length is zero"
		return nil, 0, signatureError(ErrSigZeroRLen, str)
	}

	// R must not be negative.
	if sig[rOffset]&0x80 != 0 {
		str := "malformed signature: R is negative"
		return nil, 0, signatureError(ErrSigNegativeR, str)
	}

	// Null bytes at the start of R are not allowed, unless R would otherwise
	// be interpreted as a negative number.
	if rLen > 1 && sig[rOffset] == 0x00 && sig[rOffset+1]&0x80 == 0 {
		str := "malformed signature: R value has too much padding"
		return nil, 0, signatureError(ErrSigTooMuchRPadding, str)
	}

	// S elements must be ASN.1 integers.
	if sig[sTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: S integer marker: %#x != %#x",
			sig[sTypeOffset], asn1IntegerID)
		return nil, 0, signatureError(ErrSigInvalidSIntID, str)
	}

	// Zero-length integers are not allowed for S.
	if sLen == 0 {
		str := "malformed signature: S length is zero"
		return nil, 0, signatureError(ErrSigZeroSLen, str)
	}

	// S must not be negative.
	if sig[sOffset]&0x80 != 0 {
		str := "malformed signature: S is negative"
		return nil, 0, signatureError(ErrSigNegativeS, str)
	}

	// Null bytes at the start of S are not allowed, unless S would
	// otherwise be interpreted as a negative number.
	if sLen > 1 && sig[sOffset] == 0x00 && sig[sOffset+1]&0x80 == 0 {
		str := "malformed signature: S value has too much padding"
		return nil, 0, signatureError(ErrSigTooMuchSPadding, str)
	}

	// The signature is validly encoded per DER at this point, however,
	// enforce additional restrictions to ensure R and S are in the range
	// [1, N-1] since valid ECDSA signatures are required to be in that range
	// per spec.
	//
	// Also note that while the overflow checks are required to make use of
	// the specialized mod N scalar type, rejecting zero here is not strictly
	// required because it is also checked when verifying the signature, but
	// there really isn't a good reason not to fail early here on signatures
	// that do not conform to the ECDSA spec.

	// Strip leading zeroes from R.
	rBytes := sig[rOffset : rOffset+rLen]
	for len(rBytes) > 0 && rBytes[0] == 0x00 {
		rBytes = rBytes[1:]
	}

	// R must be in the range [1, N-1].  Notice the check for the maximum
	// number of bytes is required because SetByteSlice truncates as noted
	// in its comment so it could otherwise fail to detect the overflow.
	var r secp256k1.ModNScalar
	if len(rBytes) > 32 {
		str := "invalid signature: R is larger than 256 bits"
		return nil, 0, signatureError(ErrSigRTooBig, str)
	}
	if overflow := r.SetByteSlice(rBytes); overflow {
		str := "invalid signature: R >= group order"
		return nil, 0, signatureError(ErrSigRTooBig, str)
	}
	if r.IsZero() {
		str := "invalid signature: R is 0"
		return nil, 0, signatureError(ErrSigRIsZero, str)
	}

	// Strip leading zeroes from S.
	sBytes := sig[sOffset : sOffset+sLen]
	for len(sBytes) > 0 && sBytes[0] == 0x00 {
		sBytes = sBytes[1:]
	}

	// S must be in the range [1, N-1].  Notice the check for the maximum
	// number of bytes is required because SetByteSlice truncates as noted
	// in its comment so it could otherwise fail to detect the overflow.
	var s secp256k1.ModNScalar
	if len(sBytes) > 32 {
		str := "invalid signature: S is larger than 256 bits"
		return nil, 0, signatureError(ErrSigSTooBig, str)
	}
	if overflow := s.SetByteSlice(sBytes); overflow {
		str := "invalid signature: S >= group order"
		return nil, 0, signatureError(ErrSigSTooBig, str)
	}
	if s.IsZero() {
		str := "invalid signature: S is 0"
		return nil, 0, signatureError(ErrSigSIsZero, str)
	}

	// Create and return the signature.
	return NewSignature(&r, &s), sigLen, nil
}
