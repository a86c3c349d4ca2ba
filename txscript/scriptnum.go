// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"
	"math"
)

const (
	// maxScriptNumLen is the widest encoding that still fits a signed
	// 64-bit accumulator once the sign bit is removed.
	maxScriptNumLen = 8
)

// scriptNum represents a numeric value used in the scripting engine.
//
// Numbers are encoded as little endian magnitudes with the sign carried in
// the high bit of the most significant byte.  When the natural encoding of the
// magnitude already uses that bit, an extra 0x00 or 0x80 byte is appended to
// hold the sign.  Zero is the empty byte slice.  For example:
//
//	0     -> []
//	1     -> [0x01]
//	-1    -> [0x81]
//	127   -> [0x7f]
//	-127  -> [0xff]
//	128   -> [0x80 0x00]
//	-128  -> [0x80 0x80]
//	999   -> [0xe7 0x03]
//	32767 -> [0xff 0x7f]
//	32768 -> [0x00 0x80 0x00]
type scriptNum int64

// Bytes returns the number serialized as a little endian with a sign bit.
func (n scriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}

	isNegative := n < 0
	magnitude := uint64(n)
	if isNegative {
		magnitude = uint64(-n)
	}

	result := make([]byte, 0, 9)
	for magnitude > 0 {
		result = append(result, byte(magnitude&0xff))
		magnitude >>= 8
	}

	// When the most significant byte already has the high bit set, an
	// additional byte is required to indicate whether the number is negative
	// or positive.  Otherwise the sign bit is folded into the final byte.
	if result[len(result)-1]&0x80 != 0 {
		extraByte := byte(0x00)
		if isNegative {
			extraByte = 0x80
		}
		result = append(result, extraByte)
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int32 returns the script number clamped to a valid int32.
func (n scriptNum) Int32() int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int32(n)
}

// add returns n + o, failing when the sum leaves the int64 range.
func (n scriptNum) add(o scriptNum) (scriptNum, error) {
	sum := n + o
	if (o > 0 && sum < n) || (o < 0 && sum > n) {
		str := fmt.Sprintf("sum of %d and %d overflows a script number",
			n, o)
		return 0, scriptError(ErrNumDecodeOverflow, str)
	}
	return sum, nil
}

// makeScriptNum interprets the passed serialized bytes as an encoded integer
// and returns the result as a script number.
//
// Encodings wider than eight bytes cannot be accumulated into a signed 64-bit
// value and are rejected with ErrNumDecodeOverflow.
func makeScriptNum(v []byte) (scriptNum, error) {
	if len(v) > maxScriptNumLen {
		str := fmt.Sprintf("numeric value encoded as %x is %d bytes "+
			"which exceeds the max allowed of %d", v, len(v),
			maxScriptNumLen)
		return 0, scriptError(ErrNumDecodeOverflow, str)
	}

	// Zero is encoded as an empty byte slice.
	if len(v) == 0 {
		return 0, nil
	}

	// Decode from little endian.
	var result int64
	for i, val := range v {
		result |= int64(val) << uint8(8*i)
	}

	// When the most significant byte of the input bytes has the sign bit
	// set, the result is negative.  So, remove the sign bit from the result
	// and make it negative.
	if v[len(v)-1]&0x80 != 0 {
		// The maximum length of v has already been determined to be 8
		// above, so uint8 is enough to cover the max possible shift
		// value of 56.
		result &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return scriptNum(-result), nil
	}

	return scriptNum(result), nil
}
