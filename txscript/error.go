// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of script error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInternal is returned if internal consistency checks fail.  In
	// practice this error should never be seen as it would mean there is an
	// error in the engine logic.
	ErrInternal ErrorCode = iota

	// ---------------------------------------
	// Failures related to improper encodings.
	// ---------------------------------------

	// ErrMalformedPush is returned when a data push opcode tries to push
	// more bytes than are left in the script.
	ErrMalformedPush

	// ErrTooLongPush is returned when a data push is larger than
	// MaxScriptElementSize, either while parsing or while serializing.
	ErrTooLongPush

	// ErrMalformedLength is returned when the varint length prefix of a
	// serialized script does not match the bytes that follow it.
	ErrMalformedLength

	// ErrNumDecodeOverflow is returned when a script number is too wide to
	// be accumulated into a signed 64-bit value.
	ErrNumDecodeOverflow

	// ErrInvalidSignature is returned when a signature is not a valid DER
	// encoding.
	ErrInvalidSignature

	// ErrInvalidPubKey is returned when a public key is not a valid SEC
	// encoding of a point on the curve.
	ErrInvalidPubKey

	// ErrInvalidSigHashType is returned when a signature carries a hash
	// type byte that is not one of the defined sighash values.
	ErrInvalidSigHashType

	// ---------------------------------
	// Failures related to the stack and
	// script-level policy.
	// ---------------------------------

	// ErrEmptyStack is returned when an element is popped from an empty
	// stack.
	ErrEmptyStack

	// ErrTooManyPublicKeys is returned when a CHECKMULTISIG is encountered
	// with more than MaxPubKeysPerMultiSig pubkeys.
	ErrTooManyPublicKeys

	// ErrInvalidPubKeyCount is returned when the number of public keys
	// specified for a multsig is negative.
	ErrInvalidPubKeyCount

	// ErrInvalidSignatureCount is returned when the number of signatures
	// specified for a multisig is negative, or when building a multisig
	// script that requires more signatures than it has public keys.
	ErrInvalidSignatureCount

	// ErrSigHashMismatch is returned when the signatures given to a
	// CHECKMULTISIG do not all carry the same sighash type.
	ErrSigHashMismatch

	// ErrUnsupportedSigHash is returned when a digest is requested with a
	// sighash type the selected algorithm does not implement.
	ErrUnsupportedSigHash

	// ErrReservedOpcode is returned when an opcode byte with no defined
	// semantics is executed.
	ErrReservedOpcode

	// ----------------------------------------
	// Failures related to the transaction and
	// the previous outputs it spends.
	// ----------------------------------------

	// ErrInvalidIndex is returned when an out-of-bounds index is passed to
	// a function.
	ErrInvalidIndex

	// ErrPrevOutNotFound is returned when the output spent by an input
	// cannot be resolved.
	ErrPrevOutNotFound

	// ErrWitnessProgramEmpty is returned when a witness program is spent
	// with an empty witness.
	ErrWitnessProgramEmpty

	// ErrWitnessProgramMismatch is returned when the witness script of a
	// P2WSH spend does not hash to the witness program.
	ErrWitnessProgramMismatch

	// ErrWitnessMalleated is returned when a native witness program is
	// spent with a non-empty signature script.
	ErrWitnessMalleated

	// -------------------------------------------
	// Script-logic failures.  These are ordinary
	// negative validation outcomes.
	// -------------------------------------------

	// ErrEvalFalse is returned when the script evaluated without error but
	// terminated with a false top stack element or an empty stack.
	ErrEvalFalse

	// ErrVerify is returned when OP_VERIFY is encountered and the top item
	// on the data stack is zero.
	ErrVerify

	// ErrEqualVerify is returned when OP_EQUALVERIFY is encountered and the
	// top two items on the data stack are not equal.
	ErrEqualVerify

	// ErrCheckSigVerify is returned when OP_CHECKSIGVERIFY is encountered
	// and the signature does not verify.
	ErrCheckSigVerify

	// ErrScriptHashMismatch is returned when the redeem script revealed
	// for a pay-to-script-hash output does not hash to the committed
	// value.
	ErrScriptHashMismatch

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:               "ErrInternal",
	ErrMalformedPush:          "ErrMalformedPush",
	ErrTooLongPush:            "ErrTooLongPush",
	ErrMalformedLength:        "ErrMalformedLength",
	ErrNumDecodeOverflow:      "ErrNumDecodeOverflow",
	ErrInvalidSignature:       "ErrInvalidSignature",
	ErrInvalidPubKey:          "ErrInvalidPubKey",
	ErrInvalidSigHashType:     "ErrInvalidSigHashType",
	ErrEmptyStack:             "ErrEmptyStack",
	ErrTooManyPublicKeys:      "ErrTooManyPublicKeys",
	ErrInvalidPubKeyCount:     "ErrInvalidPubKeyCount",
	ErrInvalidSignatureCount:  "ErrInvalidSignatureCount",
	ErrSigHashMismatch:        "ErrSigHashMismatch",
	ErrUnsupportedSigHash:     "ErrUnsupportedSigHash",
	ErrReservedOpcode:         "ErrReservedOpcode",
	ErrInvalidIndex:           "ErrInvalidIndex",
	ErrPrevOutNotFound:        "ErrPrevOutNotFound",
	ErrWitnessProgramEmpty:    "ErrWitnessProgramEmpty",
	ErrWitnessProgramMismatch: "ErrWitnessProgramMismatch",
	ErrWitnessMalleated:       "ErrWitnessMalleated",
	ErrEvalFalse:              "ErrEvalFalse",
	ErrVerify:                 "ErrVerify",
	ErrEqualVerify:            "ErrEqualVerify",
	ErrCheckSigVerify:         "ErrCheckSigVerify",
	ErrScriptHashMismatch:     "ErrScriptHashMismatch",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// isLogicFailure reports whether the code describes a script that ran to a
// negative outcome rather than one that could not be evaluated at all.
func (e ErrorCode) isLogicFailure() bool {
	switch e {
	case ErrEvalFalse, ErrVerify, ErrEqualVerify, ErrCheckSigVerify,
		ErrScriptHashMismatch:
		return true
	}
	return false
}

// Error identifies a script-related error.  It is used to indicate three
// classes of errors:
//  1. Script execution failures due to violating one of the many requirements
//     imposed by the script engine or evaluating to false
//  2. Improper API usage by callers
//  3. Internal consistency check failures
//
// The caller can use type assertions on the returned errors to access the
// ErrorCode field to ascertain the specific reason for the error.  As an
// additional convenience, the caller may make use of the IsErrorCode function
// to check for a specific error code.
type Error struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying cause, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// wrapError creates an Error that keeps cause reachable through errors.Is and
// errors.As.
func wrapError(c ErrorCode, desc string, cause error) Error {
	return Error{
		ErrorCode:   c,
		Description: fmt.Sprintf("%s: %v", desc, cause),
		Err:         cause,
	}
}

// IsErrorCode returns whether or not the provided error is a script error with
// the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	if errors.As(err, &serr) {
		return serr.ErrorCode == c
	}
	return false
}
