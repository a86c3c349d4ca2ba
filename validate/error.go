// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrNoTxInputs indicates a transaction does not have any inputs.
	ErrNoTxInputs ErrorCode = iota

	// ErrBadTxOutValue indicates an output value for a transaction is
	// invalid in some way such as being out of range.
	ErrBadTxOutValue

	// ErrBadTxInput indicates a transaction input is invalid in some way
	// such as referencing an index that does not exist.
	ErrBadTxInput

	// ErrCoinbaseInput indicates a transaction input spends the null
	// outpoint.  Coinbase inputs have no previous output to verify
	// against.
	ErrCoinbaseInput

	// ErrMissingTxOut indicates a transaction output referenced by an
	// input could not be resolved.
	ErrMissingTxOut

	// ErrScriptMalformed indicates the scripts of an input could not be
	// assembled into something the script engine can run.
	ErrScriptMalformed

	// ErrScriptValidation indicates the result of executing the scripts of
	// an input failed.  The error covers both a false result and a hard
	// script error.
	ErrScriptValidation

	// ErrInsufficientFee indicates a transaction spends more than the sum
	// of its input amounts.
	ErrInsufficientFee

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrNoTxInputs:       "ErrNoTxInputs",
	ErrBadTxOutValue:    "ErrBadTxOutValue",
	ErrBadTxInput:       "ErrBadTxInput",
	ErrCoinbaseInput:    "ErrCoinbaseInput",
	ErrMissingTxOut:     "ErrMissingTxOut",
	ErrScriptMalformed:  "ErrScriptMalformed",
	ErrScriptValidation: "ErrScriptValidation",
	ErrInsufficientFee:  "ErrInsufficientFee",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// verification of a transaction failed due to one of the many validation
// rules.  The caller can use type assertions to determine if a failure was
// specifically due to a rule violation and access the ErrorCode field to
// ascertain the specific reason for the rule violation.
//
// Err holds the underlying script or lookup error, if any, so callers can
// still match it with errors.Is and errors.As.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying cause, may be nil
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying cause.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// wrapRuleError creates a RuleError that keeps cause reachable.
func wrapRuleError(c ErrorCode, desc string, cause error) RuleError {
	return RuleError{
		ErrorCode:   c,
		Description: fmt.Sprintf("%s: %v", desc, cause),
		Err:         cause,
	}
}
