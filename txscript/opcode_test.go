// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// executeRaw runs the concatenation of the raw scripts without a transaction
// and returns the engine result.
func executeRaw(t *testing.T, raws ...string) (bool, error) {
	t.Helper()

	var script Script
	for _, raw := range raws {
		parsed, err := ParseRawScript(hexToBytes(raw))
		require.NoError(t, err)
		script = append(script, parsed...)
	}
	vm, err := NewEngine(script, nil, 0, nil, nil)
	require.NoError(t, err)
	return vm.Execute()
}

// TestOpcodeTable ensures the opcode table, the name map and the known opcode
// predicate agree with each other.
func TestOpcodeTable(t *testing.T) {
	t.Parallel()

	for i := 0; i < 256; i++ {
		op := opcodeArray[i]
		if op.name == "" {
			require.Falsef(t, isKnownOpcode(byte(i)),
				"byte 0x%02x has no table entry but is known", i)
			require.Equal(t, UnknownCommand, NewOpCommand(byte(i)).Kind)
			continue
		}

		require.Truef(t, isKnownOpcode(byte(i)), "%s is not known", op.name)
		require.Equal(t, byte(i), op.value)
		require.NotNil(t, op.opfunc, op.name)
		require.Equal(t, byte(i), OpcodeByName[op.name])
		require.Equal(t, OpCommand, NewOpCommand(byte(i)).Kind)
	}

	require.Equal(t, byte(OP_0), OpcodeByName["OP_FALSE"])
	require.Equal(t, byte(OP_1), OpcodeByName["OP_TRUE"])
	require.Len(t, OpcodeByName, 17+10+2)
}

// TestOpcodeExecution ensures the individual opcodes transform the stack as
// expected when run through the engine.
func TestOpcodeExecution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		valid  bool
		err    ErrorCode
		hasErr bool
	}{
		{name: "add then equal", script: "54" + "55935987", valid: true},
		{name: "add wrong sum", script: "54" + "55935a87", valid: false},
		{name: "add negative", script: "0181" + "5193" + "0087", valid: true},
		{name: "add overflow", script: "08ffffffffffffff7f" + "5193",
			err: ErrNumDecodeOverflow, hasErr: true},
		{name: "add wide operand", script: "09010203040506070809" + "5193",
			err: ErrNumDecodeOverflow, hasErr: true},
		{name: "add empty stack", script: "5193",
			err: ErrEmptyStack, hasErr: true},
		{name: "dup equal", script: "0201027687", valid: true},
		{name: "dup empty stack", script: "76",
			err: ErrEmptyStack, hasErr: true},
		{name: "equal differs", script: "51" + "52" + "87", valid: false},
		{name: "equal compares bytes", script: "0100" + "00" + "87",
			valid: false},
		{name: "equalverify pass", script: "5151" + "88" + "51",
			valid: true},
		{name: "equalverify fail", script: "5152" + "88" + "51",
			valid: false},
		{name: "verify true", script: "5169" + "51", valid: true},
		{name: "verify zero", script: "0069" + "51", valid: false},
		{name: "verify negative zero", script: "018069" + "51",
			valid: false},
		{name: "verify empty stack", script: "69",
			err: ErrEmptyStack, hasErr: true},
		{name: "hash160", script: "00a9" +
			"14b472a266d0bd89c13706a4132ccfb16f7c3b9fcb" + "87",
			valid: true},
		{name: "codeseparator is a noop", script: "51ab", valid: true},
		{name: "small integers", script: "60" + "0110" + "87",
			valid: true},
		{name: "zero is empty", script: "00" + "00" + "87", valid: true},
		{name: "final zero bytes are true", script: "0100", valid: true},
		{name: "final empty is false", script: "00", valid: false},
		{name: "empty script", script: "", valid: false},
		{name: "unknown opcode", script: "516a",
			err: ErrReservedOpcode, hasErr: true},
	}

	for _, test := range tests {
		valid, err := executeRaw(t, test.script)
		if test.hasErr {
			require.Truef(t, IsErrorCode(err, test.err),
				"%s: want %v, got %v", test.name, test.err, err)
			continue
		}
		require.NoErrorf(t, err, test.name)
		require.Equalf(t, test.valid, valid, test.name)
	}
}

// TestCheckMultiSigCounts ensures invalid key and signature counts are
// rejected before any signature is examined.
func TestCheckMultiSigCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		err    ErrorCode
	}{
		{"negative key count", "00" + "00" + "0181" + "ae",
			ErrInvalidPubKeyCount},
		{"too many keys", "00" + "00" + "0115" + "ae",
			ErrTooManyPublicKeys},
		{"negative signature count", "00" + "0181" + "00" + "ae",
			ErrInvalidSignatureCount},
		{"missing keys", "00" + "00" + "52" + "ae", ErrEmptyStack},
		{"missing dummy", "00" + "00" + "ae", ErrEmptyStack},
		{"bad signature encoding", "00" + "0101" + "51" +
			"2103c9f4836b9a4f77fc0d81f7bcb01b7f1b35916864b9476c241ce9fc198bd25432" +
			"51" + "ae", ErrInvalidSignature},
	}

	for _, test := range tests {
		_, err := executeRaw(t, test.script)
		require.Truef(t, IsErrorCode(err, test.err),
			"%s: want %v, got %v", test.name, test.err, err)
	}

	// Zero of zero signatures succeeds without a signature hasher.
	valid, err := executeRaw(t, "00"+"00"+"00"+"ae")
	require.NoError(t, err)
	require.True(t, valid)
}

// TestCheckSigWithoutHasher ensures a signature check cannot run when the
// engine has no way to compute a digest.
func TestCheckSigWithoutHasher(t *testing.T) {
	t.Parallel()

	sig := "47" + "3045022000eff69ef2b1bd93a66ed5219add4fb51e11a840f404876325a1e8ffe0529a2c" +
		"022100c7207fee197d27c618aea621406f6bf5ef6fca38681d82b2f06fddbdce6feab6"
	pubKey := "21" + "03c9f4836b9a4f77fc0d81f7bcb01b7f1b35916864b9476c241ce9fc198bd25432"
	_, err := executeRaw(t, sig+pubKey+"ac")
	require.True(t, IsErrorCode(err, ErrInternal), "got %v", err)
}

// TestParseSignature ensures the optional trailing hash type byte is split off
// a script signature.
func TestParseSignature(t *testing.T) {
	t.Parallel()

	der := hexToBytes("3045022000eff69ef2b1bd93a66ed5219add4fb51e11a840f404876325a1e8ffe0529a2c022100c7207fee197d27c618aea621406f6bf5ef6fca38681d82b2f06fddbdce6feab6")

	_, hashType, err := parseSignature(der)
	require.NoError(t, err)
	require.Equal(t, SigHashAll, hashType)

	_, hashType, err = parseSignature(append(append([]byte{}, der...), 0x83))
	require.NoError(t, err)
	require.Equal(t, SigHashSingle|SigHashAnyOneCanPay, hashType)

	_, _, err = parseSignature(append(append([]byte{}, der...), 0x04))
	require.True(t, IsErrorCode(err, ErrInvalidSigHashType))

	_, _, err = parseSignature(append(append([]byte{}, der...), 0x01, 0x01))
	require.True(t, IsErrorCode(err, ErrInvalidSignature))

	_, _, err = parseSignature(der[:10])
	require.True(t, IsErrorCode(err, ErrInvalidSignature))
}
