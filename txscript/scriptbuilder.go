// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"
)

const (
	// defaultScriptAlloc is the default number of commands allocated for a
	// script being built by the ScriptBuilder.
	defaultScriptAlloc = 16
)

// ScriptBuilder provides a facility for building custom scripts.  It allows
// you to push opcodes, ints, and data while respecting canonical encoding.  In
// general it does not ensure the script will execute correctly, however any
// data pushes which would exceed the maximum allowed script element size and
// therefore are guaranteed not to execute will not be pushed and will result
// in the Script function returning an error.
//
// For example, the following would build a 2-of-3 multisig script for usage in
// a pay-to-script-hash (although in this situation MultiSigScript() would be a
// better choice to generate the script):
//
//	builder := txscript.NewScriptBuilder()
//	builder.AddOp(txscript.OP_2).AddData(pubKey1).AddData(pubKey2)
//	builder.AddData(pubKey3).AddOp(txscript.OP_3)
//	builder.AddOp(txscript.OP_CHECKMULTISIG)
//	script, err := builder.Script()
//	if err != nil {
//		// Handle the error.
//		return
//	}
//	fmt.Printf("Final multi-sig script: %v\n", script)
type ScriptBuilder struct {
	script Script
	err    error
}

// AddOp pushes the passed opcode to the end of the script.  Bytes the engine
// cannot execute are added as unknown commands.
func (b *ScriptBuilder) AddOp(opcode byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	b.script = append(b.script, NewOpCommand(opcode))
	return b
}

// AddOps pushes the passed opcodes to the end of the script.
func (b *ScriptBuilder) AddOps(opcodes []byte) *ScriptBuilder {
	for _, op := range opcodes {
		b.AddOp(op)
	}
	return b
}

// AddData pushes the passed data to the end of the script.  Empty data and
// single bytes representing the numbers 0 through 16 use the small integer
// opcodes.  Data larger than MaxScriptElementSize is not pushed and the
// Script function will return an error.
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	dataLen := len(data)
	switch {
	case dataLen == 0 || dataLen == 1 && data[0] == 0:
		b.script = append(b.script, NewOpCommand(OP_0))
		return b
	case dataLen == 1 && data[0] <= 16:
		b.script = append(b.script, NewOpCommand((OP_1-1)+data[0]))
		return b
	case dataLen > MaxScriptElementSize:
		str := fmt.Sprintf("adding a data element of %d bytes would "+
			"exceed the maximum allowed script element size of %d",
			dataLen, MaxScriptElementSize)
		b.err = scriptError(ErrTooLongPush, str)
		return b
	}

	b.script = append(b.script, NewDataCommand(data))
	return b
}

// AddInt64 pushes the passed integer to the end of the script.
func (b *ScriptBuilder) AddInt64(val int64) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	// Fast path for small integers.
	if val == 0 {
		b.script = append(b.script, NewOpCommand(OP_0))
		return b
	}
	if val >= 1 && val <= 16 {
		b.script = append(b.script, NewOpCommand(byte((OP_1-1)+val)))
		return b
	}

	b.script = append(b.script, NewDataCommand(scriptNum(val).Bytes()))
	return b
}

// Reset resets the script so it has no content.
func (b *ScriptBuilder) Reset() *ScriptBuilder {
	b.script = b.script[0:0]
	b.err = nil
	return b
}

// Script returns the currently built script.  When any errors occurred while
// building the script, the script will be returned up the point of the first
// error along with the error.
func (b *ScriptBuilder) Script() (Script, error) {
	return b.script, b.err
}

// RawScript returns the wire encoding of the currently built script without a
// length prefix.
func (b *ScriptBuilder) RawScript() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.script.RawBytes()
}

// NewScriptBuilder returns a new instance of a script builder.  See
// ScriptBuilder for details.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{
		script: make(Script, 0, defaultScriptAlloc),
	}
}
