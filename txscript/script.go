// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
)

// CommandKind identifies the form of a script command.
type CommandKind uint8

const (
	// OpCommand is an opcode the engine knows how to execute.
	OpCommand CommandKind = iota

	// DataCommand pushes its data verbatim.
	DataCommand

	// UnknownCommand is a byte with no defined semantics.  It is kept so
	// that arbitrary scripts, coinbase scripts included, still parse and
	// round trip.  Executing one is an error.
	UnknownCommand
)

var commandKindStrings = map[CommandKind]string{
	OpCommand:      "OpCommand",
	DataCommand:    "DataCommand",
	UnknownCommand: "UnknownCommand",
}

// String returns the CommandKind in human-readable form.
func (k CommandKind) String() string {
	if s, ok := commandKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown CommandKind (%d)", uint8(k))
}

// Command is a single element of a script: an opcode, a data push or an
// unknown byte.  Commands are immutable once created.
type Command struct {
	Kind CommandKind

	// Opcode is the byte value of OpCommand and UnknownCommand entries.
	Opcode byte

	// Data is the payload of a DataCommand.
	Data []byte
}

// NewOpCommand returns the command for the given opcode byte.  Bytes the
// engine cannot execute produce an UnknownCommand.
func NewOpCommand(op byte) Command {
	if !isKnownOpcode(op) {
		return Command{Kind: UnknownCommand, Opcode: op}
	}
	return Command{Kind: OpCommand, Opcode: op}
}

// NewDataCommand returns a command that pushes data.
func NewDataCommand(data []byte) Command {
	return Command{Kind: DataCommand, Data: data}
}

// IsOpcode returns whether the command is the given executable opcode.
func (c Command) IsOpcode(op byte) bool {
	return c.Kind == OpCommand && c.Opcode == op
}

// IsData returns whether the command is a data push.
func (c Command) IsData() bool {
	return c.Kind == DataCommand
}

// isEmptyPush returns whether the command pushes an empty vector.
func (c Command) isEmptyPush() bool {
	return c.IsOpcode(OP_0) || (c.Kind == DataCommand && len(c.Data) == 0)
}

// Equal returns whether both commands are of the same kind and carry the
// same opcode or data.  An empty data push and OP_0 are equal since both
// encode to the same byte.
func (c Command) Equal(other Command) bool {
	if c.isEmptyPush() && other.isEmptyPush() {
		return true
	}
	if c.Kind != other.Kind {
		return false
	}
	if c.Kind == DataCommand {
		return bytes.Equal(c.Data, other.Data)
	}
	return c.Opcode == other.Opcode
}

// appendBytes appends the wire encoding of the command to b.  Pushes use the
// smallest encoding for their length and an empty push is encoded as OP_0.
func (c Command) appendBytes(b []byte) ([]byte, error) {
	if c.Kind != DataCommand {
		return append(b, c.Opcode), nil
	}

	dataLen := len(c.Data)
	switch {
	case dataLen == 0:
		b = append(b, OP_0)
	case dataLen <= OP_DATA_75:
		b = append(b, byte(dataLen))
	case dataLen <= 0xff:
		b = append(b, OP_PUSHDATA1, byte(dataLen))
	case dataLen <= MaxScriptElementSize:
		var lenBytes [2]byte
		binary.LittleEndian.PutUint16(lenBytes[:], uint16(dataLen))
		b = append(b, OP_PUSHDATA2)
		b = append(b, lenBytes[:]...)
	default:
		str := fmt.Sprintf("push of %d bytes exceeds the max allowed of %d",
			dataLen, MaxScriptElementSize)
		return nil, scriptError(ErrTooLongPush, str)
	}
	return append(b, c.Data...), nil
}

// String returns the one-line disassembly of the command.  Data is shown as
// hex, small integers as their value and unknown bytes as OP_UNKNOWN<n>.
func (c Command) String() string {
	switch c.Kind {
	case DataCommand:
		if len(c.Data) == 0 {
			return "0"
		}
		return hex.EncodeToString(c.Data)
	case OpCommand:
		switch {
		case c.Opcode == OP_0:
			return "0"
		case c.Opcode >= OP_1 && c.Opcode <= OP_16:
			return fmt.Sprintf("%d", c.Opcode-(OP_1-1))
		}
		return opcodeArray[c.Opcode].name
	}
	return fmt.Sprintf("OP_UNKNOWN%d", c.Opcode)
}

// Script is an ordered sequence of commands.  Scripts compose by simple
// concatenation.
type Script []Command

// ParseRawScript parses a script that carries no length prefix, such as a
// redeem script revealed on the stack or a witness script.
func ParseRawScript(raw []byte) (Script, error) {
	script := make(Script, 0, len(raw)/2)
	tokenizer := makeScriptTokenizer(raw)
	for tokenizer.Next() {
		script = append(script, tokenizer.Command())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return script, nil
}

// MustParseRawScript parses the raw script and panics on failure.  It is
// only intended for hard-coded scripts.
func MustParseRawScript(raw []byte) Script {
	script, err := ParseRawScript(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid script %x: %v", raw, err))
	}
	return script
}

// ParseScript parses a script encoded with a leading varint length.  The
// length must account for exactly the bytes that follow it.
func ParseScript(serialized []byte) (Script, error) {
	r := bytes.NewReader(serialized)
	length, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, wrapError(ErrMalformedLength,
			"unable to read script length", err)
	}
	if length != uint64(r.Len()) {
		str := fmt.Sprintf("script length prefix %d does not match the %d "+
			"bytes that follow", length, r.Len())
		return nil, scriptError(ErrMalformedLength, str)
	}
	return ParseRawScript(serialized[len(serialized)-r.Len():])
}

// RawBytes returns the encoding of the script without a length prefix.
func (s Script) RawBytes() ([]byte, error) {
	b := make([]byte, 0, len(s)*2)
	for _, cmd := range s {
		var err error
		b, err = cmd.appendBytes(b)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Bytes returns the encoding of the script with its varint length prefix.
func (s Script) Bytes() ([]byte, error) {
	raw, err := s.RawBytes()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(wire.VarIntSerializeSize(uint64(len(raw))) + len(raw))
	if err := wire.WriteVarInt(&buf, 0, uint64(len(raw))); err != nil {
		return nil, err
	}
	buf.Write(raw)
	return buf.Bytes(), nil
}

// Equal returns whether both scripts hold equal commands in the same order.
func (s Script) Equal(other Script) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// String returns the one-line disassembly of the script.
func (s Script) String() string {
	var buf strings.Builder
	for i, cmd := range s {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(cmd.String())
	}
	return buf.String()
}

// DisasmString formats a disassembled raw script for one line printing.  When
// the script fails to parse, the returned string contains the disassembly up
// to the failure point followed by "[error]".
func DisasmString(raw []byte) (string, error) {
	var buf strings.Builder
	tokenizer := makeScriptTokenizer(raw)
	for tokenizer.Next() {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(tokenizer.Command().String())
	}
	if err := tokenizer.Err(); err != nil {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("[error]")
		return buf.String(), err
	}
	return buf.String(), nil
}

// codeSeparatorOffset returns the byte offset just past the nth
// OP_CODESEPARATOR of the raw script, or zero when n is zero.  It fails when
// the script holds fewer than n separators.
func codeSeparatorOffset(raw []byte, n int) (int, error) {
	if n == 0 {
		return 0, nil
	}

	seen := 0
	tokenizer := makeScriptTokenizer(raw)
	for tokenizer.Next() {
		if tokenizer.Command().IsOpcode(OP_CODESEPARATOR) {
			seen++
			if seen == n {
				return tokenizer.ByteIndex(), nil
			}
		}
	}
	if err := tokenizer.Err(); err != nil {
		return 0, err
	}
	str := fmt.Sprintf("script has %d code separators, wanted %d", seen, n)
	return 0, scriptError(ErrInternal, str)
}
