// Copyright (c) 2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/binary"
	"fmt"
)

// scriptTokenizer provides a facility for tokenizing raw transaction scripts
// one command at a time.  Each successive command is parsed with the Next
// function, which returns false when iteration is complete, either due to
// successfully tokenizing the entire script or encountering a parse error.  In
// the case of failure, the Err function may be used to obtain the specific
// parse error.
//
// The ByteIndex function may be used to obtain the tokenizer's current offset
// into the raw script, which is how witness script codes are cut at a code
// separator.
type scriptTokenizer struct {
	script []byte
	offset int
	cmd    Command
	err    error
}

// makeScriptTokenizer returns a new tokenizer over the raw script.
func makeScriptTokenizer(script []byte) scriptTokenizer {
	return scriptTokenizer{script: script}
}

// Done returns true when either all commands have been exhausted or a parse
// failure was encountered and therefore the state has an associated error.
func (t *scriptTokenizer) Done() bool {
	return t.err != nil || t.offset >= len(t.script)
}

// Next attempts to parse the next command and returns whether or not it was
// successful.  It will not be successful if invoked when already at the end of
// the script, a parse failure is encountered, or an associated error already
// exists due to a previous parse failure.
//
// In the case of a false return, the offset into the script will either point
// to the failing command or the end of the script.
func (t *scriptTokenizer) Next() bool {
	if t.Done() {
		return false
	}

	b := t.script[t.offset]
	switch {
	// Data pushes of specific lengths -- OP_DATA_[1-75].
	case b >= OP_DATA_1 && b <= OP_DATA_75:
		dataLen := int(b)
		script := t.script[t.offset+1:]
		if len(script) < dataLen {
			str := fmt.Sprintf("push of %d bytes, but script only has %d "+
				"remaining", dataLen, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}
		t.offset += 1 + dataLen
		t.cmd = Command{Kind: DataCommand, Data: script[:dataLen]}
		return true

	// Data pushes with parsed lengths -- OP_PUSHDATA{1,2}.
	case b == OP_PUSHDATA1 || b == OP_PUSHDATA2:
		prefixLen := 1
		if b == OP_PUSHDATA2 {
			prefixLen = 2
		}
		script := t.script[t.offset+1:]
		if len(script) < prefixLen {
			str := fmt.Sprintf("pushdata requires %d length bytes, but "+
				"script only has %d remaining", prefixLen, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		var dataLen int
		if prefixLen == 1 {
			dataLen = int(script[0])
		} else {
			dataLen = int(binary.LittleEndian.Uint16(script[:2]))
		}
		if dataLen > MaxScriptElementSize {
			str := fmt.Sprintf("push of %d bytes exceeds the max allowed "+
				"of %d", dataLen, MaxScriptElementSize)
			t.err = scriptError(ErrTooLongPush, str)
			return false
		}

		script = script[prefixLen:]
		if dataLen > len(script) {
			str := fmt.Sprintf("pushdata of %d bytes, but script only "+
				"has %d remaining", dataLen, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		t.offset += 1 + prefixLen + dataLen
		t.cmd = Command{Kind: DataCommand, Data: script[:dataLen]}
		return true
	}

	t.offset++
	t.cmd = NewOpCommand(b)
	return true
}

// ByteIndex returns the current offset into the full script that will be
// parsed next and therefore also implies everything before it has already
// been parsed.
func (t *scriptTokenizer) ByteIndex() int {
	return t.offset
}

// Command returns the most recently parsed command.
func (t *scriptTokenizer) Command() Command {
	return t.cmd
}

// Err returns any errors currently associated with the tokenizer.
func (t *scriptTokenizer) Err() error {
	return t.err
}
