// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// witnessItemsScript returns the witness items as data push commands.
func witnessItemsScript(items [][]byte) (Script, error) {
	script := make(Script, 0, len(items))
	for i, item := range items {
		if len(item) > MaxScriptElementSize {
			str := fmt.Sprintf("witness item %d has %d bytes which "+
				"exceeds the max allowed size of %d", i, len(item),
				MaxScriptElementSize)
			return nil, scriptError(ErrTooLongPush, str)
		}
		script = append(script, NewDataCommand(item))
	}
	return script, nil
}

// WitnessV0Script returns the commands executed when spending a version 0
// witness output with the passed witness, together with the script code the
// witness signatures commit to.
//
// For a pay-to-witness-pubkey-hash program the witness items are followed by
// the canonical pay-to-pubkey-hash script over the program.  For a
// pay-to-witness-script-hash program the last witness item is the witness
// script, which must hash to the program, and the remaining items are
// followed by it.
//
// Witness spends must leave the signature script empty.
func WitnessV0Script(pkScript, sigScript []byte,
	witness wire.TxWitness) (Script, []byte, error) {

	class, program, ok := ExtractWitnessProgram(pkScript)
	if !ok {
		str := fmt.Sprintf("script %x is not a version 0 witness program",
			pkScript)
		return nil, nil, scriptError(ErrInternal, str)
	}
	if len(sigScript) != 0 {
		str := fmt.Sprintf("native witness program cannot also have a "+
			"signature script, got %d bytes", len(sigScript))
		return nil, nil, scriptError(ErrWitnessMalleated, str)
	}
	if len(witness) == 0 {
		return nil, nil, scriptError(ErrWitnessProgramEmpty,
			"witness program has an empty witness")
	}

	switch class {
	case WitnessV0PubKeyHashTy:
		scriptCode, err := PayToPubKeyHashScript(program)
		if err != nil {
			return nil, nil, err
		}
		script, err := witnessItemsScript(witness)
		if err != nil {
			return nil, nil, err
		}
		return append(script, MustParseRawScript(scriptCode)...),
			scriptCode, nil

	default:
		witnessScript := witness[len(witness)-1]
		witnessHash := sha256.Sum256(witnessScript)
		if !bytes.Equal(witnessHash[:], program) {
			str := fmt.Sprintf("witness script hash %x does not match "+
				"witness program %x", witnessHash[:], program)
			return nil, nil, scriptError(ErrWitnessProgramMismatch, str)
		}
		parsed, err := ParseRawScript(witnessScript)
		if err != nil {
			return nil, nil, err
		}
		script, err := witnessItemsScript(witness[:len(witness)-1])
		if err != nil {
			return nil, nil, err
		}
		return append(script, parsed...), witnessScript, nil
	}
}
