// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/ecdsa"
)

// Engine is the virtual machine that executes scripts.
//
// The engine runs a single queue of commands, normally the signature script
// followed by the locking script, against one data stack.  A
// pay-to-script-hash spend is resolved by replacing the rest of the queue
// with the revealed redeem script rather than by starting a nested
// evaluation.
type Engine struct {
	cmds     Script // commands not executed yet
	dstack   stack  // data stack
	tx       *wire.MsgTx
	txIdx    int
	hasher   *SigHasher
	sigCache *SigCache

	// numCodeSeps counts the OP_CODESEPARATORs executed so far.
	numCodeSeps int

	// redeemScript is the raw script revealed by a pay-to-script-hash
	// spend once it has been expanded.
	redeemScript []byte

	numSteps int
}

// NewEngine returns a new script engine that executes script on behalf of
// input txIdx of tx.  Signature checks request their digest from hasher and
// consult sigCache, which may be nil, before doing any curve arithmetic.
//
// tx may be nil when the script holds no signature checks, or when hasher is
// a fixed digest hasher.
func NewEngine(script Script, tx *wire.MsgTx, txIdx int, hasher *SigHasher,
	sigCache *SigCache) (*Engine, error) {

	if tx != nil && (txIdx < 0 || txIdx >= len(tx.TxIn)) {
		str := fmt.Sprintf("transaction input index %d is negative or "+
			">= %d", txIdx, len(tx.TxIn))
		return nil, scriptError(ErrInvalidIndex, str)
	}

	cmds := make(Script, len(script))
	copy(cmds, script)
	return &Engine{
		cmds:     cmds,
		tx:       tx,
		txIdx:    txIdx,
		hasher:   hasher,
		sigCache: sigCache,
	}, nil
}

// isScriptHashPattern returns whether the commands are exactly the
// pay-to-script-hash check: OP_HASH160 <20-byte hash> OP_EQUAL.
func isScriptHashPattern(cmds Script) bool {
	return len(cmds) == 3 &&
		cmds[0].IsOpcode(OP_HASH160) &&
		cmds[1].IsData() && len(cmds[1].Data) == 20 &&
		cmds[2].IsOpcode(OP_EQUAL)
}

// executeCommand performs a single command against the engine state.
func (vm *Engine) executeCommand(cmd Command) error {
	switch cmd.Kind {
	case DataCommand:
		if len(cmd.Data) > MaxScriptElementSize {
			str := fmt.Sprintf("element size %d exceeds max allowed "+
				"size %d", len(cmd.Data), MaxScriptElementSize)
			return scriptError(ErrTooLongPush, str)
		}
		vm.dstack.PushByteArray(cmd.Data)
		return nil

	case OpCommand:
		op := &opcodeArray[cmd.Opcode]
		if op.opfunc == nil {
			str := fmt.Sprintf("opcode 0x%02x has no handler", cmd.Opcode)
			return scriptError(ErrInternal, str)
		}
		return op.opfunc(op, nil, vm)
	}

	str := fmt.Sprintf("attempt to execute unknown opcode 0x%02x",
		cmd.Opcode)
	return scriptError(ErrReservedOpcode, str)
}

// expandScriptHash handles the pay-to-script-hash check left in the queue.
// The top stack item must hash to the committed value, in which case it is
// parsed and replaces the remaining commands.
func (vm *Engine) expandScriptHash() error {
	wantHash := vm.cmds[1].Data
	redeemScript, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	if !bytes.Equal(calcHash160(redeemScript), wantHash) {
		str := fmt.Sprintf("redeem script hash %x does not match %x",
			calcHash160(redeemScript), wantHash)
		return scriptError(ErrScriptHashMismatch, str)
	}

	script, err := ParseRawScript(redeemScript)
	if err != nil {
		return err
	}

	log.Tracef("%v", newLogClosure(func() string {
		return fmt.Sprintf("expanding redeem script: %v", script)
	}))

	vm.cmds = script
	vm.redeemScript = redeemScript
	return nil
}

// Step will execute the next command and return whether the queue has been
// exhausted.  If an error is returned then the result of calling Step or any
// other method is undefined.
func (vm *Engine) Step() (done bool, err error) {
	if len(vm.cmds) == 0 {
		return true, nil
	}

	cmd := vm.cmds[0]
	vm.cmds = vm.cmds[1:]
	if err := vm.executeCommand(cmd); err != nil {
		return true, err
	}
	vm.numSteps++

	if isScriptHashPattern(vm.cmds) {
		if err := vm.expandScriptHash(); err != nil {
			return true, err
		}
	}

	return len(vm.cmds) == 0, nil
}

// CheckErrorCondition returns nil if the running script has ended and was
// successful, leaving a true boolean on the stack.  An error otherwise,
// including if the script has not finished.
func (vm *Engine) CheckErrorCondition() error {
	if len(vm.cmds) != 0 {
		str := fmt.Sprintf("error check when script unfinished, %d "+
			"commands remain", len(vm.cmds))
		return scriptError(ErrInternal, str)
	}

	if vm.dstack.Depth() < 1 {
		return scriptError(ErrEvalFalse,
			"stack empty at end of script execution")
	}

	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		return scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}
	return nil
}

// Execute will execute all commands in the script engine.  It returns true
// when the script succeeds.  Script-logic failures, such as a failed verify or
// a redeem script that does not match its hash, return false with a nil
// error.  Scripts that cannot be evaluated at all return an error.
func (vm *Engine) Execute() (bool, error) {
	err := vm.execute()
	if err == nil {
		return true, nil
	}

	var serr Error
	if errors.As(err, &serr) && serr.ErrorCode.isLogicFailure() {
		log.Debugf("Input %d script failed after %d steps: %v",
			vm.txIdx, vm.numSteps, err)
		return false, nil
	}
	return false, err
}

// execute runs the queue to completion and checks the final stack.
func (vm *Engine) execute() error {
	for done := len(vm.cmds) == 0; !done; {
		log.Tracef("%v", newLogClosure(func() string {
			return fmt.Sprintf("stepping %v", vm.DisasmPC())
		}))

		var err error
		done, err = vm.Step()
		if err != nil {
			return err
		}

		log.Tracef("%v", newLogClosure(func() string {
			if vm.dstack.Depth() == 0 {
				return "Stack: <empty>"
			}
			return "Stack:\n" + vm.dstack.String()
		}))
	}

	return vm.CheckErrorCondition()
}

// DisasmPC returns the disassembly of the next command to execute, or an
// empty string when the queue is exhausted.
func (vm *Engine) DisasmPC() string {
	if len(vm.cmds) == 0 {
		return ""
	}
	return vm.cmds[0].String()
}

// RedeemScript returns the redeem script revealed by a pay-to-script-hash
// spend, or nil when none has been expanded.
func (vm *Engine) RedeemScript() []byte {
	return vm.redeemScript
}

// GetStack returns the contents of the data stack, bottom first.
func (vm *Engine) GetStack() [][]byte {
	data := make([][]byte, vm.dstack.Depth())
	copy(data, vm.dstack.stk)
	return data
}

// sigHash returns the digest a signature with the given hash type commits to
// at this point of the execution.
func (vm *Engine) sigHash(hashType SigHashType) (chainhash.Hash, error) {
	if vm.hasher == nil {
		return chainhash.Hash{}, scriptError(ErrInternal,
			"signature check without a signature hasher")
	}
	return vm.hasher.Digest(vm.txIdx, hashType, vm.redeemScript,
		vm.numCodeSeps)
}

// verifySignature checks sig over hash for pubKey, consulting and updating
// the signature cache with the raw encodings found in the script.
func (vm *Engine) verifySignature(hash chainhash.Hash, sig *ecdsa.Signature,
	rawSig []byte, pubKey *ecdsa.PublicKey, rawPubKey []byte) bool {

	if vm.sigCache != nil && vm.sigCache.Exists(hash, rawSig, rawPubKey) {
		return true
	}

	valid := sig.Verify(hash[:], pubKey)
	if valid && vm.sigCache != nil {
		vm.sigCache.Add(hash, rawSig, rawPubKey)
	}
	return valid
}
