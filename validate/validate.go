// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
)

// zeroHash is the zero value for a chainhash.Hash and is defined as a package
// level variable to avoid the need to create a new instance every time a
// check is needed.
var zeroHash chainhash.Hash

// isNullOutpoint determines whether or not a previous transaction output point
// is set.
func isNullOutpoint(outpoint *wire.OutPoint) bool {
	return outpoint.Index == math.MaxUint32 && outpoint.Hash.IsEqual(&zeroHash)
}

// CheckTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free.
func CheckTransactionSanity(tx *wire.MsgTx) error {
	// A transaction must have at least one input.
	if len(tx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}

	// Ensure the transaction amounts are in range.  Each transaction
	// output must not be negative or more than the max allowed per
	// transaction.  Also, the total of all outputs must abide by the same
	// restrictions.
	var totalSatoshi int64
	for _, txOut := range tx.TxOut {
		satoshi := txOut.Value
		if satoshi < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", satoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
		if satoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is "+
				"higher than max allowed value of %v", satoshi,
				btcutil.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}

		// Each value is bounded above, so the running total cannot
		// wrap before it is caught here.
		totalSatoshi += satoshi
		if totalSatoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"outputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshi,
				btcutil.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
	}

	return nil
}

// fetchInputPrevOut resolves the output spent by input idx of tx.
func fetchInputPrevOut(tx *wire.MsgTx, idx int,
	prevOuts txscript.PrevOutputFetcher) (*wire.TxOut, error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("transaction input index %d is out of range "+
			"for %d inputs", idx, len(tx.TxIn))
		return nil, ruleError(ErrBadTxInput, str)
	}
	outpoint := tx.TxIn[idx].PreviousOutPoint
	if isNullOutpoint(&outpoint) {
		str := fmt.Sprintf("transaction input %d spends the null "+
			"outpoint of a coinbase", idx)
		return nil, ruleError(ErrCoinbaseInput, str)
	}

	prevOut, err := prevOuts.FetchPrevOutput(outpoint)
	if err != nil {
		str := fmt.Sprintf("unable to resolve output %v spent by "+
			"input %d of transaction %v", outpoint, idx, tx.TxHash())
		return nil, wrapRuleError(ErrMissingTxOut, str, err)
	}
	if prevOut == nil {
		str := fmt.Sprintf("output %v spent by input %d of transaction "+
			"%v does not exist", outpoint, idx, tx.TxHash())
		return nil, ruleError(ErrMissingTxOut, str)
	}
	return prevOut, nil
}

// inputScript assembles the commands executed for input idx of tx, which
// spends prevOut, and the signature hasher its signature checks use.
func inputScript(tx *wire.MsgTx, idx int, prevOut *wire.TxOut,
	sigHashes *txscript.TxSigHashes) (txscript.Script, *txscript.SigHasher, error) {

	txIn := tx.TxIn[idx]

	// The prevout is already resolved, so the hasher is handed only that
	// output and never goes back to the caller's fetcher.
	fetcher := txscript.NewCannedPrevOutputFetcher(prevOut.PkScript,
		prevOut.Value)

	class := txscript.GetScriptClass(prevOut.PkScript)
	switch class {
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy:
		script, scriptCode, err := txscript.WitnessV0Script(
			prevOut.PkScript, txIn.SignatureScript, txIn.Witness)
		if err != nil {
			return nil, nil, err
		}
		hasher := txscript.NewWitnessV0SigHasher(tx, fetcher, scriptCode,
			sigHashes)
		return script, hasher, nil
	}

	// Everything else runs the signature script followed by the locking
	// script against the legacy digest.  Pay-to-script-hash spends are
	// expanded by the engine itself.
	sigScript, err := txscript.ParseRawScript(txIn.SignatureScript)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err := txscript.ParseRawScript(prevOut.PkScript)
	if err != nil {
		return nil, nil, err
	}
	script := make(txscript.Script, 0, len(sigScript)+len(pkScript))
	script = append(script, sigScript...)
	script = append(script, pkScript...)
	return script, txscript.NewLegacySigHasher(tx, fetcher), nil
}

// verifyInput is the shared implementation of VerifyInput.  sigHashes may be
// nil, in which case witness inputs compute them from tx.
func verifyInput(tx *wire.MsgTx, idx int, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache, sigHashes *txscript.TxSigHashes) (bool, error) {

	prevOut, err := fetchInputPrevOut(tx, idx, prevOuts)
	if err != nil {
		return false, err
	}

	script, hasher, err := inputScript(tx, idx, prevOut, sigHashes)
	if err != nil {
		str := fmt.Sprintf("failed to parse input %v:%d which "+
			"references output %v (input script bytes %x, prev "+
			"output script bytes %x)", tx.TxHash(), idx,
			tx.TxIn[idx].PreviousOutPoint,
			tx.TxIn[idx].SignatureScript, prevOut.PkScript)
		return false, wrapRuleError(ErrScriptMalformed, str, err)
	}

	log.Tracef("Verifying input %d of %v (%v): %v", idx, tx.TxHash(),
		txscript.GetScriptClass(prevOut.PkScript), script)

	vm, err := txscript.NewEngine(script, tx, idx, hasher, sigCache)
	if err != nil {
		str := fmt.Sprintf("failed to create script engine for input "+
			"%v:%d", tx.TxHash(), idx)
		return false, wrapRuleError(ErrScriptMalformed, str, err)
	}
	valid, err := vm.Execute()
	if err != nil {
		str := fmt.Sprintf("failed to validate input %v:%d which "+
			"references output %v", tx.TxHash(), idx,
			tx.TxIn[idx].PreviousOutPoint)
		return false, wrapRuleError(ErrScriptValidation, str, err)
	}
	return valid, nil
}

// VerifyInput runs the scripts of input idx of tx and reports whether they
// succeed.  The spent output is resolved through prevOuts, and sigCache, which
// may be nil, is consulted before any signature is verified.
//
// The locking script of the spent output selects how the input is run:
// version 0 witness programs execute their witness against the BIP0143
// digest, and every other script executes the signature script followed by
// the locking script against the legacy digest, expanding pay-to-script-hash
// spends on the way.
//
// A script that runs to a negative outcome returns false with a nil error.
// Inputs that cannot be evaluated at all return a RuleError whose Err field
// holds the underlying script or lookup error.
func VerifyInput(tx *wire.MsgTx, idx int, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache) (bool, error) {

	return verifyInput(tx, idx, prevOuts, sigCache, nil)
}

// VerifyTx verifies every input of tx and that the transaction does not spend
// more than its inputs provide.  It returns false with a nil error when the
// scripts of an input run to a negative outcome.  An ErrInsufficientFee
// RuleError is returned when the outputs exceed the resolved input amounts.
func VerifyTx(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache) (bool, error) {

	if err := CheckTransactionSanity(tx); err != nil {
		return false, err
	}

	fee, err := CalcFee(tx, prevOuts)
	if err != nil {
		return false, err
	}
	if fee < 0 {
		str := fmt.Sprintf("total value of all transaction outputs for "+
			"transaction %v is more than the total of its inputs by %v",
			tx.TxHash(), -fee)
		return false, ruleError(ErrInsufficientFee, str)
	}

	// The BIP0143 midstate is shared by every witness input.
	var sigHashes *txscript.TxSigHashes
	if tx.HasWitness() {
		sigHashes = txscript.NewTxSigHashes(tx)
	}

	for idx := range tx.TxIn {
		valid, err := verifyInput(tx, idx, prevOuts, sigCache, sigHashes)
		if err != nil {
			return false, err
		}
		if !valid {
			log.Debugf("Input %d of transaction %v failed script "+
				"validation", idx, tx.TxHash())
			return false, nil
		}
	}

	log.Debugf("Transaction %v verified (%d inputs, fee %v)", tx.TxHash(),
		len(tx.TxIn), fee)
	return true, nil
}
