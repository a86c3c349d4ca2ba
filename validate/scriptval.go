// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcverify/txscript"
)

// txValidateItem holds a transaction along with which input to validate.
type txValidateItem struct {
	txInIndex int
	tx        *btcutil.Tx
	sigHashes *txscript.TxSigHashes
}

// txValidator provides a type which asynchronously validates transaction
// inputs.  It provides several channels for communication and a processing
// function that is intended to be in run multiple goroutines.
type txValidator struct {
	validateChan chan *txValidateItem
	quitChan     chan struct{}
	resultChan   chan error
	prevOuts     txscript.PrevOutputFetcher
	sigCache     *txscript.SigCache
}

// sendResult sends the result of a script pair validation on the internal
// result channel while respecting the quit channel.  This allows orderly
// shutdown when the validation process is aborted early due to a validation
// error in one of the other goroutines.
func (v *txValidator) sendResult(result error) {
	select {
	case v.resultChan <- result:
	case <-v.quitChan:
	}
}

// validateHandler consumes items to validate from the internal validate channel
// and returns the result of the validation on the internal result channel. It
// must be run as a goroutine.
func (v *txValidator) validateHandler() {
out:
	for {
		select {
		case txVI := <-v.validateChan:
			// Each item builds its own engine and signature hasher,
			// so only the fetcher and the signature cache are
			// shared between handlers.
			msgTx := txVI.tx.MsgTx()
			valid, err := verifyInput(msgTx, txVI.txInIndex,
				v.prevOuts, v.sigCache, txVI.sigHashes)
			if err != nil {
				v.sendResult(err)
				break out
			}
			if !valid {
				str := fmt.Sprintf("failed to validate input "+
					"%s:%d which references output %v - "+
					"script evaluated to false",
					txVI.tx.Hash(), txVI.txInIndex,
					msgTx.TxIn[txVI.txInIndex].PreviousOutPoint)
				v.sendResult(ruleError(ErrScriptValidation, str))
				break out
			}

			// Validation succeeded.
			v.sendResult(nil)

		case <-v.quitChan:
			break out
		}
	}
}

// Validate validates the scripts for all of the passed transaction inputs using
// multiple goroutines.
func (v *txValidator) Validate(items []*txValidateItem) error {
	if len(items) == 0 {
		return nil
	}

	// Limit the number of goroutines to do script validation based on the
	// number of processor cores.  This helps ensure the system stays
	// reasonably responsive under heavy load.
	maxGoRoutines := runtime.NumCPU() * 3
	if maxGoRoutines <= 0 {
		maxGoRoutines = 1
	}
	if maxGoRoutines > len(items) {
		maxGoRoutines = len(items)
	}

	// Start up validation handlers that are used to asynchronously
	// validate each transaction input.
	for i := 0; i < maxGoRoutines; i++ {
		go v.validateHandler()
	}

	// Validate each of the inputs.  The quit channel is closed when any
	// errors occur so all processing goroutines exit regardless of which
	// input had the validation error.
	numInputs := len(items)
	currentItem := 0
	processedItems := 0
	for processedItems < numInputs {
		// Only send items while there are still items that need to
		// be processed.  The select statement will never select a nil
		// channel.
		var validateChan chan *txValidateItem
		var item *txValidateItem
		if currentItem < numInputs {
			validateChan = v.validateChan
			item = items[currentItem]
		}

		select {
		case validateChan <- item:
			currentItem++

		case err := <-v.resultChan:
			processedItems++
			if err != nil {
				close(v.quitChan)
				return err
			}
		}
	}

	close(v.quitChan)
	return nil
}

// newTxValidator returns a new instance of txValidator to be used for
// validating transaction scripts asynchronously.
func newTxValidator(prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache) *txValidator {

	return &txValidator{
		validateChan: make(chan *txValidateItem),
		quitChan:     make(chan struct{}),
		resultChan:   make(chan error),
		prevOuts:     prevOuts,
		sigCache:     sigCache,
	}
}

// txValidateItems returns one item per input of tx.  Witness transactions
// take their BIP0143 midstate from hashCache when one is supplied.
func txValidateItems(tx *btcutil.Tx, hashCache *txscript.HashCache) []*txValidateItem {
	msgTx := tx.MsgTx()

	var sigHashes *txscript.TxSigHashes
	if msgTx.HasWitness() {
		if hashCache != nil {
			var ok bool
			sigHashes, ok = hashCache.GetSigHashes(tx.Hash())
			if !ok {
				sigHashes = hashCache.AddSigHashes(msgTx)
			}
		} else {
			sigHashes = txscript.NewTxSigHashes(msgTx)
		}
	}

	items := make([]*txValidateItem, 0, len(msgTx.TxIn))
	for txInIdx := range msgTx.TxIn {
		items = append(items, &txValidateItem{
			txInIndex: txInIdx,
			tx:        tx,
			sigHashes: sigHashes,
		})
	}
	return items
}

// ValidateTransactionScripts validates the scripts for the passed transaction
// using multiple goroutines.  The first input that fails stops the
// validation and its error is returned.  Unlike VerifyTx, a false script
// result is reported as an ErrScriptValidation RuleError.
func ValidateTransactionScripts(tx *btcutil.Tx, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache) error {

	if err := CheckTransactionSanity(tx.MsgTx()); err != nil {
		return err
	}

	validator := newTxValidator(prevOuts, sigCache)
	return validator.Validate(txValidateItems(tx, nil))
}

// ValidateTransactions validates the scripts of all of the passed
// transactions, fanning their inputs out over one pool of goroutines.
//
// hashCache, which may be nil, supplies the BIP0143 midstate of witness
// transactions.  Entries added for the passed transactions are purged once
// validation completes.
func ValidateTransactions(txs []*btcutil.Tx, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache, hashCache *txscript.HashCache) error {

	// Collect all of the transaction inputs and required information for
	// validation for all transactions into a single slice.
	numInputs := 0
	for _, tx := range txs {
		numInputs += len(tx.MsgTx().TxIn)
	}
	txValItems := make([]*txValidateItem, 0, numInputs)
	for _, tx := range txs {
		if err := CheckTransactionSanity(tx.MsgTx()); err != nil {
			return err
		}
		txValItems = append(txValItems, txValidateItems(tx, hashCache)...)
	}

	// Validate all of the inputs.
	validator := newTxValidator(prevOuts, sigCache)
	err := validator.Validate(txValItems)

	// The midstates are only useful while the transactions are being
	// validated.
	if hashCache != nil {
		for _, tx := range txs {
			hashCache.PurgeSigHashes(tx.Hash())
		}
	}

	if err != nil {
		return err
	}
	log.Debugf("Validated %d inputs across %d transactions", numInputs,
		len(txs))
	return nil
}
