// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
	"github.com/btcsuite/btcverify/validate"
)

// inputReport is the outcome of verifying one input.
type inputReport struct {
	outPoint wire.OutPoint
	class    txscript.ScriptClass
	amount   btcutil.Amount
	known    bool
	valid    bool
	err      error
}

// txReport is the outcome of verifying a transaction.
type txReport struct {
	txHash  chainhash.Hash
	vsize   int64
	inputs  []inputReport
	fee     btcutil.Amount
	feeErr  error
	valid   bool
	err     error
	outputs int
}

// txVirtualSize returns the BIP0141 virtual size of tx.
func txVirtualSize(tx *wire.MsgTx) int64 {
	weight := int64(tx.SerializeSizeStripped()*3 + tx.SerializeSize())
	return (weight + 3) / 4
}

// isRuleError reports whether err is a validate.RuleError with code c.
func isRuleError(err error, c validate.ErrorCode) bool {
	var rerr validate.RuleError
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}

// verifyTx verifies tx against prevOuts and reports on every input.  With
// parallel set the verdict comes from the concurrent validator, which stops
// at the first failing input.
func verifyTx(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher,
	sigCache *txscript.SigCache, parallel bool) *txReport {

	report := &txReport{
		txHash:  tx.TxHash(),
		vsize:   txVirtualSize(tx),
		outputs: len(tx.TxOut),
	}

	for idx, txIn := range tx.TxIn {
		in := inputReport{outPoint: txIn.PreviousOutPoint}
		if prevOut, err := prevOuts.FetchPrevOutput(txIn.PreviousOutPoint); err == nil {
			in.known = true
			in.amount = btcutil.Amount(prevOut.Value)
			in.class = txscript.GetScriptClass(prevOut.PkScript)
		}
		in.valid, in.err = validate.VerifyInput(tx, idx, prevOuts, sigCache)
		report.inputs = append(report.inputs, in)
	}

	report.fee, report.feeErr = validate.CalcFee(tx, prevOuts)

	if !parallel {
		report.valid, report.err = validate.VerifyTx(tx, prevOuts, sigCache)
		return report
	}

	err := validate.ValidateTransactionScripts(btcutil.NewTx(tx), prevOuts,
		sigCache)
	switch {
	case isRuleError(err, validate.ErrScriptValidation):
		// A script that ran to a negative outcome is a verdict, not a
		// failure to verify.
		report.valid = false
	case err != nil:
		report.err = err
	case report.feeErr != nil:
		report.err = report.feeErr
	case report.fee < 0:
		report.err = fmt.Errorf("outputs exceed inputs by %v", -report.fee)
	default:
		report.valid = true
	}
	return report
}

// write prints the report in a human readable form.
func (r *txReport) write(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("Transaction %v (%d inputs, %d outputs, %d vbytes)\n",
		r.txHash, len(r.inputs), r.outputs, r.vsize)
	for idx, in := range r.inputs {
		ew.printf("  input %d spends %v: ", idx, in.outPoint)
		if in.known {
			ew.printf("%v, %v, ", in.class, in.amount)
		}
		switch {
		case in.err != nil:
			ew.printf("error: %v\n", in.err)
		case in.valid:
			ew.printf("valid\n")
		default:
			ew.printf("invalid\n")
		}
	}

	if r.feeErr != nil {
		ew.printf("Fee: unknown (%v)\n", r.feeErr)
	} else {
		ew.printf("Fee: %v (%.2f sat/vB)\n", r.fee,
			float64(r.fee)/float64(r.vsize))
	}

	switch {
	case r.err != nil:
		ew.printf("Result: invalid (%v)\n", r.err)
	case r.valid:
		ew.printf("Result: valid\n")
	default:
		ew.printf("Result: invalid\n")
	}
	return ew.err
}

// errWriter remembers the first write error so a run of prints needs one
// check.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}
