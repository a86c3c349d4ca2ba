// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/txscript"
)

// CalcFee returns the amount tx leaves to miners: the total of the outputs
// its inputs spend minus the total of its own outputs.  The result is
// negative when the transaction spends more than it has.
//
// Every spent output is resolved through prevOuts.  Coinbase inputs are
// rejected with ErrCoinbaseInput, and any input or output amount outside the
// range a transaction may carry is rejected with ErrBadTxOutValue.
func CalcFee(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher) (btcutil.Amount, error) {
	var totalSatoshiIn int64
	for idx := range tx.TxIn {
		prevOut, err := fetchInputPrevOut(tx, idx, prevOuts)
		if err != nil {
			return 0, err
		}

		// Ensure the transaction amounts are in range.  Each of the
		// output values of the input transactions must not be negative
		// or more than the max allowed per transaction.
		originTxSatoshi := prevOut.Value
		if originTxSatoshi < 0 {
			str := fmt.Sprintf("transaction output %v has negative "+
				"value of %v", tx.TxIn[idx].PreviousOutPoint,
				originTxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
		if originTxSatoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("transaction output %v value of %v is "+
				"higher than max allowed value of %v",
				tx.TxIn[idx].PreviousOutPoint, originTxSatoshi,
				btcutil.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}

		// The total of all outputs must not be more than the max
		// allowed per transaction.
		totalSatoshiIn += originTxSatoshi
		if totalSatoshiIn > btcutil.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"inputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshiIn,
				btcutil.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
	}

	var totalSatoshiOut int64
	for i, txOut := range tx.TxOut {
		if txOut.Value < 0 || txOut.Value > btcutil.MaxSatoshi {
			str := fmt.Sprintf("transaction output %d value of %v is "+
				"outside the allowed range [0, %v]", i, txOut.Value,
				btcutil.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
		totalSatoshiOut += txOut.Value
		if totalSatoshiOut > btcutil.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"outputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshiOut,
				btcutil.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
	}

	return btcutil.Amount(totalSatoshiIn - totalSatoshiOut), nil
}
