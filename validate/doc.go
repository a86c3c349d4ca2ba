// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package validate decides whether the inputs of a transaction are authorized
to spend the outputs they reference.

VerifyInput runs the scripts of a single input and VerifyTx checks every
input along with the fee.  ValidateTransactionScripts and
ValidateTransactions spread the inputs of one or many transactions across a
pool of goroutines.

Spent outputs are resolved through a txscript.PrevOutputFetcher.  The
prevout package provides fetchers backed by a local store and remote
services, and its Prefetch helper resolves every output up front so
verification performs no I/O.

Failures that prevent an input from being evaluated are returned as a
RuleError.  A script that runs to completion with a false result is not an
error.
*/
package validate
