// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/prevout"
	"github.com/btcsuite/btcverify/txscript"
)

// parseOutPoint parses an outpoint in the txid:index form.
func parseOutPoint(s string) (wire.OutPoint, error) {
	txid, index, ok := strings.Cut(s, ":")
	if !ok {
		return wire.OutPoint{}, fmt.Errorf("outpoint %q is not in "+
			"txid:index form", s)
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	idx, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	return *wire.NewOutPoint(hash, uint32(idx)), nil
}

// parsePrevOutLine parses one 'txid:index amount pkscripthex' line.  The
// amount is in satoshi.
func parsePrevOutLine(line string) (wire.OutPoint, *wire.TxOut, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return wire.OutPoint{}, nil, fmt.Errorf("expected 3 fields, "+
			"got %d", len(fields))
	}
	op, err := parseOutPoint(fields[0])
	if err != nil {
		return wire.OutPoint{}, nil, err
	}
	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return wire.OutPoint{}, nil, fmt.Errorf("amount %q: %w",
			fields[1], err)
	}
	if amount < 0 || amount > btcutil.MaxSatoshi {
		return wire.OutPoint{}, nil, fmt.Errorf("amount %d is out of "+
			"range", amount)
	}
	pkScript, err := hex.DecodeString(fields[2])
	if err != nil {
		return wire.OutPoint{}, nil, fmt.Errorf("pkscript: %w", err)
	}
	return op, wire.NewTxOut(amount, pkScript), nil
}

// readPrevOuts parses a prevout listing.  Everything after a # is a comment
// and blank lines are skipped.
func readPrevOuts(r io.Reader) (map[wire.OutPoint]*wire.TxOut, error) {
	txOuts := make(map[wire.OutPoint]*wire.TxOut)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), wire.MaxMessagePayload)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		op, txOut, err := parsePrevOutLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		txOuts[op] = txOut
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return txOuts, nil
}

// importPrevOuts adds the outputs listed in the file at path to store and
// returns how many there were.
func importPrevOuts(store *prevout.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	txOuts, err := readPrevOuts(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := store.PutTxOuts(txOuts); err != nil {
		return 0, err
	}
	return len(txOuts), nil
}

// listPrevOuts writes every stored output to w in the import format,
// followed by a disassembly of its script as a comment.
func listPrevOuts(store *prevout.Store, w io.Writer) error {
	return store.ForEach(func(op wire.OutPoint, txOut *wire.TxOut) error {
		// Unparsable scripts still disassemble up to the failure.
		disasm, _ := txscript.DisasmString(txOut.PkScript)
		_, err := fmt.Fprintf(w, "%v %d %x # %s\n", op, txOut.Value,
			txOut.PkScript, disasm)
		return err
	})
}
