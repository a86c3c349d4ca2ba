// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prevout resolves the outputs spent by transaction inputs from a
// local store and from remote services.
package prevout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/prevout/engine"
	"github.com/btcsuite/btcverify/prevout/engine/badgerdb"
	"github.com/btcsuite/btcverify/prevout/engine/leveldb"
	"github.com/btcsuite/btcverify/prevout/engine/pebbledb"
	"github.com/btcsuite/btcverify/txscript"
)

// Supported database types for OpenStore.
const (
	DbTypeLevelDB = "leveldb"
	DbTypePebble  = "pebble"
	DbTypeBadger  = "badger"
)

// SupportedDbTypes lists the values OpenStore accepts for dbType.
var SupportedDbTypes = []string{DbTypeLevelDB, DbTypePebble, DbTypeBadger}

const (
	// outputKeyPrefix starts the key of every stored output.
	outputKeyPrefix = 'o'

	// outputKeyLen is the prefix, the txid and the little-endian output
	// index.
	outputKeyLen = 1 + chainhash.HashSize + 4
)

// outputKey returns the database key of op.
func outputKey(op wire.OutPoint) []byte {
	key := make([]byte, outputKeyLen)
	key[0] = outputKeyPrefix
	copy(key[1:], op.Hash[:])
	binary.LittleEndian.PutUint32(key[1+chainhash.HashSize:], op.Index)
	return key
}

// decodeOutputKey is the inverse of outputKey.
func decodeOutputKey(key []byte) (wire.OutPoint, error) {
	if len(key) != outputKeyLen || key[0] != outputKeyPrefix {
		return wire.OutPoint{}, fmt.Errorf("malformed output key %x", key)
	}
	var op wire.OutPoint
	copy(op.Hash[:], key[1:1+chainhash.HashSize])
	op.Index = binary.LittleEndian.Uint32(key[1+chainhash.HashSize:])
	return op, nil
}

// encodeTxOut serializes an output the way it appears inside a transaction:
// the 8-byte little-endian value followed by the var-bytes script.
func encodeTxOut(txOut *wire.TxOut) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(txOut.SerializeSize())
	var value [8]byte
	binary.LittleEndian.PutUint64(value[:], uint64(txOut.Value))
	buf.Write(value[:])
	if err := wire.WriteVarBytes(&buf, 0, txOut.PkScript); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeTxOut is the inverse of encodeTxOut.
func decodeTxOut(serialized []byte) (*wire.TxOut, error) {
	if len(serialized) < 8 {
		return nil, fmt.Errorf("serialized output is only %d bytes",
			len(serialized))
	}
	value := int64(binary.LittleEndian.Uint64(serialized[:8]))
	r := bytes.NewReader(serialized[8:])
	pkScript, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload,
		"pkScript")
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("serialized output has %d trailing bytes",
			r.Len())
	}
	return wire.NewTxOut(value, pkScript), nil
}

// Store keeps spent outputs in a local key-value engine.  It implements
// txscript.PrevOutputFetcher and is safe for concurrent use.
type Store struct {
	db engine.Engine
}

// Ensure Store implements the PrevOutputFetcher interface.
var _ txscript.PrevOutputFetcher = (*Store)(nil)

// NewStore returns a Store on top of db.  The store owns db from then on.
func NewStore(db engine.Engine) *Store {
	return &Store{db: db}
}

// OpenStore opens, creating it when needed, the store of type dbType in the
// directory dataDir.  dbType must be one of SupportedDbTypes.
func OpenStore(dbType, dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, dbType)
	_, err := os.Stat(dbPath)
	create := errors.Is(err, os.ErrNotExist)
	if create {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, err
		}
	}

	var db engine.Engine
	switch dbType {
	case DbTypeLevelDB:
		db, err = leveldb.NewDB(dbPath, create)
	case DbTypePebble:
		db, err = pebbledb.NewDB(dbPath, create, 0, 0)
	case DbTypeBadger:
		db, err = badgerdb.NewDB(dbPath, create)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database at %s: %w",
			dbType, dbPath, err)
	}

	log.Infof("Opened %s prevout store at %s", dbType, dbPath)
	return NewStore(db), nil
}

// PutTxOuts stores every passed output under its outpoint in a single
// transaction.
func (s *Store) PutTxOuts(txOuts map[wire.OutPoint]*wire.TxOut) error {
	tx, err := s.db.Transaction()
	if err != nil {
		return err
	}
	defer tx.Discard()

	for op, txOut := range txOuts {
		serialized, err := encodeTxOut(txOut)
		if err != nil {
			return err
		}
		if err := tx.Put(outputKey(op), serialized); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PutTx stores all outputs of msgTx.
func (s *Store) PutTx(msgTx *wire.MsgTx) error {
	txHash := msgTx.TxHash()
	txOuts := make(map[wire.OutPoint]*wire.TxOut, len(msgTx.TxOut))
	for i, txOut := range msgTx.TxOut {
		txOuts[*wire.NewOutPoint(&txHash, uint32(i))] = txOut
	}
	return s.PutTxOuts(txOuts)
}

// FetchPrevOutput returns the output stored for op.  The returned error
// wraps ErrNotFound when the store does not know op.
//
// NOTE: This is a part of the txscript.PrevOutputFetcher interface.
func (s *Store) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	snapshot, err := s.db.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snapshot.Release()

	serialized, err := snapshot.Get(outputKey(op))
	if errors.Is(err, engine.ErrNotFound) {
		return nil, fmt.Errorf("output %v: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	txOut, err := decodeTxOut(serialized)
	if err != nil {
		return nil, fmt.Errorf("corrupt entry for output %v: %w", op, err)
	}
	return txOut, nil
}

// ForEach calls fn for every stored output in key order, which sorts by txid
// bytes and then by output index.  Iteration stops at the first error fn
// returns.
func (s *Store) ForEach(fn func(op wire.OutPoint, txOut *wire.TxOut) error) error {
	snapshot, err := s.db.Snapshot()
	if err != nil {
		return err
	}
	defer snapshot.Release()

	iter := snapshot.NewIterator(engine.BytesPrefix([]byte{outputKeyPrefix}))
	defer iter.Release()

	for iter.Next() {
		op, err := decodeOutputKey(iter.Key())
		if err != nil {
			return err
		}
		txOut, err := decodeTxOut(iter.Value())
		if err != nil {
			return fmt.Errorf("corrupt entry for output %v: %w", op, err)
		}
		if err := fn(op, txOut); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	return s.db.Close()
}
