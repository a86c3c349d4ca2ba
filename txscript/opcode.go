// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcverify/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

// An opcode defines the information related to a txscript opcode.  opfunc is
// the function to call to perform the opcode on the engine.  Data pushes never
// reach the table, so the data argument is always nil for the handlers below.
type opcode struct {
	value  byte
	name   string
	opfunc func(*opcode, []byte, *Engine) error
}

// These constants are the values of the official opcodes used on the btc wiki,
// in bitcoin core and in most if not all other references and software related
// to handling BTC scripts.  Only the opcodes the engine can execute are
// named; every other byte parses as an unknown command.
const (
	OP_0              = 0x00 // 0
	OP_FALSE          = 0x00 // 0 - AKA OP_0
	OP_DATA_1         = 0x01 // 1
	OP_DATA_20        = 0x14 // 20
	OP_DATA_32        = 0x20 // 32
	OP_DATA_33        = 0x21 // 33
	OP_DATA_65        = 0x41 // 65
	OP_DATA_75        = 0x4b // 75
	OP_PUSHDATA1      = 0x4c // 76
	OP_PUSHDATA2      = 0x4d // 77
	OP_1              = 0x51 // 81 - AKA OP_TRUE
	OP_TRUE           = 0x51 // 81
	OP_2              = 0x52 // 82
	OP_3              = 0x53 // 83
	OP_4              = 0x54 // 84
	OP_5              = 0x55 // 85
	OP_6              = 0x56 // 86
	OP_7              = 0x57 // 87
	OP_8              = 0x58 // 88
	OP_9              = 0x59 // 89
	OP_10             = 0x5a // 90
	OP_11             = 0x5b // 91
	OP_12             = 0x5c // 92
	OP_13             = 0x5d // 93
	OP_14             = 0x5e // 94
	OP_15             = 0x5f // 95
	OP_16             = 0x60 // 96
	OP_VERIFY         = 0x69 // 105
	OP_DUP            = 0x76 // 118
	OP_EQUAL          = 0x87 // 135
	OP_EQUALVERIFY    = 0x88 // 136
	OP_ADD            = 0x93 // 147
	OP_HASH160        = 0xa9 // 169
	OP_CODESEPARATOR  = 0xab // 171
	OP_CHECKSIG       = 0xac // 172
	OP_CHECKSIGVERIFY = 0xad // 173
	OP_CHECKMULTISIG  = 0xae // 174
)

const (
	// MaxScriptElementSize is the maximum number of bytes a single data
	// push may carry.
	MaxScriptElementSize = 520

	// MaxPubKeysPerMultiSig is the maximum number of public keys allowed in
	// a multi-signature transaction output script for it to be considered
	// valid.
	MaxPubKeysPerMultiSig = 20
)

// opcodeArray holds details about every opcode the engine can execute,
// indexed by byte value.  Bytes with an empty name are unknown.
var opcodeArray = [256]opcode{
	OP_0: {OP_0, "OP_0", opcodeN},

	OP_1:  {OP_1, "OP_1", opcodeN},
	OP_2:  {OP_2, "OP_2", opcodeN},
	OP_3:  {OP_3, "OP_3", opcodeN},
	OP_4:  {OP_4, "OP_4", opcodeN},
	OP_5:  {OP_5, "OP_5", opcodeN},
	OP_6:  {OP_6, "OP_6", opcodeN},
	OP_7:  {OP_7, "OP_7", opcodeN},
	OP_8:  {OP_8, "OP_8", opcodeN},
	OP_9:  {OP_9, "OP_9", opcodeN},
	OP_10: {OP_10, "OP_10", opcodeN},
	OP_11: {OP_11, "OP_11", opcodeN},
	OP_12: {OP_12, "OP_12", opcodeN},
	OP_13: {OP_13, "OP_13", opcodeN},
	OP_14: {OP_14, "OP_14", opcodeN},
	OP_15: {OP_15, "OP_15", opcodeN},
	OP_16: {OP_16, "OP_16", opcodeN},

	OP_VERIFY:         {OP_VERIFY, "OP_VERIFY", opcodeVerify},
	OP_DUP:            {OP_DUP, "OP_DUP", opcodeDup},
	OP_EQUAL:          {OP_EQUAL, "OP_EQUAL", opcodeEqual},
	OP_EQUALVERIFY:    {OP_EQUALVERIFY, "OP_EQUALVERIFY", opcodeEqualVerify},
	OP_ADD:            {OP_ADD, "OP_ADD", opcodeAdd},
	OP_HASH160:        {OP_HASH160, "OP_HASH160", opcodeHash160},
	OP_CODESEPARATOR:  {OP_CODESEPARATOR, "OP_CODESEPARATOR", opcodeCodeSeparator},
	OP_CHECKSIG:       {OP_CHECKSIG, "OP_CHECKSIG", opcodeCheckSig},
	OP_CHECKSIGVERIFY: {OP_CHECKSIGVERIFY, "OP_CHECKSIGVERIFY", opcodeCheckSigVerify},
	OP_CHECKMULTISIG:  {OP_CHECKMULTISIG, "OP_CHECKMULTISIG", opcodeCheckMultiSig},
}

// OpcodeByName is a map that can be used to lookup an opcode by its
// human-readable name (OP_CHECKMULTISIG, OP_CHECKSIG, etc).
var OpcodeByName = make(map[string]byte)

func init() {
	// Initialize the opcode name to value map using the contents of the
	// opcode array.  Also add entries for "OP_FALSE" and "OP_TRUE" since they
	// are aliases for "OP_0" and "OP_1", respectively.
	for _, op := range opcodeArray {
		if op.name != "" {
			OpcodeByName[op.name] = op.value
		}
	}
	OpcodeByName["OP_FALSE"] = OP_FALSE
	OpcodeByName["OP_TRUE"] = OP_TRUE
}

// isKnownOpcode returns whether the byte names an executable opcode.  It is
// kept independent of opcodeArray so the parser can be reached from opcode
// handlers without an initialization cycle.
func isKnownOpcode(b byte) bool {
	if b == OP_0 || (b >= OP_1 && b <= OP_16) {
		return true
	}
	switch b {
	case OP_VERIFY, OP_DUP, OP_EQUAL, OP_EQUALVERIFY, OP_ADD, OP_HASH160,
		OP_CODESEPARATOR, OP_CHECKSIG, OP_CHECKSIGVERIFY, OP_CHECKMULTISIG:
		return true
	}
	return false
}

// *******************************************
// Opcode implementation functions start here.
// *******************************************

// opcodeN is a common handler for the small integer data push opcodes.  It
// pushes the numeric value the opcode represents (which will be from 0 to 16)
// onto the data stack.  OP_0 pushes the empty vector, the canonical encoding
// of zero.
func opcodeN(op *opcode, data []byte, vm *Engine) error {
	// The opcodes are all defined consecutively, so the numeric value is
	// the difference.
	if op.value == OP_0 {
		vm.dstack.PushInt(0)
		return nil
	}
	vm.dstack.PushInt(scriptNum(op.value - (OP_1 - 1)))
	return nil
}

// opcodeVerify examines the top item on the data stack as a script number.
// When it is zero, execution halts with ErrVerify.
//
// Stack transformation: [... x1] -> [...]
func opcodeVerify(op *opcode, data []byte, vm *Engine) error {
	n, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if n == 0 {
		str := "OP_VERIFY failed"
		return scriptError(ErrVerify, str)
	}
	return nil
}

// opcodeDup duplicates the top item on the data stack.
//
// Stack transformation: [... x1 x2] -> [... x1 x2 x2]
func opcodeDup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupTop()
}

// opcodeEqual removes the top 2 items of the data stack, compares them as raw
// bytes, and pushes the result, encoded as a boolean, back to the stack.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeEqual(op *opcode, data []byte, vm *Engine) error {
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	vm.dstack.PushBool(bytes.Equal(a, b))
	return nil
}

// opcodeEqualVerify is a combination of opcodeEqual and opcodeVerify.
// Specifically, it removes the top 2 items of the data stack, compares them,
// and halts with ErrEqualVerify when they differ.
//
// Stack transformation: [... x1 x2] -> [...]
func opcodeEqualVerify(op *opcode, data []byte, vm *Engine) error {
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	if !bytes.Equal(a, b) {
		str := fmt.Sprintf("OP_EQUALVERIFY failed: %x != %x", b, a)
		return scriptError(ErrEqualVerify, str)
	}
	return nil
}

// opcodeAdd treats the top two items on the data stack as integers and replaces
// them with their sum.
//
// Stack transformation: [... x1 x2] -> [... x1+x2]
func opcodeAdd(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	sum, err := v0.add(v1)
	if err != nil {
		return err
	}
	vm.dstack.PushInt(sum)
	return nil
}

// calcHash160 returns RIPEMD160(SHA256(buf)).
func calcHash160(buf []byte) []byte {
	sha := sha256.Sum256(buf)
	hasher := ripemd160.New()
	hasher.Write(sha[:])
	return hasher.Sum(nil)
}

// opcodeHash160 treats the top item of the data stack as raw bytes and
// replaces it with ripemd160(sha256(data)).
//
// Stack transformation: [... x1] -> [... ripemd160(sha256(x1))]
func opcodeHash160(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	vm.dstack.PushByteArray(calcHash160(buf))
	return nil
}

// opcodeCodeSeparator records that a code separator was executed.  Witness
// signature hashes computed afterwards only commit to the script following
// the most recently executed separator.
//
// This opcode does not change the contents of the data stack.
func opcodeCodeSeparator(op *opcode, data []byte, vm *Engine) error {
	vm.numCodeSeps++
	return nil
}

// opcodeCheckSig treats the top 2 items on the stack as a public key and a
// signature and replaces them with a bool which indicates if the signature was
// successfully verified.
//
// The signature is a DER encoding optionally followed by a single byte that
// selects the signature hash type.  When that byte is absent SigHashAll is
// assumed.  The digest the signature must commit to is requested from the
// engine's signature hasher.
//
// Stack transformation: [... signature pubkey] -> [... bool]
func opcodeCheckSig(op *opcode, data []byte, vm *Engine) error {
	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	fullSigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	sig, hashType, err := parseSignature(fullSigBytes)
	if err != nil {
		return err
	}
	pubKey, err := parsePubKey(pkBytes)
	if err != nil {
		return err
	}

	hash, err := vm.sigHash(hashType)
	if err != nil {
		return err
	}

	valid := vm.verifySignature(hash, sig, fullSigBytes, pubKey, pkBytes)
	vm.dstack.PushBool(valid)
	return nil
}

// opcodeCheckSigVerify is a combination of opcodeCheckSig and opcodeVerify.
// The opcodeCheckSig function is invoked followed by opcodeVerify.  See the
// documentation for each of those opcodes for more details.
//
// Stack transformation: signature pubkey] -> [...]
func opcodeCheckSigVerify(op *opcode, data []byte, vm *Engine) error {
	err := opcodeCheckSig(op, data, vm)
	if err != nil {
		return err
	}

	valid, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !valid {
		str := "OP_CHECKSIGVERIFY failed"
		return scriptError(ErrCheckSigVerify, str)
	}
	return nil
}

// parsedSigInfo houses a raw signature along with its parsed form and the
// hash type it commits to.
type parsedSigInfo struct {
	raw      []byte
	sig      *ecdsa.Signature
	hashType SigHashType
}

// opcodeCheckMultiSig treats the top item on the stack as an integer number of
// public keys, followed by that many entries as raw data representing the public
// keys, followed by the integer number of signatures, followed by that many
// entries as raw data representing the signatures.
//
// Due to a bug in the original Satoshi client implementation, an additional
// dummy argument is also required by the consensus rules, although it is not
// used.  The dummy value is popped unconditionally and never inspected.
//
// All signatures must carry the same hash type so a single digest serves them
// all.  Every signature must verify against some public key, and each public
// key may satisfy at most one signature.
//
// Stack transformation:
// [... dummy [sig ...] numsigs [pubkey ...] numpubkeys] -> [... bool]
func opcodeCheckMultiSig(op *opcode, data []byte, vm *Engine) error {
	numKeys, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	numPubKeys := int(numKeys.Int32())
	if numPubKeys < 0 {
		str := fmt.Sprintf("number of pubkeys %d is negative",
			numPubKeys)
		return scriptError(ErrInvalidPubKeyCount, str)
	}
	if numPubKeys > MaxPubKeysPerMultiSig {
		str := fmt.Sprintf("too many pubkeys: %d > %d",
			numPubKeys, MaxPubKeysPerMultiSig)
		return scriptError(ErrTooManyPublicKeys, str)
	}

	// Public keys are popped closest to the top first.
	pubKeys := make([][]byte, 0, numPubKeys)
	for i := 0; i < numPubKeys; i++ {
		pubKey, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pubKey)
	}

	numSigs, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	numSignatures := int(numSigs.Int32())
	if numSignatures < 0 {
		str := fmt.Sprintf("number of signatures %d is negative",
			numSignatures)
		return scriptError(ErrInvalidSignatureCount, str)
	}

	rawSigs := make([][]byte, 0, numSignatures)
	for i := 0; i < numSignatures; i++ {
		rawSig, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		rawSigs = append(rawSigs, rawSig)
	}

	// A bug in the original Satoshi client implementation means one more
	// stack value than should be used must be popped.
	if _, err := vm.dstack.PopByteArray(); err != nil {
		return err
	}

	// Signatures were pushed in order, so reverse to visit them in the
	// order they appear in the script.
	signatures := make([]*parsedSigInfo, 0, numSignatures)
	for i := len(rawSigs) - 1; i >= 0; i-- {
		sig, hashType, err := parseSignature(rawSigs[i])
		if err != nil {
			return err
		}
		if len(signatures) > 0 && signatures[0].hashType != hashType {
			str := fmt.Sprintf("signature hash type %v differs from %v",
				hashType, signatures[0].hashType)
			return scriptError(ErrSigHashMismatch, str)
		}
		signatures = append(signatures, &parsedSigInfo{
			raw:      rawSigs[i],
			sig:      sig,
			hashType: hashType,
		})
	}

	parsedKeys := make([]*ecdsa.PublicKey, len(pubKeys))
	for i := range pubKeys {
		parsedKeys[i], err = parsePubKey(pubKeys[len(pubKeys)-1-i])
		if err != nil {
			return err
		}
	}
	rawKeys := make([][]byte, len(pubKeys))
	for i := range pubKeys {
		rawKeys[i] = pubKeys[len(pubKeys)-1-i]
	}

	// Nothing to check, the empty set of signatures is satisfied.
	if len(signatures) == 0 {
		vm.dstack.PushBool(true)
		return nil
	}

	hash, err := vm.sigHash(signatures[0].hashType)
	if err != nil {
		return err
	}

	used := make([]bool, len(parsedKeys))
	success := true
	for _, sigInfo := range signatures {
		matched := false
		for i, pubKey := range parsedKeys {
			if used[i] {
				continue
			}
			if vm.verifySignature(hash, sigInfo.sig, sigInfo.raw,
				pubKey, rawKeys[i]) {

				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			success = false
			break
		}
	}

	vm.dstack.PushBool(success)
	return nil
}

// parseSignature splits a script signature into its DER body and hash type.
// A signature consisting solely of the DER encoding implies SigHashAll.
func parseSignature(fullSig []byte) (*ecdsa.Signature, SigHashType, error) {
	sig, sigLen, err := ecdsa.ParseDERSignaturePrefix(fullSig)
	if err != nil {
		return nil, 0, wrapError(ErrInvalidSignature,
			"invalid signature encoding", err)
	}

	switch len(fullSig) - sigLen {
	case 0:
		return sig, SigHashAll, nil
	case 1:
		hashType, err := parseSigHashType(fullSig[sigLen])
		if err != nil {
			return nil, 0, err
		}
		return sig, hashType, nil
	default:
		str := fmt.Sprintf("signature has %d unexpected trailing bytes",
			len(fullSig)-sigLen)
		return nil, 0, scriptError(ErrInvalidSignature, str)
	}
}

// parsePubKey parses a SEC encoded public key, mapping failures to
// ErrInvalidPubKey.
func parsePubKey(pkBytes []byte) (*ecdsa.PublicKey, error) {
	pubKey, err := ecdsa.ParsePubKey(pkBytes)
	if err != nil {
		return nil, wrapError(ErrInvalidPubKey,
			"invalid public key encoding", err)
	}
	return pubKey, nil
}
