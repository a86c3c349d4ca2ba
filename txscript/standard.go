// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcverify/ecdsa"
)

// ScriptClass is an enumeration for the list of standard types of script.
type ScriptClass byte

// Classes of script payment known about in the blockchain.
const (
	NonStandardTy         ScriptClass = iota // None of the recognized forms.
	PubKeyTy                                 // Pay pubkey.
	PubKeyHashTy                             // Pay pubkey hash.
	WitnessV0PubKeyHashTy                    // Pay witness pubkey hash.
	ScriptHashTy                             // Pay to script hash.
	WitnessV0ScriptHashTy                    // Pay to witness script hash.
	MultiSigTy                               // Multi signature.
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy:         "nonstandard",
	PubKeyTy:              "pubkey",
	PubKeyHashTy:          "pubkeyhash",
	WitnessV0PubKeyHashTy: "witness_v0_keyhash",
	ScriptHashTy:          "scripthash",
	WitnessV0ScriptHashTy: "witness_v0_scripthash",
	MultiSigTy:            "multisig",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// isPubKeyLen returns whether the length matches a SEC encoded public key.
func isPubKeyLen(n int) bool {
	return n == ecdsa.PubKeyBytesLenCompressed ||
		n == ecdsa.PubKeyBytesLenUncompressed
}

// isPubKeyScript returns whether the script is of the form
// <pubkey> OP_CHECKSIG.
func isPubKeyScript(script Script) bool {
	return len(script) == 2 &&
		script[0].IsData() && isPubKeyLen(len(script[0].Data)) &&
		script[1].IsOpcode(OP_CHECKSIG)
}

// isPubKeyHashScript returns whether the script is of the form
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func isPubKeyHashScript(script Script) bool {
	return len(script) == 5 &&
		script[0].IsOpcode(OP_DUP) &&
		script[1].IsOpcode(OP_HASH160) &&
		script[2].IsData() && len(script[2].Data) == 20 &&
		script[3].IsOpcode(OP_EQUALVERIFY) &&
		script[4].IsOpcode(OP_CHECKSIG)
}

// isScriptHashScript returns whether the script is of the form
// OP_HASH160 <20-byte hash> OP_EQUAL.
func isScriptHashScript(script Script) bool {
	return isScriptHashPattern(script)
}

// isWitnessProgramScript returns whether the script is a version 0 witness
// program of the given length: OP_0 <programLen-byte program>.
func isWitnessProgramScript(script Script, programLen int) bool {
	return len(script) == 2 &&
		script[0].IsOpcode(OP_0) &&
		script[1].IsData() && len(script[1].Data) == programLen
}

// isMultiSigScript returns whether the script is of the form
// OP_m <pubkey>... OP_n OP_CHECKMULTISIG with 1 <= m <= n.
func isMultiSigScript(script Script) bool {
	// The absolute minimum is 1 pubkey:
	// OP_1 <pubkey> OP_1 OP_CHECKMULTISIG
	if len(script) < 4 {
		return false
	}
	numSigs, ok := smallInt(script[0])
	if !ok || numSigs == 0 {
		return false
	}
	numPubKeys, ok := smallInt(script[len(script)-2])
	if !ok || numPubKeys < numSigs {
		return false
	}
	if !script[len(script)-1].IsOpcode(OP_CHECKMULTISIG) {
		return false
	}
	if len(script)-3 != numPubKeys {
		return false
	}
	for _, cmd := range script[1 : len(script)-2] {
		if !cmd.IsData() || !isPubKeyLen(len(cmd.Data)) {
			return false
		}
	}
	return true
}

// smallInt returns the value of an OP_0 through OP_16 command.
func smallInt(cmd Command) (int, bool) {
	if cmd.Kind != OpCommand {
		return 0, false
	}
	switch {
	case cmd.Opcode == OP_0:
		return 0, true
	case cmd.Opcode >= OP_1 && cmd.Opcode <= OP_16:
		return int(cmd.Opcode - (OP_1 - 1)), true
	}
	return 0, false
}

// typeOfScript returns the type of the script being inspected from the known
// standard types.
func typeOfScript(script Script) ScriptClass {
	switch {
	case isPubKeyScript(script):
		return PubKeyTy
	case isPubKeyHashScript(script):
		return PubKeyHashTy
	case isWitnessProgramScript(script, 20):
		return WitnessV0PubKeyHashTy
	case isScriptHashScript(script):
		return ScriptHashTy
	case isWitnessProgramScript(script, 32):
		return WitnessV0ScriptHashTy
	case isMultiSigScript(script):
		return MultiSigTy
	}
	return NonStandardTy
}

// GetScriptClass returns the class of the script passed.
//
// NonStandardTy will be returned when the script does not parse.
func GetScriptClass(pkScript []byte) ScriptClass {
	script, err := ParseRawScript(pkScript)
	if err != nil {
		return NonStandardTy
	}
	return typeOfScript(script)
}

// IsPayToScriptHash returns true if the script is in the standard
// pay-to-script-hash (P2SH) format, false otherwise.
func IsPayToScriptHash(pkScript []byte) bool {
	return GetScriptClass(pkScript) == ScriptHashTy
}

// ExtractWitnessProgram returns the program of a version 0 witness output
// script together with its class.  ok is false for any other script.
func ExtractWitnessProgram(pkScript []byte) (class ScriptClass, program []byte, ok bool) {
	script, err := ParseRawScript(pkScript)
	if err != nil {
		return NonStandardTy, nil, false
	}
	switch {
	case isWitnessProgramScript(script, 20):
		return WitnessV0PubKeyHashTy, script[1].Data, true
	case isWitnessProgramScript(script, 32):
		return WitnessV0ScriptHashTy, script[1].Data, true
	}
	return NonStandardTy, nil, false
}

// Hash160 returns RIPEMD160(SHA256(buf)), the hash committed to by
// pay-to-pubkey-hash and pay-to-script-hash scripts.
func Hash160(buf []byte) []byte {
	return calcHash160(buf)
}

// PayToPubKeyScript creates a new script to pay a transaction output to a
// public key.
func PayToPubKeyScript(serializedPubKey []byte) ([]byte, error) {
	return NewScriptBuilder().AddData(serializedPubKey).
		AddOp(OP_CHECKSIG).RawScript()
}

// PayToPubKeyHashScript creates a new script to pay a transaction output to a
// 20-byte pubkey hash.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		str := fmt.Sprintf("pubkey hash is %d bytes, want 20",
			len(pubKeyHash))
		return nil, scriptError(ErrInternal, str)
	}
	return NewScriptBuilder().AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		RawScript()
}

// PayToScriptHashScript creates a new script to pay a transaction output to
// the hash of the passed redeem script.
func PayToScriptHashScript(redeemScript []byte) ([]byte, error) {
	return NewScriptBuilder().AddOp(OP_HASH160).
		AddData(calcHash160(redeemScript)).AddOp(OP_EQUAL).RawScript()
}

// PayToWitnessPubKeyHashScript creates a new script to pay to a version 0
// pubkey hash witness program.
func PayToWitnessPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		str := fmt.Sprintf("witness pubkey hash is %d bytes, want 20",
			len(pubKeyHash))
		return nil, scriptError(ErrInternal, str)
	}
	return NewScriptBuilder().AddOp(OP_0).AddData(pubKeyHash).RawScript()
}

// PayToWitnessScriptHashScript creates a new script to pay to a version 0
// script hash witness program committing to the passed witness script.
func PayToWitnessScriptHashScript(witnessScript []byte) ([]byte, error) {
	scriptHash := sha256.Sum256(witnessScript)
	return NewScriptBuilder().AddOp(OP_0).AddData(scriptHash[:]).RawScript()
}

// MultiSigScript returns a valid script for a multisignature redemption where
// nrequired of the keys in pubkeys are required to have signed the
// transaction for success.  An Error with the error code
// ErrInvalidSignatureCount will be returned if nrequired is larger than the
// number of keys provided.
func MultiSigScript(pubKeys [][]byte, nrequired int) ([]byte, error) {
	if len(pubKeys) > MaxPubKeysPerMultiSig {
		str := fmt.Sprintf("unable to generate multisig script with %d "+
			"keys, max is %d", len(pubKeys), MaxPubKeysPerMultiSig)
		return nil, scriptError(ErrTooManyPublicKeys, str)
	}
	if nrequired < 0 || len(pubKeys) < nrequired {
		str := fmt.Sprintf("unable to generate multisig script with "+
			"%d required signatures when there are only %d public "+
			"keys available", nrequired, len(pubKeys))
		return nil, scriptError(ErrInvalidSignatureCount, str)
	}

	builder := NewScriptBuilder().AddInt64(int64(nrequired))
	for _, key := range pubKeys {
		builder.AddData(key)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(OP_CHECKMULTISIG)

	return builder.RawScript()
}

// ExtractPkScriptAddrs returns the type of script, addresses and required
// signatures associated with the passed PkScript.  Note that it only works for
// 'standard' transaction script types.  Any data such as public keys which are
// invalid are omitted from the results.
func ExtractPkScriptAddrs(pkScript []byte,
	chainParams *chaincfg.Params) (ScriptClass, []btcutil.Address, int, error) {

	// No valid addresses or required signatures if the script doesn't
	// parse.
	script, err := ParseRawScript(pkScript)
	if err != nil {
		return NonStandardTy, nil, 0, err
	}

	var addrs []btcutil.Address
	var requiredSigs int
	scriptClass := typeOfScript(script)
	switch scriptClass {
	case PubKeyHashTy:
		// A pay-to-pubkey-hash script is of the form:
		//  OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY OP_CHECKSIG
		// Therefore the pubkey hash is the 3rd item on the stack.
		requiredSigs = 1
		addr, err := btcutil.NewAddressPubKeyHash(script[2].Data,
			chainParams)
		if err == nil {
			addrs = append(addrs, addr)
		}

	case WitnessV0PubKeyHashTy:
		requiredSigs = 1
		addr, err := btcutil.NewAddressWitnessPubKeyHash(script[1].Data,
			chainParams)
		if err == nil {
			addrs = append(addrs, addr)
		}

	case PubKeyTy:
		// A pay-to-pubkey script is of the form:
		//  <pubkey> OP_CHECKSIG
		// Skip the pubkey if it's invalid for some reason.
		requiredSigs = 1
		addr, err := btcutil.NewAddressPubKey(script[0].Data, chainParams)
		if err == nil {
			addrs = append(addrs, addr)
		}

	case ScriptHashTy:
		requiredSigs = 1
		addr, err := btcutil.NewAddressScriptHashFromHash(script[1].Data,
			chainParams)
		if err == nil {
			addrs = append(addrs, addr)
		}

	case WitnessV0ScriptHashTy:
		requiredSigs = 1
		addr, err := btcutil.NewAddressWitnessScriptHash(script[1].Data,
			chainParams)
		if err == nil {
			addrs = append(addrs, addr)
		}

	case MultiSigTy:
		// A multi-signature script is of the form:
		//  <numsigs> <pubkey> <pubkey> <pubkey>... <numpubkeys> OP_CHECKMULTISIG
		// Therefore the number of required signatures is the 1st item
		// on the stack and the number of public keys is the 2nd to last
		// item on the stack.
		requiredSigs, _ = smallInt(script[0])
		for _, cmd := range script[1 : len(script)-2] {
			addr, err := btcutil.NewAddressPubKey(cmd.Data, chainParams)
			if err == nil {
				addrs = append(addrs, addr)
			}
		}
	}

	return scriptClass, addrs, requiredSigs, nil
}
