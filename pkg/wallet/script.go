package wallet

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// SigningScriptPair holds the two script forms derived at a (bin, index)
// position: the template signature script with one empty placeholder per
// required signature, and the output script funds get locked to. For
// multisig pairs RedeemScript carries the raw m-of-n script the placeholders
// are followed by.
type SigningScriptPair struct {
	TxInScript   []byte
	TxOutScript  []byte
	RedeemScript []byte
}

// SortPubKeys sorts compressed public keys in ascending lexicographical
// order over their raw bytes, the canonical ordering for multisig scripts.
func SortPubKeys(pubKeys [][]byte) [][]byte {
	sorted := make([][]byte, len(pubKeys))
	copy(sorted, pubKeys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// P2PKHScriptPairOpts is the struct given to the P2PKHScriptPair method
type P2PKHScriptPairOpts struct {
	PubKey  []byte
	Network *chaincfg.Params
}

func (o P2PKHScriptPairOpts) validate() error {
	if len(o.PubKey) <= 0 {
		return ErrNullPubKey
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// P2PKHScriptPair builds the signing script pair of a single-signature
// position: a pay-to-pubkey-hash output script and a <sig placeholder>
// <pubkey> signature script template.
func P2PKHScriptPair(opts P2PKHScriptPairOpts) (*SigningScriptPair, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(opts.PubKey), opts.Network,
	)
	if err != nil {
		return nil, err
	}
	txOutScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	txInScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(opts.PubKey).
		Script()
	if err != nil {
		return nil, err
	}

	return &SigningScriptPair{
		TxInScript:  txInScript,
		TxOutScript: txOutScript,
	}, nil
}

// MultisigScriptPairOpts is the struct given to the MultisigScriptPair method
type MultisigScriptPairOpts struct {
	PubKeys [][]byte
	MinSigs int
	Network *chaincfg.Params
}

func (o MultisigScriptPairOpts) validate() error {
	if len(o.PubKeys) <= 0 {
		return ErrNullPubKey
	}
	if len(o.PubKeys) > 15 {
		return ErrTooManyPubKeys
	}
	if o.MinSigs < 1 || o.MinSigs > len(o.PubKeys) {
		return ErrInvalidMinSigs
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// MultisigScriptPair builds the signing script pair of an m-of-n position:
// the redeem script over the canonically sorted pubkeys, a P2SH output
// script committing to it, and a signature script template with m empty
// placeholders followed by the redeem script.
func MultisigScriptPair(opts MultisigScriptPairOpts) (*SigningScriptPair, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sorted := SortPubKeys(opts.PubKeys)
	addrPubKeys := make([]*btcutil.AddressPubKey, 0, len(sorted))
	for _, pubKey := range sorted {
		addr, err := btcutil.NewAddressPubKey(pubKey, opts.Network)
		if err != nil {
			return nil, err
		}
		addrPubKeys = append(addrPubKeys, addr)
	}

	redeemScript, err := txscript.MultiSigScript(addrPubKeys, opts.MinSigs)
	if err != nil {
		return nil, err
	}

	scriptAddr, err := btcutil.NewAddressScriptHash(redeemScript, opts.Network)
	if err != nil {
		return nil, err
	}
	txOutScript, err := txscript.PayToAddrScript(scriptAddr)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	for i := 0; i < opts.MinSigs; i++ {
		builder.AddOp(txscript.OP_0)
	}
	builder.AddData(redeemScript)
	txInScript, err := builder.Script()
	if err != nil {
		return nil, err
	}

	return &SigningScriptPair{
		TxInScript:   txInScript,
		TxOutScript:  txOutScript,
		RedeemScript: redeemScript,
	}, nil
}

// ScriptAddressOpts is the struct given to the ScriptAddress method
type ScriptAddressOpts struct {
	TxOutScript []byte
	Network     *chaincfg.Params
}

func (o ScriptAddressOpts) validate() error {
	if len(o.TxOutScript) <= 0 {
		return ErrNullScript
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// ScriptAddress renders the base58check address of an output script, using
// the network's P2PKH or P2SH version byte depending on the script class.
func ScriptAddress(opts ScriptAddressOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		opts.TxOutScript, opts.Network,
	)
	if err != nil {
		return "", err
	}
	if len(addrs) != 1 {
		return "", ErrNullScript
	}
	return addrs[0].EncodeAddress(), nil
}

// ScriptPushes splits a push-only signature script into its data pushes,
// rendering OP_0 placeholders as zero-length elements. Scripts carrying any
// other opcode are rejected.
func ScriptPushes(script []byte) ([][]byte, error) {
	pushes := make([][]byte, 0)
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if tokenizer.Opcode() == txscript.OP_0 {
			pushes = append(pushes, []byte{})
			continue
		}
		data := tokenizer.Data()
		if data == nil {
			return nil, ErrNullScript
		}
		pushes = append(pushes, data)
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return pushes, nil
}

// AssembleSigScript rebuilds a signature script from data pushes, mapping
// zero-length elements back to OP_0 placeholders.
func AssembleSigScript(pushes [][]byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	for _, push := range pushes {
		if len(push) <= 0 {
			builder.AddOp(txscript.OP_0)
			continue
		}
		builder.AddData(push)
	}
	return builder.Script()
}
