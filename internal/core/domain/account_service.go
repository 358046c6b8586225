package domain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// DeriveSigningScriptOpts is the struct given to the DeriveSigningScript
// method
type DeriveSigningScriptOpts struct {
	Account     *Account
	Bin         *AccountBin
	Keychains   []*Keychain
	ScriptIndex uint32
	Network     *chaincfg.Params
}

func (o DeriveSigningScriptOpts) validate() error {
	if o.Account == nil {
		return ErrAccountNotFound
	}
	if o.Bin == nil {
		return ErrAccountBinNotFound
	}
	if len(o.Keychains) <= 0 {
		return ErrInvalidMultisig
	}
	if o.Network == nil {
		return wallet.ErrNullNetwork
	}
	return nil
}

// DeriveSigningScript derives the signing script of a bin at the provided
// index: one child pubkey per keychain at path [bin.Index, index], sorted
// canonically, rendered as P2PKH for single-keychain accounts and as an
// m-of-n multisig P2SH pair otherwise. The returned keys record the
// contribution of every keychain.
func DeriveSigningScript(opts DeriveSigningScriptOpts) (*SigningScript, []*Key, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	branch := wallet.DerivationPath{opts.Bin.Index}
	pubKeys := make([][]byte, 0, len(opts.Keychains))
	keys := make([]*Key, 0, len(opts.Keychains))
	for _, keychain := range opts.Keychains {
		pubKey, err := keychain.GetSigningPublicKey(opts.ScriptIndex, branch)
		if err != nil {
			return nil, nil, err
		}
		pubKeys = append(pubKeys, pubKey)
		keys = append(keys, &Key{
			KeychainID:     keychain.ID,
			AccountID:      opts.Account.ID,
			DerivationPath: branch,
			Index:          opts.ScriptIndex,
			PubKey:         pubKey,
			IsPrivate:      keychain.IsPrivate(),
		})
	}

	minSigs := opts.Bin.MinSigs
	var pair *wallet.SigningScriptPair
	var err error
	if len(pubKeys) == 1 {
		minSigs = 1
		pair, err = wallet.P2PKHScriptPair(wallet.P2PKHScriptPairOpts{
			PubKey:  pubKeys[0],
			Network: opts.Network,
		})
	} else {
		pair, err = wallet.MultisigScriptPair(wallet.MultisigScriptPairOpts{
			PubKeys: pubKeys,
			MinSigs: int(minSigs),
			Network: opts.Network,
		})
	}
	if err != nil {
		return nil, nil, err
	}

	script := &SigningScript{
		AccountID:    opts.Account.ID,
		AccountBinID: opts.Bin.ID,
		Index:        opts.ScriptIndex,
		Status:       opts.Bin.PoolStatus(),
		TxInScript:   pair.TxInScript,
		TxOutScript:  pair.TxOutScript,
		RedeemScript: pair.RedeemScript,
		MinSigs:      minSigs,
		PubKeys:      wallet.SortPubKeys(pubKeys),
	}
	return script, keys, nil
}

// MarkUsed advances a pool or issued script to used when matched by a
// transaction output. Returns whether the status changed.
func (s *SigningScript) MarkUsed() bool {
	switch s.Status {
	case ScriptStatusUnused, ScriptStatusChange, ScriptStatusIssued:
		s.Status = ScriptStatusUsed
		return true
	}
	return false
}

// Issue hands the script out: change-bin scripts keep the change status,
// every other bin marks it issued.
func (s *SigningScript) Issue(label string, isChange bool) {
	s.Label = label
	if isChange {
		s.Status = ScriptStatusChange
		return
	}
	s.Status = ScriptStatusIssued
}
