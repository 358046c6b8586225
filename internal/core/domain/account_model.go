package domain

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
)

// Account groups a set of shared keychains behind a required-signature
// threshold and owns an ordered list of bins issuing signing scripts.
type Account struct {
	ID             uint64 `badgerhold:"key"`
	Name           string `badgerholdUnique:"Name"`
	MinSigs        uint32
	KeychainIDs    []uint64
	UnusedPoolSize uint32
	TimeCreated    int64
	Hash           []byte `badgerholdUnique:"Hash"`
}

// AccountBin is a derivation branch of an account. The bin index acts as the
// branch step of every script derived under it. Bins reconstructed by an
// account import carry their own transient keychain set; bins of locally
// created accounts resolve keychains through the owning account.
type AccountBin struct {
	ID              uint64 `badgerhold:"key"`
	AccountID       uint64 `badgerholdIndex:"AccountID"`
	Index           uint32
	Name            string
	ScriptCount     uint32
	NextScriptIndex uint32
	MinSigs         uint32
	KeychainIDs     []uint64
	Hash            []byte
}

// Key is a single derived public key, kept for every keychain contributing
// to a signing script.
type Key struct {
	ID             uint64 `badgerhold:"key"`
	KeychainID     uint64 `badgerholdIndex:"KeychainID"`
	AccountID      uint64 `badgerholdIndex:"AccountID"`
	DerivationPath []uint32
	Index          uint32
	PubKey         []byte
	IsPrivate      bool
}

// SigningScript is the (txinscript template, txoutscript) pair derived at a
// (bin, index) position, together with the sorted pubkeys its signature
// placeholders accept.
type SigningScript struct {
	ID           uint64 `badgerhold:"key"`
	AccountID    uint64 `badgerholdIndex:"AccountID"`
	AccountBinID uint64 `badgerholdIndex:"AccountBinID"`
	Index        uint32
	Label        string
	Status       ScriptStatus
	TxInScript   []byte
	TxOutScript  []byte `badgerholdIndex:"TxOutScript"`
	RedeemScript []byte
	MinSigs      uint32
	PubKeys      [][]byte
	KeyIDs       []uint64
}

// NewAccountOpts is the struct given to the NewAccount method
type NewAccountOpts struct {
	Name           string
	MinSigs        uint32
	Keychains      []*Keychain
	UnusedPoolSize uint32
	TimeCreated    int64
}

func (o NewAccountOpts) validate() error {
	if len(o.Name) <= 0 {
		return ErrNullAccountName
	}
	if len(o.Keychains) <= 0 || len(o.Keychains) > MaxAccountKeychains ||
		o.MinSigs < 1 || int(o.MinSigs) > len(o.Keychains) {
		return ErrInvalidMultisig
	}
	return nil
}

// NewAccount builds an account over the provided keychains together with its
// two reserved bins. Scripts are derived afterwards by the pool refill.
func NewAccount(opts NewAccountOpts) (*Account, []*AccountBin, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	poolSize := opts.UnusedPoolSize
	if poolSize == 0 {
		poolSize = DefaultUnusedPoolSize
	}

	keychainHashes := make([][]byte, 0, len(opts.Keychains))
	keychainIDs := make([]uint64, 0, len(opts.Keychains))
	for _, keychain := range opts.Keychains {
		keychainHashes = append(keychainHashes, keychain.Hash)
		keychainIDs = append(keychainIDs, keychain.ID)
	}

	account := &Account{
		Name:           opts.Name,
		MinSigs:        opts.MinSigs,
		KeychainIDs:    keychainIDs,
		UnusedPoolSize: poolSize,
		TimeCreated:    opts.TimeCreated,
		Hash:           multisigHash(opts.MinSigs, keychainHashes),
	}

	bins := []*AccountBin{
		newReservedBin(ChangeBinIndex, ChangeBinName, opts.MinSigs, keychainHashes),
		newReservedBin(DefaultBinIndex, DefaultBinName, opts.MinSigs, keychainHashes),
	}
	return account, bins, nil
}

func newReservedBin(
	index uint32, name string, minSigs uint32, keychainHashes [][]byte,
) *AccountBin {
	return &AccountBin{
		Index:   index,
		Name:    name,
		MinSigs: minSigs,
		Hash:    multisigHash(minSigs, keychainHashes),
	}
}

// NewAccountBinOpts is the struct given to the NewAccountBin method
type NewAccountBinOpts struct {
	Account        *Account
	Index          uint32
	Name           string
	KeychainHashes [][]byte
}

func (o NewAccountBinOpts) validate() error {
	if o.Account == nil {
		return ErrAccountNotFound
	}
	if o.Index < FirstCustomBinIndex {
		return ErrAccountBinAlreadyExists
	}
	if len(o.Name) <= 0 {
		return ErrAccountBinNotFound
	}
	return nil
}

// NewAccountBin builds a custom bin of an account at the index given in
// opts, which must be at or above FirstCustomBinIndex. It does not check
// whether the index is already taken.
func NewAccountBin(opts NewAccountBinOpts) (*AccountBin, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &AccountBin{
		AccountID: opts.Account.ID,
		Index:     opts.Index,
		Name:      opts.Name,
		MinSigs:   opts.Account.MinSigs,
		Hash:      multisigHash(opts.Account.MinSigs, opts.KeychainHashes),
	}, nil
}

// IsChange returns whether the bin is the reserved change bin.
func (b *AccountBin) IsChange() bool {
	return b.Index == ChangeBinIndex
}

// PoolStatus returns the status pool scripts of this bin are derived with.
func (b *AccountBin) PoolStatus() ScriptStatus {
	if b.IsChange() {
		return ScriptStatusChange
	}
	return ScriptStatusUnused
}

// multisigHash implements the shared identity formula of accounts and bins:
// HASH160 over the minsigs byte followed by the keychain hashes sorted in
// ascending lexicographical order.
func multisigHash(minSigs uint32, keychainHashes [][]byte) []byte {
	sorted := make([][]byte, len(keychainHashes))
	copy(sorted, keychainHashes)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	preimage := []byte{byte(minSigs)}
	for _, hash := range sorted {
		preimage = append(preimage, hash...)
	}
	return btcutil.Hash160(preimage)
}
