package domain

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// Keychain is a node of a BIP32 hierarchy as stored by the vault. Secrets
// (private key and chain code) are persisted either in plain form, when no
// lock key was ever set, or as ciphertext+salt pairs. The plain fields then
// act as transient slots populated by Unlock and wiped by Lock; the storage
// layer never writes them through while the matching cypher is set.
type Keychain struct {
	ID              uint64 `badgerhold:"key"`
	Name            string `badgerholdUnique:"Name"`
	Depth           uint8
	ParentFP        uint32
	ChildNum        uint32
	PubKey          []byte
	ChainCode       []byte
	ChainCodeCypher []byte
	ChainCodeSalt   []byte
	PrivKey         []byte
	PrivKeyCypher   []byte
	PrivKeySalt     []byte
	ParentID        uint64
	RootID          uint64
	DerivationPath  []uint32
	Hash            []byte
	Hidden          bool
}

// NewKeychainOpts is the struct given to the NewKeychain method
type NewKeychainOpts struct {
	Name    string
	Entropy []byte
	LockKey []byte
	Salt    []byte
}

func (o NewKeychainOpts) validate() error {
	if len(o.Name) <= 0 {
		return ErrNullKeychainName
	}
	if len(o.Entropy) <= 0 {
		return wallet.ErrNullEntropy
	}
	return nil
}

// NewKeychain creates a root keychain from entropy with the standard master
// key generation. When a lock key is provided the private key and the chain
// code are encrypted independently and the plain forms stay transient.
func NewKeychain(opts NewKeychainOpts) (*Keychain, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	master, err := wallet.NewMasterKey(wallet.NewMasterKeyOpts{
		Entropy: opts.Entropy,
	})
	if err != nil {
		return nil, err
	}

	keychain := &Keychain{
		Name:      opts.Name,
		Depth:     0,
		ParentFP:  0,
		ChildNum:  0,
		PubKey:    master.PubKey,
		ChainCode: master.ChainCode,
		PrivKey:   master.PrivKey,
	}
	keychain.Hash = keychainHash(keychain.PubKey, keychain.ChainCode)

	if len(opts.LockKey) > 0 {
		if err := keychain.encryptSecrets(opts.LockKey, opts.Salt); err != nil {
			return nil, err
		}
	}
	return keychain, nil
}

// NewKeychainFromMnemonicOpts is the struct given to the
// NewKeychainFromMnemonic method
type NewKeychainFromMnemonicOpts struct {
	Name     string
	Mnemonic []string
	LockKey  []byte
	Salt     []byte
}

// NewKeychainFromMnemonic creates a root keychain from the BIP39 seed of the
// provided mnemonic. The mnemonic words are never stored.
func NewKeychainFromMnemonic(opts NewKeychainFromMnemonicOpts) (*Keychain, error) {
	seed, err := wallet.SeedFromMnemonic(wallet.SeedFromMnemonicOpts{
		Mnemonic: opts.Mnemonic,
	})
	if err != nil {
		return nil, err
	}
	return NewKeychain(NewKeychainOpts{
		Name:    opts.Name,
		Entropy: seed,
		LockKey: opts.LockKey,
		Salt:    opts.Salt,
	})
}

// ImportKeychainOpts is the struct given to the ImportKeychain method
type ImportKeychainOpts struct {
	Name        string
	ExtendedKey string
	LockKey     []byte
}

// ImportKeychain reconstructs a keychain from its base58check extended
// serialization, public or private.
func ImportKeychain(opts ImportKeychainOpts) (*Keychain, error) {
	if len(opts.Name) <= 0 {
		return nil, ErrNullKeychainName
	}

	node, err := wallet.NodeKeyFromExtended(wallet.NodeKeyFromExtendedOpts{
		ExtendedKey: opts.ExtendedKey,
	})
	if err != nil {
		return nil, err
	}

	keychain := &Keychain{
		Name:      opts.Name,
		Depth:     node.Depth,
		ParentFP:  node.ParentFP,
		ChildNum:  node.ChildNum,
		PubKey:    node.PubKey,
		ChainCode: node.ChainCode,
		PrivKey:   node.PrivKey,
	}
	keychain.Hash = keychainHash(keychain.PubKey, keychain.ChainCode)

	if len(opts.LockKey) > 0 {
		if err := keychain.encryptSecrets(opts.LockKey, nil); err != nil {
			return nil, err
		}
	}
	return keychain, nil
}

func keychainHash(pubKey, chainCode []byte) []byte {
	preimage := make([]byte, 0, len(pubKey)+len(chainCode))
	preimage = append(preimage, pubKey...)
	preimage = append(preimage, chainCode...)
	return btcutil.Hash160(preimage)
}
