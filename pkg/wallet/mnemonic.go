package wallet

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// NewMnemonicOpts is the struct given to the NewMnemonic method
type NewMnemonicOpts struct {
	EntropySize int
}

func (o NewMnemonicOpts) validate() error {
	if o.EntropySize < 128 || o.EntropySize > 256 || o.EntropySize%32 != 0 {
		return ErrInvalidEntropySize
	}
	return nil
}

// NewMnemonic generates a fresh BIP39 mnemonic of the provided entropy size.
func NewMnemonic(opts NewMnemonicOpts) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	entropy, err := bip39.NewEntropy(opts.EntropySize)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Split(mnemonic, " "), nil
}

// SeedFromMnemonicOpts is the struct given to the SeedFromMnemonic method
type SeedFromMnemonicOpts struct {
	Mnemonic []string
}

func (o SeedFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !isMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// SeedFromMnemonic returns the BIP39 seed of a mnemonic, usable as master
// key entropy. The mnemonic itself is never persisted.
func SeedFromMnemonic(opts SeedFromMnemonicOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return bip39.NewSeed(strings.Join(opts.Mnemonic, " "), ""), nil
}

func isMnemonicValid(mnemonic []string) bool {
	return bip39.IsMnemonicValid(strings.Join(mnemonic, " "))
}
