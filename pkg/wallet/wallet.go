package wallet

import (
	"errors"
)

var (
	// ErrNullEntropy ...
	ErrNullEntropy = errors.New("entropy must not be null")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic must not be null")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher text is malformed")
	// ErrNullChainCode ...
	ErrNullChainCode = errors.New("chain code must not be null")
	// ErrNullPubKey ...
	ErrNullPubKey = errors.New("public key must not be null")
	// ErrNullPrivKey ...
	ErrNullPrivKey = errors.New("private key is required for this derivation")
	// ErrInvalidDerivation is returned when the child key HMAC falls out of
	// the secp256k1 group order. The vault's derivation paths return it to
	// the operation that asked for the key; no index is skipped or retried.
	ErrInvalidDerivation = errors.New("derived key is out of range, retry with next index")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrNullExtendedKey ...
	ErrNullExtendedKey = errors.New("extended key must not be null")
	// ErrInvalidExtendedKey ...
	ErrInvalidExtendedKey = errors.New("extended key is malformed")
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullScript ...
	ErrNullScript = errors.New("script must not be null")
	// ErrNullSigHash ...
	ErrNullSigHash = errors.New("signature hash must not be null")
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("signature verification failed")
	// ErrInvalidMinSigs ...
	ErrInvalidMinSigs = errors.New(
		"number of required signatures must be in range [1, len(pubkeys)]",
	)
	// ErrTooManyPubKeys ...
	ErrTooManyPubKeys = errors.New("multisig scripts support up to 15 public keys")
)
