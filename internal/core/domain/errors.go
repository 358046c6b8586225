package domain

import "errors"

var (
	// ErrNullKeychainName ...
	ErrNullKeychainName = errors.New("keychain name must not be null")
	// ErrKeychainNotFound ...
	ErrKeychainNotFound = errors.New("keychain not found")
	// ErrKeychainAlreadyExists ...
	ErrKeychainAlreadyExists = errors.New("a keychain with the same name already exists")
	// ErrKeychainLocked is returned when an operation needs a secret that is
	// encrypted and not currently unlocked
	ErrKeychainLocked = errors.New("keychain secret is locked")
	// ErrAlreadyEncrypted is returned when setting an unlock key on a
	// keychain that is already encrypted or already persisted
	ErrAlreadyEncrypted = errors.New("keychain secret is already encrypted")
	// ErrBadLockKey ...
	ErrBadLockKey = errors.New("lock key does not decrypt the keychain secret")
	// ErrKeychainNotPrivate ...
	ErrKeychainNotPrivate = errors.New("keychain holds no private key material")
	// ErrNullAccountName ...
	ErrNullAccountName = errors.New("account name must not be null")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists ...
	ErrAccountAlreadyExists = errors.New("an account with the same name already exists")
	// ErrAccountBinNotFound ...
	ErrAccountBinNotFound = errors.New("account bin not found")
	// ErrAccountBinAlreadyExists ...
	ErrAccountBinAlreadyExists = errors.New("an account bin with the same name already exists")
	// ErrInvalidMultisig is returned when the required signature count falls
	// outside [1, len(keychains)] or the keychain set is too large
	ErrInvalidMultisig = errors.New(
		"number of required signatures must be in range [1, len(keychains)] " +
			"with at most 15 keychains",
	)
	// ErrSigningScriptNotFound ...
	ErrSigningScriptNotFound = errors.New("signing script not found")
	// ErrInvalidScript ...
	ErrInvalidScript = errors.New("script is unparseable or has unexpected form")
	// ErrTxNotFound ...
	ErrTxNotFound = errors.New("transaction not found")
	// ErrInvalidTx ...
	ErrInvalidTx = errors.New("transaction is malformed")
	// ErrInvalidStatusTransition ...
	ErrInvalidStatusTransition = errors.New("illegal transaction status transition")
	// ErrUnknownOutpoint is returned when a spend references an output the
	// vault does not own and cannot be told about
	ErrUnknownOutpoint = errors.New("outpoint does not reference an owned output")
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New("account funds do not cover amount plus fee")
	// ErrBlockHeaderNotFound ...
	ErrBlockHeaderNotFound = errors.New("block header not found")
	// ErrMerkleBlockNotFound ...
	ErrMerkleBlockNotFound = errors.New("merkle block not found")
	// ErrChainMismatch is returned when a header neither extends a known
	// branch nor starts the chain at height 0
	ErrChainMismatch = errors.New("block header does not extend any known branch")
	// ErrUnsupportedSchema ...
	ErrUnsupportedSchema = errors.New("store schema version is unsupported")
)
