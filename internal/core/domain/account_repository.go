package domain

import "context"

// AccountRepository persists the account aggregate: accounts, their bins,
// the signing scripts of every bin and the keys behind them.
type AccountRepository interface {
	AddAccount(ctx context.Context, account *Account, bins []*AccountBin) error
	GetAccountByID(ctx context.Context, id uint64) (*Account, error)
	GetAccountByName(ctx context.Context, name string) (*Account, error)
	GetAllAccounts(ctx context.Context) ([]Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	// DeleteAccount removes the account row and its bins. Scripts and keys
	// are deleted by the caller, which knows which of them transactions
	// still reference.
	DeleteAccount(ctx context.Context, id uint64) error

	AddAccountBin(ctx context.Context, bin *AccountBin) error
	GetAccountBinByID(ctx context.Context, id uint64) (*AccountBin, error)
	GetAccountBinByIndex(ctx context.Context, accountID uint64, index uint32) (*AccountBin, error)
	GetAccountBins(ctx context.Context, accountID uint64) ([]AccountBin, error)
	UpdateAccountBin(ctx context.Context, bin *AccountBin) error

	AddSigningScript(ctx context.Context, script *SigningScript) error
	GetSigningScriptByID(ctx context.Context, id uint64) (*SigningScript, error)
	GetSigningScriptByBinIndex(ctx context.Context, binID uint64, index uint32) (*SigningScript, error)
	GetSigningScriptsByBin(ctx context.Context, binID uint64) ([]SigningScript, error)
	GetSigningScriptsByStatus(ctx context.Context, statuses ...ScriptStatus) ([]SigningScript, error)
	GetSigningScriptByTxOutScript(ctx context.Context, txOutScript []byte) (*SigningScript, error)
	GetAllSigningScripts(ctx context.Context) ([]SigningScript, error)
	UpdateSigningScript(ctx context.Context, script *SigningScript) error
	DeleteSigningScript(ctx context.Context, id uint64) error

	AddKey(ctx context.Context, key *Key) error
	GetKeysByIDs(ctx context.Context, ids []uint64) ([]Key, error)
	DeleteKey(ctx context.Context, id uint64) error
}
