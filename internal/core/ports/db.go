package ports

import (
	"context"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

// RepoManager gives access to every repository of the vault store and runs
// handlers inside store transactions. At most one write transaction is in
// flight per store at any time; reads run against snapshots and never block
// writers.
type RepoManager interface {
	KeychainRepository() domain.KeychainRepository
	AccountRepository() domain.AccountRepository
	TransactionRepository() domain.TransactionRepository
	BlockchainRepository() domain.BlockchainRepository

	GetVersion(ctx context.Context) (*domain.Version, error)
	SetVersion(ctx context.Context, version *domain.Version) error

	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)

	Close()
}

// Transaction is a store transaction handed to repositories through the
// context.
type Transaction interface {
	Commit() error
	Discard()
}
