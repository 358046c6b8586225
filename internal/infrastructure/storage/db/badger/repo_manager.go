package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/internal/core/ports"
)

type contextKey int

// txContextKey carries the active store transaction through repository
// calls issued inside RunTransaction.
const txContextKey contextKey = iota

const versionKey = uint64(1)

type repoManager struct {
	store *badgerhold.Store

	keychainRepository    domain.KeychainRepository
	accountRepository     domain.AccountRepository
	transactionRepository domain.TransactionRepository
	blockchainRepository  domain.BlockchainRepository

	// writeMtx serializes write transactions: at most one is in flight
	// per store at any time.
	writeMtx sync.Mutex
}

// NewRepoManager opens (or creates if not existing) the badger store at
// dbDir and returns the repositories bound to it. An empty dbDir opens an
// in-memory store.
func NewRepoManager(dbDir string, logger badger.Logger) (ports.RepoManager, error) {
	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vault db: %w", err)
	}

	return &repoManager{
		store:                 store,
		keychainRepository:    newKeychainRepositoryImpl(store),
		accountRepository:     newAccountRepositoryImpl(store),
		transactionRepository: newTransactionRepositoryImpl(store),
		blockchainRepository:  newBlockchainRepositoryImpl(store),
	}, nil
}

func (r *repoManager) KeychainRepository() domain.KeychainRepository {
	return r.keychainRepository
}

func (r *repoManager) AccountRepository() domain.AccountRepository {
	return r.accountRepository
}

func (r *repoManager) TransactionRepository() domain.TransactionRepository {
	return r.transactionRepository
}

func (r *repoManager) BlockchainRepository() domain.BlockchainRepository {
	return r.blockchainRepository
}

func (r *repoManager) GetVersion(ctx context.Context) (*domain.Version, error) {
	var version domain.Version
	if err := useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, versionKey, &version)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repoManager) SetVersion(ctx context.Context, version *domain.Version) error {
	version.ID = versionKey
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxUpsert(tx, versionKey, version)
	})
}

func (r *repoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if !readOnly {
		r.writeMtx.Lock()
		defer r.writeMtx.Unlock()
	}

	tx := r.store.Badger().NewTransaction(!readOnly)
	defer tx.Discard()

	res, err := handler(context.WithValue(ctx, txContextKey, tx))
	if err != nil {
		return nil, err
	}
	if !readOnly {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *repoManager) Close() {
	r.store.Close()
}

// useStore runs fn against the transaction carried by ctx, or a fresh
// auto-committed one when the call is issued outside RunTransaction.
func useStore(
	ctx context.Context, store *badgerhold.Store, fn func(tx *badger.Txn) error,
) error {
	if tx, ok := ctx.Value(txContextKey).(*badger.Txn); ok {
		return fn(tx)
	}
	tx := store.Badger().NewTransaction(true)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// viewStore is the read-only sibling of useStore.
func viewStore(
	ctx context.Context, store *badgerhold.Store, fn func(tx *badger.Txn) error,
) error {
	if tx, ok := ctx.Value(txContextKey).(*badger.Txn); ok {
		return fn(tx)
	}
	tx := store.Badger().NewTransaction(false)
	defer tx.Discard()
	return fn(tx)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
