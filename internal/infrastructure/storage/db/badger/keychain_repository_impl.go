package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

type keychainRepositoryImpl struct {
	store *badgerhold.Store
}

func newKeychainRepositoryImpl(store *badgerhold.Store) domain.KeychainRepository {
	return keychainRepositoryImpl{store}
}

func (r keychainRepositoryImpl) AddKeychain(
	ctx context.Context, keychain *domain.Keychain,
) error {
	stored := keychain.StrippedForStorage()
	if err := useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), stored)
	}); err != nil {
		if err == badgerhold.ErrUniqueExists {
			return domain.ErrKeychainAlreadyExists
		}
		return err
	}
	keychain.ID = stored.ID
	return nil
}

func (r keychainRepositoryImpl) GetKeychainByID(
	ctx context.Context, id uint64,
) (*domain.Keychain, error) {
	var keychain domain.Keychain
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, id, &keychain)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrKeychainNotFound
		}
		return nil, err
	}
	return &keychain, nil
}

func (r keychainRepositoryImpl) GetKeychainByName(
	ctx context.Context, name string,
) (*domain.Keychain, error) {
	return r.findOne(ctx, badgerhold.Where("Name").Eq(name))
}

func (r keychainRepositoryImpl) GetKeychainByHash(
	ctx context.Context, hash []byte,
) (*domain.Keychain, error) {
	return r.findOne(ctx, badgerhold.Where("Hash").Eq(hash))
}

func (r keychainRepositoryImpl) GetAllKeychains(
	ctx context.Context, includeHidden bool,
) ([]domain.Keychain, error) {
	var keychains []domain.Keychain
	query := &badgerhold.Query{}
	if !includeHidden {
		query = badgerhold.Where("Hidden").Eq(false)
	}
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &keychains, query)
	}); err != nil {
		return nil, err
	}
	return keychains, nil
}

func (r keychainRepositoryImpl) UpdateKeychain(
	ctx context.Context, keychain *domain.Keychain,
) error {
	stored := keychain.StrippedForStorage()
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxUpdate(tx, stored.ID, stored)
	})
}

func (r keychainRepositoryImpl) DeleteKeychain(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxDelete(tx, id, domain.Keychain{})
	})
}

func (r keychainRepositoryImpl) findOne(
	ctx context.Context, query *badgerhold.Query,
) (*domain.Keychain, error) {
	var keychains []domain.Keychain
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &keychains, query)
	}); err != nil {
		return nil, err
	}
	if len(keychains) <= 0 {
		return nil, domain.ErrKeychainNotFound
	}
	return &keychains[0], nil
}
