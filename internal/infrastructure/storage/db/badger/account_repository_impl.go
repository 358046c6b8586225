package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

type accountRepositoryImpl struct {
	store *badgerhold.Store
}

func newAccountRepositoryImpl(store *badgerhold.Store) domain.AccountRepository {
	return accountRepositoryImpl{store}
}

func (r accountRepositoryImpl) AddAccount(
	ctx context.Context, account *domain.Account, bins []*domain.AccountBin,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		if err := r.store.TxInsert(tx, badgerhold.NextSequence(), account); err != nil {
			if err == badgerhold.ErrUniqueExists {
				return domain.ErrAccountAlreadyExists
			}
			return err
		}
		for _, bin := range bins {
			bin.AccountID = account.ID
			if err := r.store.TxInsert(tx, badgerhold.NextSequence(), bin); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r accountRepositoryImpl) GetAccountByID(
	ctx context.Context, id uint64,
) (*domain.Account, error) {
	var account domain.Account
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, id, &account)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r accountRepositoryImpl) GetAccountByName(
	ctx context.Context, name string,
) (*domain.Account, error) {
	var accounts []domain.Account
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &accounts, badgerhold.Where("Name").Eq(name))
	}); err != nil {
		return nil, err
	}
	if len(accounts) <= 0 {
		return nil, domain.ErrAccountNotFound
	}
	return &accounts[0], nil
}

func (r accountRepositoryImpl) GetAllAccounts(
	ctx context.Context,
) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &accounts, nil)
	}); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r accountRepositoryImpl) UpdateAccount(
	ctx context.Context, account *domain.Account,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxUpdate(tx, account.ID, account)
	})
}

func (r accountRepositoryImpl) DeleteAccount(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		if err := r.store.TxDelete(tx, id, domain.Account{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrAccountNotFound
			}
			return err
		}
		return r.store.TxDeleteMatching(
			tx, domain.AccountBin{}, badgerhold.Where("AccountID").Eq(id).Index("AccountID"),
		)
	})
}

func (r accountRepositoryImpl) AddAccountBin(
	ctx context.Context, bin *domain.AccountBin,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), bin)
	})
}

func (r accountRepositoryImpl) GetAccountBinByID(
	ctx context.Context, id uint64,
) (*domain.AccountBin, error) {
	var bin domain.AccountBin
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, id, &bin)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAccountBinNotFound
		}
		return nil, err
	}
	return &bin, nil
}

func (r accountRepositoryImpl) GetAccountBinByIndex(
	ctx context.Context, accountID uint64, index uint32,
) (*domain.AccountBin, error) {
	var bins []domain.AccountBin
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &bins,
			badgerhold.Where("AccountID").Eq(accountID).Index("AccountID").
				And("Index").Eq(index),
		)
	}); err != nil {
		return nil, err
	}
	if len(bins) <= 0 {
		return nil, domain.ErrAccountBinNotFound
	}
	return &bins[0], nil
}

func (r accountRepositoryImpl) GetAccountBins(
	ctx context.Context, accountID uint64,
) ([]domain.AccountBin, error) {
	var bins []domain.AccountBin
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &bins,
			badgerhold.Where("AccountID").Eq(accountID).Index("AccountID").
				SortBy("Index"),
		)
	}); err != nil {
		return nil, err
	}
	return bins, nil
}

func (r accountRepositoryImpl) UpdateAccountBin(
	ctx context.Context, bin *domain.AccountBin,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxUpdate(tx, bin.ID, bin)
	})
}

func (r accountRepositoryImpl) AddSigningScript(
	ctx context.Context, script *domain.SigningScript,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), script)
	})
}

func (r accountRepositoryImpl) GetSigningScriptByID(
	ctx context.Context, id uint64,
) (*domain.SigningScript, error) {
	var script domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, id, &script)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSigningScriptNotFound
		}
		return nil, err
	}
	return &script, nil
}

func (r accountRepositoryImpl) GetSigningScriptByBinIndex(
	ctx context.Context, binID uint64, index uint32,
) (*domain.SigningScript, error) {
	var scripts []domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &scripts,
			badgerhold.Where("AccountBinID").Eq(binID).Index("AccountBinID").
				And("Index").Eq(index),
		)
	}); err != nil {
		return nil, err
	}
	if len(scripts) <= 0 {
		return nil, domain.ErrSigningScriptNotFound
	}
	return &scripts[0], nil
}

func (r accountRepositoryImpl) GetSigningScriptsByBin(
	ctx context.Context, binID uint64,
) ([]domain.SigningScript, error) {
	var scripts []domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &scripts,
			badgerhold.Where("AccountBinID").Eq(binID).Index("AccountBinID").
				SortBy("Index"),
		)
	}); err != nil {
		return nil, err
	}
	return scripts, nil
}

func (r accountRepositoryImpl) GetSigningScriptsByStatus(
	ctx context.Context, statuses ...domain.ScriptStatus,
) ([]domain.SigningScript, error) {
	values := make([]interface{}, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status)
	}
	var scripts []domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &scripts, badgerhold.Where("Status").In(values...),
		)
	}); err != nil {
		return nil, err
	}
	return scripts, nil
}

func (r accountRepositoryImpl) GetSigningScriptByTxOutScript(
	ctx context.Context, txOutScript []byte,
) (*domain.SigningScript, error) {
	var scripts []domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &scripts,
			badgerhold.Where("TxOutScript").Eq(txOutScript).Index("TxOutScript"),
		)
	}); err != nil {
		return nil, err
	}
	if len(scripts) <= 0 {
		return nil, domain.ErrSigningScriptNotFound
	}
	return &scripts[0], nil
}

func (r accountRepositoryImpl) GetAllSigningScripts(
	ctx context.Context,
) ([]domain.SigningScript, error) {
	var scripts []domain.SigningScript
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &scripts, nil)
	}); err != nil {
		return nil, err
	}
	return scripts, nil
}

func (r accountRepositoryImpl) UpdateSigningScript(
	ctx context.Context, script *domain.SigningScript,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxUpdate(tx, script.ID, script)
	})
}

func (r accountRepositoryImpl) DeleteSigningScript(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxDelete(tx, id, domain.SigningScript{})
	})
}

func (r accountRepositoryImpl) AddKey(
	ctx context.Context, key *domain.Key,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), key)
	})
}

func (r accountRepositoryImpl) GetKeysByIDs(
	ctx context.Context, ids []uint64,
) ([]domain.Key, error) {
	keys := make([]domain.Key, 0, len(ids))
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		for _, id := range ids {
			var key domain.Key
			if err := r.store.TxGet(tx, id, &key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r accountRepositoryImpl) DeleteKey(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxDelete(tx, id, domain.Key{})
	})
}
