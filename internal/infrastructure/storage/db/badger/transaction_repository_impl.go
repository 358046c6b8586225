package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

type transactionRepositoryImpl struct {
	store *badgerhold.Store
}

func newTransactionRepositoryImpl(store *badgerhold.Store) domain.TransactionRepository {
	return transactionRepositoryImpl{store}
}

func (r transactionRepositoryImpl) AddTx(
	ctx context.Context, tx *domain.Tx, ins []*domain.TxIn, outs []*domain.TxOut,
) error {
	return useStore(ctx, r.store, func(btx *badger.Txn) error {
		if err := r.store.TxInsert(btx, badgerhold.NextSequence(), tx); err != nil {
			return err
		}
		for _, in := range ins {
			in.TxID = tx.ID
			if err := r.store.TxInsert(btx, badgerhold.NextSequence(), in); err != nil {
				return err
			}
		}
		for _, out := range outs {
			out.TxID = tx.ID
			if err := r.store.TxInsert(btx, badgerhold.NextSequence(), out); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r transactionRepositoryImpl) GetTxByID(
	ctx context.Context, id uint64,
) (*domain.Tx, error) {
	var tx domain.Tx
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxGet(btx, id, &tx)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTxNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r transactionRepositoryImpl) GetTxByUnsignedHash(
	ctx context.Context, unsignedHash []byte,
) (*domain.Tx, error) {
	return r.findOne(ctx, badgerhold.Where("UnsignedHash").Eq(unsignedHash))
}

func (r transactionRepositoryImpl) GetTxByHash(
	ctx context.Context, hash []byte,
) (*domain.Tx, error) {
	return r.findOne(ctx, badgerhold.Where("Hash").Eq(hash))
}

func (r transactionRepositoryImpl) GetAllTxs(
	ctx context.Context,
) ([]domain.Tx, error) {
	var txs []domain.Tx
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(btx, &txs, nil)
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r transactionRepositoryImpl) GetTxsByStatus(
	ctx context.Context, statuses ...domain.TxStatus,
) ([]domain.Tx, error) {
	values := make([]interface{}, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status)
	}
	var txs []domain.Tx
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &txs, badgerhold.Where("Status").In(values...).Index("Status"),
		)
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r transactionRepositoryImpl) GetTxsByBlockHeader(
	ctx context.Context, headerID uint64,
) ([]domain.Tx, error) {
	var txs []domain.Tx
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &txs,
			badgerhold.Where("BlockHeaderID").Eq(headerID).Index("BlockHeaderID"),
		)
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r transactionRepositoryImpl) UpdateTx(
	ctx context.Context, tx *domain.Tx,
) error {
	return useStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxUpdate(btx, tx.ID, tx)
	})
}

func (r transactionRepositoryImpl) DeleteTx(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(btx *badger.Txn) error {
		if err := r.store.TxDelete(btx, id, domain.Tx{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrTxNotFound
			}
			return err
		}
		if err := r.store.TxDeleteMatching(
			btx, domain.TxIn{}, badgerhold.Where("TxID").Eq(id).Index("TxID"),
		); err != nil {
			return err
		}
		return r.store.TxDeleteMatching(
			btx, domain.TxOut{}, badgerhold.Where("TxID").Eq(id).Index("TxID"),
		)
	})
}

func (r transactionRepositoryImpl) GetTxIns(
	ctx context.Context, txID uint64,
) ([]domain.TxIn, error) {
	var ins []domain.TxIn
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &ins,
			badgerhold.Where("TxID").Eq(txID).Index("TxID").SortBy("TxIndex"),
		)
	}); err != nil {
		return nil, err
	}
	return ins, nil
}

func (r transactionRepositoryImpl) GetTxInsByOutpoint(
	ctx context.Context, outHash []byte, outIndex uint32,
) ([]domain.TxIn, error) {
	var ins []domain.TxIn
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &ins,
			badgerhold.Where("OutHash").Eq(outHash).And("OutIndex").Eq(outIndex),
		)
	}); err != nil {
		return nil, err
	}
	return ins, nil
}

func (r transactionRepositoryImpl) UpdateTxIn(
	ctx context.Context, txIn *domain.TxIn,
) error {
	return useStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxUpdate(btx, txIn.ID, txIn)
	})
}

func (r transactionRepositoryImpl) GetTxOuts(
	ctx context.Context, txID uint64,
) ([]domain.TxOut, error) {
	var outs []domain.TxOut
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &outs,
			badgerhold.Where("TxID").Eq(txID).Index("TxID").SortBy("TxIndex"),
		)
	}); err != nil {
		return nil, err
	}
	return outs, nil
}

func (r transactionRepositoryImpl) GetTxOutByID(
	ctx context.Context, id uint64,
) (*domain.TxOut, error) {
	var out domain.TxOut
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxGet(btx, id, &out)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTxNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r transactionRepositoryImpl) GetTxOutsByScript(
	ctx context.Context, script []byte,
) ([]domain.TxOut, error) {
	var outs []domain.TxOut
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &outs,
			badgerhold.Where("Script").Eq(script).Index("Script"),
		)
	}); err != nil {
		return nil, err
	}
	return outs, nil
}

func (r transactionRepositoryImpl) GetOwnedTxOuts(
	ctx context.Context,
) ([]domain.TxOut, error) {
	var outs []domain.TxOut
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &outs, badgerhold.Where("ReceivingAccountID").Ne(uint64(0)),
		)
	}); err != nil {
		return nil, err
	}
	return outs, nil
}

func (r transactionRepositoryImpl) GetUnspentTxOuts(
	ctx context.Context,
) ([]domain.TxOut, error) {
	var outs []domain.TxOut
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(
			btx, &outs,
			badgerhold.Where("ReceivingAccountID").Ne(uint64(0)).
				And("Status").Eq(domain.TxOutStatusUnspent),
		)
	}); err != nil {
		return nil, err
	}
	return outs, nil
}

func (r transactionRepositoryImpl) UpdateTxOut(
	ctx context.Context, txOut *domain.TxOut,
) error {
	return useStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxUpdate(btx, txOut.ID, txOut)
	})
}

func (r transactionRepositoryImpl) findOne(
	ctx context.Context, query *badgerhold.Query,
) (*domain.Tx, error) {
	var txs []domain.Tx
	if err := viewStore(ctx, r.store, func(btx *badger.Txn) error {
		return r.store.TxFind(btx, &txs, query)
	}); err != nil {
		return nil, err
	}
	if len(txs) <= 0 {
		return nil, domain.ErrTxNotFound
	}
	return &txs[0], nil
}
