package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

type blockchainRepositoryImpl struct {
	store *badgerhold.Store
}

func newBlockchainRepositoryImpl(store *badgerhold.Store) domain.BlockchainRepository {
	return blockchainRepositoryImpl{store}
}

func (r blockchainRepositoryImpl) AddBlockHeader(
	ctx context.Context, header *domain.BlockHeader,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), header)
	})
}

func (r blockchainRepositoryImpl) GetBlockHeaderByID(
	ctx context.Context, id uint64,
) (*domain.BlockHeader, error) {
	var header domain.BlockHeader
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxGet(tx, id, &header)
	}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrBlockHeaderNotFound
		}
		return nil, err
	}
	return &header, nil
}

func (r blockchainRepositoryImpl) GetBlockHeaderByHash(
	ctx context.Context, hash []byte,
) (*domain.BlockHeader, error) {
	return r.findOne(ctx, badgerhold.Where("Hash").Eq(hash))
}

func (r blockchainRepositoryImpl) GetBlockHeaderByHeight(
	ctx context.Context, height uint32,
) (*domain.BlockHeader, error) {
	return r.findOne(ctx, badgerhold.Where("Height").Eq(height))
}

func (r blockchainRepositoryImpl) GetBestBlockHeader(
	ctx context.Context,
) (*domain.BlockHeader, error) {
	var headers []domain.BlockHeader
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &headers, (&badgerhold.Query{}).SortBy("Height").Reverse().Limit(1),
		)
	}); err != nil {
		return nil, err
	}
	if len(headers) <= 0 {
		return nil, domain.ErrBlockHeaderNotFound
	}
	return &headers[0], nil
}

func (r blockchainRepositoryImpl) GetBlockCount(ctx context.Context) (int, error) {
	count := 0
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		n, err := r.store.TxCount(tx, domain.BlockHeader{}, nil)
		if err != nil {
			return err
		}
		count = int(n)
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}

func (r blockchainRepositoryImpl) DeleteBlockHeader(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		if err := r.store.TxDelete(tx, id, domain.BlockHeader{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrBlockHeaderNotFound
			}
			return err
		}
		return nil
	})
}

func (r blockchainRepositoryImpl) AddMerkleBlock(
	ctx context.Context, merkleBlock *domain.MerkleBlock,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, badgerhold.NextSequence(), merkleBlock)
	})
}

func (r blockchainRepositoryImpl) GetMerkleBlocksByHeader(
	ctx context.Context, headerID uint64,
) ([]domain.MerkleBlock, error) {
	var merkleBlocks []domain.MerkleBlock
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(
			tx, &merkleBlocks,
			badgerhold.Where("BlockHeaderID").Eq(headerID).Index("BlockHeaderID"),
		)
	}); err != nil {
		return nil, err
	}
	return merkleBlocks, nil
}

func (r blockchainRepositoryImpl) DeleteMerkleBlock(
	ctx context.Context, id uint64,
) error {
	return useStore(ctx, r.store, func(tx *badger.Txn) error {
		if err := r.store.TxDelete(tx, id, domain.MerkleBlock{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrMerkleBlockNotFound
			}
			return err
		}
		return nil
	})
}

func (r blockchainRepositoryImpl) findOne(
	ctx context.Context, query *badgerhold.Query,
) (*domain.BlockHeader, error) {
	var headers []domain.BlockHeader
	if err := viewStore(ctx, r.store, func(tx *badger.Txn) error {
		return r.store.TxFind(tx, &headers, query)
	}); err != nil {
		return nil, err
	}
	if len(headers) <= 0 {
		return nil, domain.ErrBlockHeaderNotFound
	}
	return &headers[0], nil
}
