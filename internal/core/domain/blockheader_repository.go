package domain

import "context"

// BlockchainRepository persists the header chain and its merkle blocks.
type BlockchainRepository interface {
	AddBlockHeader(ctx context.Context, header *BlockHeader) error
	GetBlockHeaderByID(ctx context.Context, id uint64) (*BlockHeader, error)
	GetBlockHeaderByHash(ctx context.Context, hash []byte) (*BlockHeader, error)
	GetBlockHeaderByHeight(ctx context.Context, height uint32) (*BlockHeader, error)
	GetBestBlockHeader(ctx context.Context) (*BlockHeader, error)
	GetBlockCount(ctx context.Context) (int, error)
	DeleteBlockHeader(ctx context.Context, id uint64) error

	AddMerkleBlock(ctx context.Context, merkleBlock *MerkleBlock) error
	GetMerkleBlocksByHeader(ctx context.Context, headerID uint64) ([]MerkleBlock, error)
	DeleteMerkleBlock(ctx context.Context, id uint64) error
}
