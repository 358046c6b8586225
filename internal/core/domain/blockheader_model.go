package domain

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockHeader is one header of the single best chain tracked by the vault.
type BlockHeader struct {
	ID         uint64 `badgerhold:"key"`
	Hash       []byte `badgerholdUnique:"Hash"`
	Height     uint32 `badgerholdUnique:"Height"`
	Version    int32
	PrevHash   []byte
	MerkleRoot []byte
	Timestamp  int64
	Bits       uint32
	Nonce      uint32
}

// MerkleBlock records which tracked transactions a filtered block matched.
type MerkleBlock struct {
	ID            uint64 `badgerhold:"key"`
	BlockHeaderID uint64 `badgerholdIndex:"BlockHeaderID"`
	TxCount       uint32
	Hashes        [][]byte
	Flags         []byte
}

// Version is the schema version singleton of the store.
type Version struct {
	ID            uint64 `badgerhold:"key"`
	SchemaVersion uint32
}

// NewBlockHeaderFromWire captures a wire header at the given height.
func NewBlockHeaderFromWire(header *wire.BlockHeader, height uint32) *BlockHeader {
	hash := header.BlockHash()
	return &BlockHeader{
		Hash:       hash.CloneBytes(),
		Height:     height,
		Version:    header.Version,
		PrevHash:   header.PrevBlock.CloneBytes(),
		MerkleRoot: header.MerkleRoot.CloneBytes(),
		Timestamp:  header.Timestamp.Unix(),
		Bits:       header.Bits,
		Nonce:      header.Nonce,
	}
}

// ToWire reassembles the wire form of the header.
func (b *BlockHeader) ToWire() (*wire.BlockHeader, error) {
	prevHash, err := chainhash.NewHash(b.PrevHash)
	if err != nil {
		return nil, ErrBlockHeaderNotFound
	}
	merkleRoot, err := chainhash.NewHash(b.MerkleRoot)
	if err != nil {
		return nil, ErrBlockHeaderNotFound
	}
	header := wire.NewBlockHeader(b.Version, prevHash, merkleRoot, b.Bits, b.Nonce)
	header.Timestamp = time.Unix(b.Timestamp, 0)
	return header, nil
}

// NewMerkleBlockFromWire captures the matched hashes and flag bitmap of a
// wire merkle block against an already stored header.
func NewMerkleBlockFromWire(msg *wire.MsgMerkleBlock, headerID uint64) *MerkleBlock {
	hashes := make([][]byte, 0, len(msg.Hashes))
	for _, hash := range msg.Hashes {
		hashes = append(hashes, hash.CloneBytes())
	}
	return &MerkleBlock{
		BlockHeaderID: headerID,
		TxCount:       msg.Transactions,
		Hashes:        hashes,
		Flags:         msg.Flags,
	}
}

// LocatorHeights returns the exponentially spaced heights of the standard
// block locator for the provided best height: n, n-1, n-2, n-4, n-8, ... 0.
func LocatorHeights(best uint32) []uint32 {
	heights := make([]uint32, 0, 32)
	step := uint32(1)
	height := best
	for {
		heights = append(heights, height)
		if height == 0 {
			break
		}
		if len(heights) >= 3 {
			step *= 2
		}
		if height < step {
			height = 0
			continue
		}
		height -= step
	}
	return heights
}
