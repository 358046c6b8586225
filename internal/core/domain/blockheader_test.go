package domain_test

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

func newTestWireHeader(prev chainhash.Hash, nonce uint32) *wire.BlockHeader {
	header := wire.NewBlockHeader(
		1, &prev, &chainhash.Hash{}, 0x1d00ffff, nonce,
	)
	header.Timestamp = time.Unix(1231006505, 0)
	return header
}

func TestBlockHeaderWireRoundTrip(t *testing.T) {
	t.Parallel()

	genesis := chaincfg.MainNetParams.GenesisBlock.Header
	stored := domain.NewBlockHeaderFromWire(&genesis, 0)
	require.Equal(t, uint32(0), stored.Height)

	expectedHash := genesis.BlockHash()
	require.Equal(t, expectedHash.CloneBytes(), stored.Hash)

	rebuilt, err := stored.ToWire()
	require.NoError(t, err)
	rebuiltHash := rebuilt.BlockHash()
	require.Equal(t, expectedHash, rebuiltHash)
}

func TestNewMerkleBlockFromWire(t *testing.T) {
	t.Parallel()

	header := newTestWireHeader(chainhash.Hash{}, 7)
	hash1, _ := chainhash.NewHashFromStr("01")
	hash2, _ := chainhash.NewHashFromStr("02")
	msg := &wire.MsgMerkleBlock{
		Header:       *header,
		Transactions: 10,
		Hashes:       []*chainhash.Hash{hash1, hash2},
		Flags:        []byte{0x1d},
	}

	merkleBlock := domain.NewMerkleBlockFromWire(msg, 3)
	require.Equal(t, uint64(3), merkleBlock.BlockHeaderID)
	require.Equal(t, uint32(10), merkleBlock.TxCount)
	require.Len(t, merkleBlock.Hashes, 2)
	require.Equal(t, hash1.CloneBytes(), merkleBlock.Hashes[0])
	require.Equal(t, []byte{0x1d}, merkleBlock.Flags)
}

func TestLocatorHeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		best     uint32
		expected []uint32
	}{
		{0, []uint32{0}},
		{1, []uint32{1, 0}},
		{2, []uint32{2, 1, 0}},
		{10, []uint32{10, 9, 8, 6, 2, 0}},
		{100, []uint32{100, 99, 98, 96, 92, 84, 68, 36, 0}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, domain.LocatorHeights(tt.best))
	}
}
