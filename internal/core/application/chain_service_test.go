package application_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/application"
	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

func newTestHeader(t *testing.T, prev chainhash.Hash, nonce uint32) *wire.BlockHeader {
	t.Helper()
	header := wire.NewBlockHeader(
		1, &prev, &chainhash.Hash{}, 0x1d00ffff, nonce,
	)
	header.Timestamp = time.Unix(1231006505+int64(nonce), 0)
	return header
}

func insertHeaderChain(
	t *testing.T, svc *application.VaultService, headers ...*wire.BlockHeader,
) {
	t.Helper()
	for _, header := range headers {
		require.NoError(t, svc.InsertMerkleBlock(ctx, &wire.MsgMerkleBlock{
			Header:       *header,
			Transactions: 0,
			Hashes:       nil,
			Flags:        nil,
		}))
	}
}

func TestInsertBlockChainsHeaders(t *testing.T) {
	svc := newTestVault(t)

	genesis := newTestHeader(t, chainhash.Hash{}, 0)
	genesisHash := genesis.BlockHash()
	h1 := newTestHeader(t, genesisHash, 1)
	insertHeaderChain(t, svc, genesis, h1)

	best, err := svc.GetBestHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), best)
	count, err := svc.GetBlockCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// a header extending nothing is rejected
	orphan := newTestHeader(t, chainhash.Hash{0xff}, 9)
	err = svc.InsertMerkleBlock(ctx, &wire.MsgMerkleBlock{Header: *orphan})
	require.EqualError(t, err, domain.ErrChainMismatch.Error())
}

// inserting the same block twice is a no-op after the first success.
func TestInsertBlockIdempotent(t *testing.T) {
	svc := newTestVault(t)

	genesis := newTestHeader(t, chainhash.Hash{}, 0)
	block := &wire.MsgBlock{Header: *genesis}
	require.NoError(t, svc.InsertBlock(ctx, block))
	require.NoError(t, svc.InsertBlock(ctx, block))

	count, err := svc.GetBlockCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGetLocatorHashes(t *testing.T) {
	svc := newTestVault(t)

	headers := make([]*wire.BlockHeader, 0, 6)
	prev := chainhash.Hash{}
	for i := 0; i < 6; i++ {
		header := newTestHeader(t, prev, uint32(i))
		headers = append(headers, header)
		prev = header.BlockHash()
	}
	insertHeaderChain(t, svc, headers...)

	locator, err := svc.GetLocatorHashes(ctx)
	require.NoError(t, err)
	// heights 5,4,3,1,0 for a 6 block chain
	require.Len(t, locator, 5)
	tip := headers[5].BlockHash()
	require.Equal(t, tip.CloneBytes(), locator[0])
	genesisHash := headers[0].BlockHash()
	require.Equal(t, genesisHash.CloneBytes(), locator[len(locator)-1])
}

// a merkle block confirms a tracked transaction, a reorg detaches it, and
// restoring the original branch confirms it again.
func TestReorg(t *testing.T) {
	svc := newTestVault(t)

	require.NoError(t, svc.NewKeychain(ctx, "k1", zeroEntropy(), nil, nil))
	require.NoError(t, svc.NewAccount(ctx, "A", 1, []string{"k1"}, 2, 0))
	fundingHash, _ := fundAccount(t, svc, "A", 8000)
	txHash, err := chainhash.NewHash(fundingHash)
	require.NoError(t, err)

	fundingMsg := txInfoByTxHash(t, svc, fundingHash)
	require.Equal(t, domain.TxStatusPropagated, fundingMsg.Status)

	genesis := newTestHeader(t, chainhash.Hash{}, 0)
	genesisHash := genesis.BlockHash()
	h1 := newTestHeader(t, genesisHash, 1)
	h1Hash := h1.BlockHash()
	h2 := newTestHeader(t, h1Hash, 2)

	insertHeaderChain(t, svc, genesis, h1)
	require.NoError(t, svc.InsertMerkleBlock(ctx, &wire.MsgMerkleBlock{
		Header:       *h2,
		Transactions: 1,
		Hashes:       []*chainhash.Hash{txHash},
		Flags:        []byte{0x01},
	}))

	info := txInfoByTxHash(t, svc, fundingHash)
	require.Equal(t, domain.TxStatusConfirmed, info.Status)
	require.True(t, info.Confirmed)
	require.Equal(t, uint32(2), info.BlockHeight)

	// a competing branch from height 1 orphans h1 and h2
	h1b := newTestHeader(t, genesisHash, 10)
	h1bHash := h1b.BlockHash()
	h2b := newTestHeader(t, h1bHash, 11)
	h2bHash := h2b.BlockHash()
	h3b := newTestHeader(t, h2bHash, 12)
	insertHeaderChain(t, svc, h1b, h2b, h3b)

	best, err := svc.GetBestHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(3), best)

	info = txInfoByTxHash(t, svc, fundingHash)
	require.Equal(t, domain.TxStatusPropagated, info.Status)
	require.False(t, info.Confirmed)
	require.Equal(t, uint32(0), info.BlockHeight)

	// restoring the original branch returns everything to the pre-reorg
	// state
	insertHeaderChain(t, svc, h1)
	require.NoError(t, svc.InsertMerkleBlock(ctx, &wire.MsgMerkleBlock{
		Header:       *h2,
		Transactions: 1,
		Hashes:       []*chainhash.Hash{txHash},
		Flags:        []byte{0x01},
	}))

	info = txInfoByTxHash(t, svc, fundingHash)
	require.Equal(t, domain.TxStatusConfirmed, info.Status)
	require.Equal(t, uint32(2), info.BlockHeight)

	balance, err := svc.GetBalance(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, uint64(8000), balance.ConfirmedSats)
}

func TestDeleteMerkleBlock(t *testing.T) {
	svc := newTestVault(t)

	require.NoError(t, svc.NewKeychain(ctx, "k1", zeroEntropy(), nil, nil))
	require.NoError(t, svc.NewAccount(ctx, "A", 1, []string{"k1"}, 2, 0))
	fundingHash, _ := fundAccount(t, svc, "A", 4000)
	txHash, err := chainhash.NewHash(fundingHash)
	require.NoError(t, err)

	genesis := newTestHeader(t, chainhash.Hash{}, 0)
	require.NoError(t, svc.InsertMerkleBlock(ctx, &wire.MsgMerkleBlock{
		Header:       *genesis,
		Transactions: 1,
		Hashes:       []*chainhash.Hash{txHash},
		Flags:        []byte{0x01},
	}))
	require.Equal(
		t, domain.TxStatusConfirmed, txInfoByTxHash(t, svc, fundingHash).Status,
	)

	genesisHash := genesis.BlockHash()
	require.NoError(t, svc.DeleteMerkleBlock(ctx, genesisHash.CloneBytes()))

	info := txInfoByTxHash(t, svc, fundingHash)
	require.Equal(t, domain.TxStatusPropagated, info.Status)
	require.False(t, info.Confirmed)

	// the header itself survives
	count, err := svc.GetBlockCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestHorizon(t *testing.T) {
	svc := newTestVault(t)

	_, ok, err := svc.GetMaxFirstBlockTimestamp(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.NewKeychain(ctx, "k1", zeroEntropy(), nil, nil))
	require.NoError(t, svc.NewAccount(ctx, "A", 1, []string{"k1"}, 2, 1231006506))
	require.NoError(t, svc.NewKeychain(ctx, "k2", seededEntropy(9), nil, nil))
	require.NoError(t, svc.NewAccount(ctx, "B", 1, []string{"k2"}, 2, 1231006508))

	horizon, ok, err := svc.GetMaxFirstBlockTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1231006506), horizon)

	headers := make([]*wire.BlockHeader, 0, 4)
	prev := chainhash.Hash{}
	for i := 0; i < 4; i++ {
		header := newTestHeader(t, prev, uint32(i))
		headers = append(headers, header)
		prev = header.BlockHash()
	}
	insertHeaderChain(t, svc, headers...)

	// headers carry timestamps 1231006505+nonce, the first one at or past
	// the horizon sits at height 1
	height, err := svc.GetHorizonHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), height)
}

func txInfoByTxHash(
	t *testing.T, svc *application.VaultService, hash []byte,
) application.TxInfo {
	t.Helper()
	txs, err := svc.ListTxs(ctx)
	require.NoError(t, err)
	for _, tx := range txs {
		if tx.Hash == hex.EncodeToString(hash) {
			return tx
		}
	}
	t.Fatalf("tx with hash %s not tracked", hex.EncodeToString(hash))
	return application.TxInfo{}
}
