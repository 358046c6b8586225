package dbbadger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

func newStoredTx(t *testing.T, repo domain.TransactionRepository, seed byte) *domain.Tx {
	t.Helper()
	unsignedHash := make([]byte, 32)
	unsignedHash[0] = seed
	outHash := make([]byte, 32)
	outHash[1] = seed

	tx := &domain.Tx{
		UnsignedHash: unsignedHash,
		Version:      1,
		Timestamp:    int64(seed),
		Status:       domain.TxStatusUnsigned,
	}
	ins := []*domain.TxIn{
		{TxIndex: 0, OutHash: outHash, OutIndex: 0, Sequence: 0xffffffff},
	}
	outs := []*domain.TxOut{
		{TxIndex: 0, Value: 1000, Script: []byte{seed}, Status: domain.TxOutStatusUnspent},
	}
	require.NoError(t, repo.AddTx(context.Background(), tx, ins, outs))
	return tx
}

func TestAddTxAssignsChildren(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	tx := newStoredTx(t, repo, 1)
	require.NotZero(t, tx.ID)

	ins, err := repo.GetTxIns(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	require.Equal(t, tx.ID, ins[0].TxID)

	outs, err := repo.GetTxOuts(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Equal(t, tx.ID, outs[0].TxID)
}

func TestGetTxByUnsignedHash(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	tx := newStoredTx(t, repo, 2)
	found, err := repo.GetTxByUnsignedHash(ctx, tx.UnsignedHash)
	require.NoError(t, err)
	require.Equal(t, tx.ID, found.ID)

	_, err = repo.GetTxByUnsignedHash(ctx, make([]byte, 32))
	require.EqualError(t, err, domain.ErrTxNotFound.Error())
}

func TestGetTxsByStatus(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	first := newStoredTx(t, repo, 3)
	second := newStoredTx(t, repo, 4)
	second.Status = domain.TxStatusPropagated
	require.NoError(t, repo.UpdateTx(ctx, second))

	unsigned, err := repo.GetTxsByStatus(ctx, domain.TxStatusUnsigned)
	require.NoError(t, err)
	require.Len(t, unsigned, 1)
	require.Equal(t, first.ID, unsigned[0].ID)

	both, err := repo.GetTxsByStatus(
		ctx, domain.TxStatusUnsigned, domain.TxStatusPropagated,
	)
	require.NoError(t, err)
	require.Len(t, both, 2)
}

func TestGetTxInsByOutpoint(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	tx := newStoredTx(t, repo, 5)
	ins, err := repo.GetTxIns(ctx, tx.ID)
	require.NoError(t, err)

	spenders, err := repo.GetTxInsByOutpoint(ctx, ins[0].OutHash, 0)
	require.NoError(t, err)
	require.Len(t, spenders, 1)

	none, err := repo.GetTxInsByOutpoint(ctx, ins[0].OutHash, 9)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUnspentAndOwnedTxOuts(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	tx := newStoredTx(t, repo, 6)
	outs, err := repo.GetTxOuts(ctx, tx.ID)
	require.NoError(t, err)

	// unowned outputs appear in neither view
	owned, err := repo.GetOwnedTxOuts(ctx)
	require.NoError(t, err)
	require.Empty(t, owned)

	out := outs[0]
	out.ReceivingAccountID = 42
	require.NoError(t, repo.UpdateTxOut(ctx, &out))

	owned, err = repo.GetOwnedTxOuts(ctx)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	unspent, err := repo.GetUnspentTxOuts(ctx)
	require.NoError(t, err)
	require.Len(t, unspent, 1)

	out.Status = domain.TxOutStatusSpent
	out.SpentByID = 99
	require.NoError(t, repo.UpdateTxOut(ctx, &out))

	unspent, err = repo.GetUnspentTxOuts(ctx)
	require.NoError(t, err)
	require.Empty(t, unspent)
}

func TestDeleteTxCascades(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.TransactionRepository()
	ctx := context.Background()

	tx := newStoredTx(t, repo, 7)
	require.NoError(t, repo.DeleteTx(ctx, tx.ID))

	_, err := repo.GetTxByID(ctx, tx.ID)
	require.EqualError(t, err, domain.ErrTxNotFound.Error())
	ins, err := repo.GetTxIns(ctx, tx.ID)
	require.NoError(t, err)
	require.Empty(t, ins)
	outs, err := repo.GetTxOuts(ctx, tx.ID)
	require.NoError(t, err)
	require.Empty(t, outs)
}
