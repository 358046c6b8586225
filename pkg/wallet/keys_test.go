package wallet_test

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

func newTestMaster(t *testing.T) *wallet.NodeKey {
	t.Helper()
	master, err := wallet.NewMasterKey(wallet.NewMasterKeyOpts{
		Entropy: make([]byte, 32),
	})
	require.NoError(t, err)
	return master
}

func TestNewMasterKey(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)
	require.True(t, master.IsPrivate())
	require.Len(t, master.PubKey, 33)
	require.Len(t, master.PrivKey, 32)
	require.Len(t, master.ChainCode, 32)
	require.Equal(t, uint8(0), master.Depth)
	require.Equal(t, uint32(0), master.ParentFP)
	require.Equal(t, uint32(0), master.ChildNum)

	// same entropy, same keys
	again := newTestMaster(t)
	require.Equal(t, master.PubKey, again.PubKey)
	require.Equal(t, master.PrivKey, again.PrivKey)
	require.Equal(t, master.ChainCode, again.ChainCode)
}

func TestFailingNewMasterKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entropy       []byte
		expectedError error
	}{
		{nil, wallet.ErrNullEntropy},
		{make([]byte, 8), wallet.ErrInvalidEntropySize},
		{make([]byte, 128), wallet.ErrInvalidEntropySize},
	}
	for _, tt := range tests {
		_, err := wallet.NewMasterKey(wallet.NewMasterKeyOpts{Entropy: tt.entropy})
		require.EqualError(t, err, tt.expectedError.Error())
	}
}

func TestDerive(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)

	child, err := master.Derive(wallet.DeriveOpts{Index: 2, GetPrivate: true})
	require.NoError(t, err)
	require.True(t, child.IsPrivate())
	require.Equal(t, uint8(1), child.Depth)
	require.Equal(t, uint32(2), child.ChildNum)
	require.Equal(
		t,
		binary.BigEndian.Uint32(btcutil.Hash160(master.PubKey)[:4]),
		child.ParentFP,
	)

	// public derivation of a non-hardened index matches the private one
	publicChild, err := master.Derive(wallet.DeriveOpts{Index: 2})
	require.NoError(t, err)
	require.False(t, publicChild.IsPrivate())
	require.Equal(t, child.PubKey, publicChild.PubKey)
	require.Equal(t, child.ChainCode, publicChild.ChainCode)
}

func TestDeriveHardened(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)
	index := uint32(hdkeychain.HardenedKeyStart + 7)

	child, err := master.Derive(wallet.DeriveOpts{
		Index: index, GetPrivate: true,
	})
	require.NoError(t, err)
	require.True(t, child.IsPrivate())
	require.Equal(t, index, child.ChildNum)

	// hardened derivation requires a private parent
	neutered := &wallet.NodeKey{
		PubKey:    master.PubKey,
		ChainCode: master.ChainCode,
	}
	_, err = neutered.Derive(wallet.DeriveOpts{Index: index})
	require.EqualError(t, err, wallet.ErrNullPrivKey.Error())
}

func TestDerivePath(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)

	byPath, err := master.DerivePath(wallet.DerivationPath{2, 0}, false)
	require.NoError(t, err)

	branch, err := master.Derive(wallet.DeriveOpts{Index: 2})
	require.NoError(t, err)
	leaf, err := branch.Derive(wallet.DeriveOpts{Index: 0})
	require.NoError(t, err)

	require.Equal(t, leaf.PubKey, byPath.PubKey)
	require.Equal(t, uint8(2), byPath.Depth)
}

func TestExtendedKeyRoundTrip(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)
	child, err := master.Derive(wallet.DeriveOpts{Index: 5, GetPrivate: true})
	require.NoError(t, err)

	for _, private := range []bool{true, false} {
		extKey, err := child.ExtendedKey(wallet.ExtendedKeyOpts{
			Private: private,
			Network: &chaincfg.MainNetParams,
		})
		require.NoError(t, err)
		require.NotEmpty(t, extKey)

		parsed, err := wallet.NodeKeyFromExtended(wallet.NodeKeyFromExtendedOpts{
			ExtendedKey: extKey,
		})
		require.NoError(t, err)
		require.Equal(t, child.PubKey, parsed.PubKey)
		require.Equal(t, child.ChainCode, parsed.ChainCode)
		require.Equal(t, child.Depth, parsed.Depth)
		require.Equal(t, child.ParentFP, parsed.ParentFP)
		require.Equal(t, child.ChildNum, parsed.ChildNum)
		require.Equal(t, private, parsed.IsPrivate())
	}
}

func TestFailingExtendedKey(t *testing.T) {
	t.Parallel()

	master := newTestMaster(t)
	neutered := &wallet.NodeKey{
		PubKey:    master.PubKey,
		ChainCode: master.ChainCode,
		Depth:     master.Depth,
	}

	_, err := neutered.ExtendedKey(wallet.ExtendedKeyOpts{
		Private: true,
		Network: &chaincfg.MainNetParams,
	})
	require.EqualError(t, err, wallet.ErrNullPrivKey.Error())

	_, err = master.ExtendedKey(wallet.ExtendedKeyOpts{Private: false})
	require.EqualError(t, err, wallet.ErrNullNetwork.Error())
}
