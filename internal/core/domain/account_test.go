package domain_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

func newTestKeychains(t *testing.T, count int) []*domain.Keychain {
	t.Helper()
	keychains := make([]*domain.Keychain, 0, count)
	for i := 0; i < count; i++ {
		entropy := make([]byte, 32)
		entropy[0] = byte(i + 1)
		keychain, err := domain.NewKeychain(domain.NewKeychainOpts{
			Name:    string(rune('a' + i)),
			Entropy: entropy,
		})
		require.NoError(t, err)
		keychain.ID = uint64(i + 1)
		keychains = append(keychains, keychain)
	}
	return keychains
}

func expectedMultisigHash(minSigs uint32, keychains []*domain.Keychain) []byte {
	hashes := make([][]byte, 0, len(keychains))
	for _, keychain := range keychains {
		hashes = append(hashes, keychain.Hash)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i], hashes[j]) < 0
	})
	preimage := []byte{byte(minSigs)}
	for _, hash := range hashes {
		preimage = append(preimage, hash...)
	}
	return btcutil.Hash160(preimage)
}

func TestNewAccount(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 3)
	account, bins, err := domain.NewAccount(domain.NewAccountOpts{
		Name:           "savings",
		MinSigs:        2,
		Keychains:      keychains,
		UnusedPoolSize: 5,
		TimeCreated:    1234567890,
	})
	require.NoError(t, err)
	require.Equal(t, expectedMultisigHash(2, keychains), account.Hash)
	require.Equal(t, uint32(5), account.UnusedPoolSize)

	// the two reserved bins exist at fixed indices with the account's hash
	// formula applied to their own minsigs
	require.Len(t, bins, 2)
	require.Equal(t, uint32(domain.ChangeBinIndex), bins[0].Index)
	require.Equal(t, domain.ChangeBinName, bins[0].Name)
	require.True(t, bins[0].IsChange())
	require.Equal(t, uint32(domain.DefaultBinIndex), bins[1].Index)
	require.Equal(t, domain.DefaultBinName, bins[1].Name)
	require.False(t, bins[1].IsChange())
	for _, bin := range bins {
		require.Equal(t, expectedMultisigHash(2, keychains), bin.Hash)
	}
}

func TestAccountHashIgnoresKeychainOrder(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 3)
	shuffled := []*domain.Keychain{keychains[2], keychains[0], keychains[1]}

	account1, _, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "a", MinSigs: 2, Keychains: keychains, UnusedPoolSize: 1,
	})
	require.NoError(t, err)
	account2, _, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "b", MinSigs: 2, Keychains: shuffled, UnusedPoolSize: 1,
	})
	require.NoError(t, err)
	require.Equal(t, account1.Hash, account2.Hash)
}

func TestFailingNewAccount(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 2)
	tests := []struct {
		opts          domain.NewAccountOpts
		expectedError error
	}{
		{
			domain.NewAccountOpts{Name: "x", MinSigs: 0, Keychains: keychains},
			domain.ErrInvalidMultisig,
		},
		{
			domain.NewAccountOpts{Name: "x", MinSigs: 3, Keychains: keychains},
			domain.ErrInvalidMultisig,
		},
		{
			domain.NewAccountOpts{Name: "x", MinSigs: 1},
			domain.ErrInvalidMultisig,
		},
	}
	for _, tt := range tests {
		_, _, err := domain.NewAccount(tt.opts)
		require.EqualError(t, err, tt.expectedError.Error())
	}
}

func TestDeriveSigningScriptSingleSig(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 1)
	account, bins, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "single", MinSigs: 1, Keychains: keychains, UnusedPoolSize: 1,
	})
	require.NoError(t, err)
	account.ID = 1
	defaultBin := bins[1]
	defaultBin.ID = 2

	script, keys, err := domain.DeriveSigningScript(domain.DeriveSigningScriptOpts{
		Account:     account,
		Bin:         defaultBin,
		Keychains:   keychains,
		ScriptIndex: 0,
		Network:     &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScriptStatusUnused, script.Status)
	require.Empty(t, script.RedeemScript)
	require.Equal(t, uint32(1), script.MinSigs)

	// the output script is the P2PKH over the pubkey derived at
	// [bin.Index, scriptIndex]
	pubKey, err := keychains[0].GetSigningPublicKey(
		0, wallet.DerivationPath{defaultBin.Index},
	)
	require.NoError(t, err)
	pair, err := wallet.P2PKHScriptPair(wallet.P2PKHScriptPairOpts{
		PubKey:  pubKey,
		Network: &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	require.Equal(t, pair.TxOutScript, script.TxOutScript)

	require.Len(t, keys, 1)
	require.Equal(t, keychains[0].ID, keys[0].KeychainID)
	require.Equal(t, []uint32{defaultBin.Index}, keys[0].DerivationPath)
	require.Equal(t, uint32(0), keys[0].Index)
	require.Equal(t, pubKey, keys[0].PubKey)
	require.True(t, keys[0].IsPrivate)
}

func TestDeriveSigningScriptMultisig(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 3)
	account, bins, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "multi", MinSigs: 2, Keychains: keychains, UnusedPoolSize: 1,
	})
	require.NoError(t, err)
	changeBin := bins[0]

	script, keys, err := domain.DeriveSigningScript(domain.DeriveSigningScriptOpts{
		Account:     account,
		Bin:         changeBin,
		Keychains:   keychains,
		ScriptIndex: 4,
		Network:     &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ScriptStatusChange, script.Status)
	require.NotEmpty(t, script.RedeemScript)
	require.Equal(t, uint32(2), script.MinSigs)
	require.Len(t, keys, 3)
	require.Len(t, script.PubKeys, 3)
	for i := 0; i < len(script.PubKeys)-1; i++ {
		require.True(t, bytes.Compare(script.PubKeys[i], script.PubKeys[i+1]) < 0)
	}

	// the keychain set order does not change the derived scripts
	shuffled := []*domain.Keychain{keychains[1], keychains[2], keychains[0]}
	sameScript, _, err := domain.DeriveSigningScript(domain.DeriveSigningScriptOpts{
		Account:     account,
		Bin:         changeBin,
		Keychains:   shuffled,
		ScriptIndex: 4,
		Network:     &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	require.Equal(t, script.TxOutScript, sameScript.TxOutScript)
	require.Equal(t, script.TxInScript, sameScript.TxInScript)
}

func TestScriptStatusAdvance(t *testing.T) {
	t.Parallel()

	script := &domain.SigningScript{Status: domain.ScriptStatusUnused}
	script.Issue("tip jar", false)
	require.Equal(t, domain.ScriptStatusIssued, script.Status)
	require.Equal(t, "tip jar", script.Label)

	require.True(t, script.MarkUsed())
	require.Equal(t, domain.ScriptStatusUsed, script.Status)
	require.False(t, script.MarkUsed())

	change := &domain.SigningScript{Status: domain.ScriptStatusChange}
	change.Issue("", true)
	require.Equal(t, domain.ScriptStatusChange, change.Status)
}

func TestNewAccountBin(t *testing.T) {
	t.Parallel()

	keychains := newTestKeychains(t, 2)
	account, _, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "acc", MinSigs: 2, Keychains: keychains, UnusedPoolSize: 1,
	})
	require.NoError(t, err)
	account.ID = 9

	hashes := [][]byte{keychains[0].Hash, keychains[1].Hash}
	bin, err := domain.NewAccountBin(domain.NewAccountBinOpts{
		Account:        account,
		Index:          domain.FirstCustomBinIndex,
		Name:           "invoices",
		KeychainHashes: hashes,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(9), bin.AccountID)
	require.Equal(t, account.Hash, bin.Hash)

	_, err = domain.NewAccountBin(domain.NewAccountBinOpts{
		Account:        account,
		Index:          domain.ChangeBinIndex,
		Name:           "bad",
		KeychainHashes: hashes,
	})
	require.EqualError(t, err, domain.ErrAccountBinAlreadyExists.Error())
}
