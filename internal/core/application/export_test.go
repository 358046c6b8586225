package application_test

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/application"
	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

// export then re-import reproduces identical script bytes: the issued range
// first, the lookahead pool on top.
func TestExportImportAccountRoundTrip(t *testing.T) {
	source := newTestVault(t)

	require.NoError(t, source.NewKeychain(ctx, "k1", zeroEntropy(), nil, nil))
	require.NoError(t, source.NewAccount(ctx, "A", 1, []string{"k1"}, 5, 7700))

	// issue ten scripts so the default bin holds 10 issued + 5 lookahead
	for i := 0; i < 10; i++ {
		_, _, err := source.IssueNewScript(ctx, "A", "")
		require.NoError(t, err)
	}

	bundlePath := filepath.Join(t.TempDir(), "account.bundle")
	require.NoError(t, source.ExportAccount(ctx, "A", "A", bundlePath))

	target := application.NewVaultService(&chaincfg.MainNetParams)
	require.NoError(t, target.Create(""))
	t.Cleanup(target.Close)
	require.NoError(t, target.ImportAccount(ctx, "A", bundlePath, nil))

	exists, err := target.AccountExists(ctx, "A")
	require.NoError(t, err)
	require.True(t, exists)

	sourceScripts, err := source.ListSigningScripts(ctx, "A")
	require.NoError(t, err)
	targetScripts, err := target.ListSigningScripts(ctx, "A")
	require.NoError(t, err)

	index := func(scripts []application.SigningScriptInfo) map[string]map[uint32]application.SigningScriptInfo {
		byBin := make(map[string]map[uint32]application.SigningScriptInfo)
		for _, script := range scripts {
			if byBin[script.Bin] == nil {
				byBin[script.Bin] = make(map[uint32]application.SigningScriptInfo)
			}
			byBin[script.Bin][script.Index] = script
		}
		return byBin
	}
	sourceByBin, targetByBin := index(sourceScripts), index(targetScripts)

	// every issued script of the source is reproduced byte for byte
	for i := uint32(0); i < 10; i++ {
		sourceScript := sourceByBin[domain.DefaultBinName][i]
		targetScript := targetByBin[domain.DefaultBinName][i]
		require.Equal(t, sourceScript.TxOutScript, targetScript.TxOutScript)
		require.Equal(t, sourceScript.Address, targetScript.Address)
		require.Equal(t, domain.ScriptStatusIssued, targetScript.Status)
	}
	// issued range plus lookahead pool
	require.Len(t, targetByBin[domain.DefaultBinName], 15)
	unused, err := target.ListSigningScripts(ctx, "A", domain.ScriptStatusUnused)
	require.NoError(t, err)
	require.Len(t, unused, 5)

	// imported keychains are hidden
	visible, err := target.ListKeychains(ctx, false)
	require.NoError(t, err)
	require.Empty(t, visible)
	all, err := target.ListKeychains(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Hidden)
	require.False(t, all[0].IsPrivate)

	// issuing on the imported account continues the sequence identically
	_, targetNext, err := target.IssueNewScript(ctx, "A", "next")
	require.NoError(t, err)
	_, sourceNext, err := source.IssueNewScript(ctx, "A", "next")
	require.NoError(t, err)
	require.Equal(t, sourceNext, targetNext)
}

// exported bundles of encrypted keychains carry the chain code as
// ciphertext, and the import side unlocks it.
func TestExportImportEncryptedKeychain(t *testing.T) {
	source := newTestVault(t)
	lockKey := []byte("bundle lock")

	require.NoError(t, source.NewKeychain(ctx, "k1", zeroEntropy(), lockKey, nil))
	require.NoError(t, source.NewAccount(ctx, "A", 1, []string{"k1"}, 3, 0))

	bundlePath := filepath.Join(t.TempDir(), "enc.bundle")
	require.NoError(t, source.ExportAccount(ctx, "A", "A", bundlePath))

	// without the lock key the import cannot derive scripts
	locked := application.NewVaultService(&chaincfg.MainNetParams)
	require.NoError(t, locked.Create(""))
	t.Cleanup(locked.Close)
	require.Error(t, locked.ImportAccount(ctx, "A", bundlePath, nil))

	target := application.NewVaultService(&chaincfg.MainNetParams)
	require.NoError(t, target.Create(""))
	t.Cleanup(target.Close)
	require.NoError(t, target.ImportAccount(ctx, "A", bundlePath, lockKey))

	sourceScripts, err := source.ListSigningScripts(
		ctx, "A", domain.ScriptStatusUnused,
	)
	require.NoError(t, err)
	targetScripts, err := target.ListSigningScripts(
		ctx, "A", domain.ScriptStatusUnused,
	)
	require.NoError(t, err)
	require.Equal(t, len(sourceScripts), len(targetScripts))
	for i := range sourceScripts {
		require.Equal(t, sourceScripts[i].TxOutScript, targetScripts[i].TxOutScript)
	}
}
