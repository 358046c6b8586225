package domain_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

func newTestMsgTx(t *testing.T, sigScript []byte) *wire.MsgTx {
	t.Helper()
	msg := wire.NewMsgTx(wire.TxVersion)
	hash, err := chainhash.NewHashFromStr(
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
	)
	require.NoError(t, err)
	msg.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: 0},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	msg.AddTxOut(wire.NewTxOut(50000, make([]byte, 25)))
	return msg
}

func TestUnsignedTxHashIsScriptIndependent(t *testing.T) {
	t.Parallel()

	unsigned := newTestMsgTx(t, nil)
	signed := newTestMsgTx(t, []byte{0x01, 0x02, 0x03})

	require.Equal(
		t, domain.UnsignedTxHash(unsigned), domain.UnsignedTxHash(signed),
	)
	require.NotEqual(t, domain.TxHash(unsigned), domain.TxHash(signed))
}

func TestSerializeParseRoundTrip(t *testing.T) {
	t.Parallel()

	msg := newTestMsgTx(t, []byte{0xaa, 0xbb})
	raw, err := domain.SerializeTx(msg)
	require.NoError(t, err)

	parsed, err := domain.ParseRawTx(raw)
	require.NoError(t, err)
	reserialized, err := domain.SerializeTx(parsed)
	require.NoError(t, err)
	require.Equal(t, raw, reserialized)
}

func TestNewTxFromMsgRoundTrip(t *testing.T) {
	t.Parallel()

	msg := newTestMsgTx(t, []byte{0x51})
	tx, ins, outs, err := domain.NewTxFromMsg(msg, 42)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusUnsigned, tx.Status)
	require.Equal(t, int64(42), tx.Timestamp)
	require.Empty(t, tx.Hash)
	require.Len(t, ins, 1)
	require.Len(t, outs, 1)

	rebuilt, err := domain.ToMsgTx(tx, ins, outs)
	require.NoError(t, err)
	require.Equal(t, domain.TxHash(msg), domain.TxHash(rebuilt))
}

func TestFailingNewTxFromMsg(t *testing.T) {
	t.Parallel()

	empty := wire.NewMsgTx(wire.TxVersion)
	_, _, _, err := domain.NewTxFromMsg(empty, 0)
	require.EqualError(t, err, domain.ErrInvalidTx.Error())
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    domain.TxStatus
		to      domain.TxStatus
		allowed bool
	}{
		{domain.TxStatusUnsigned, domain.TxStatusUnsent, true},
		{domain.TxStatusUnsent, domain.TxStatusSent, true},
		{domain.TxStatusSent, domain.TxStatusPropagated, true},
		{domain.TxStatusUnsent, domain.TxStatusPropagated, true},
		{domain.TxStatusPropagated, domain.TxStatusConfirmed, true},
		{domain.TxStatusSent, domain.TxStatusConfirmed, true},
		{domain.TxStatusConfirmed, domain.TxStatusPropagated, true},
		{domain.TxStatusUnsigned, domain.TxStatusConflicting, true},
		{domain.TxStatusPropagated, domain.TxStatusConflicting, true},
		{domain.TxStatusConflicting, domain.TxStatusCanceled, true},
		{domain.TxStatusConflicting, domain.TxStatusConfirmed, true},
		{domain.TxStatusSent, domain.TxStatusCanceled, true},

		{domain.TxStatusUnsent, domain.TxStatusUnsigned, false},
		{domain.TxStatusPropagated, domain.TxStatusSent, false},
		{domain.TxStatusConfirmed, domain.TxStatusConflicting, false},
		{domain.TxStatusConfirmed, domain.TxStatusCanceled, false},
		{domain.TxStatusCanceled, domain.TxStatusConfirmed, false},
		{domain.TxStatusUnsigned, domain.TxStatusConfirmed, false},
	}

	for _, tt := range tests {
		tx := &domain.Tx{Status: tt.from}
		changed, err := tx.UpdateStatus(tt.to)
		if tt.allowed {
			require.NoError(t, err, "%s -> %s", tt.from, tt.to)
			require.True(t, changed)
			require.Equal(t, tt.to, tx.Status)
		} else {
			require.EqualError(
				t, err, domain.ErrInvalidStatusTransition.Error(),
				"%s -> %s", tt.from, tt.to,
			)
			require.Equal(t, tt.from, tx.Status)
		}
	}

	// same status is a no-op, not an error
	tx := &domain.Tx{Status: domain.TxStatusSent}
	changed, err := tx.UpdateStatus(domain.TxStatusSent)
	require.NoError(t, err)
	require.False(t, changed)
}

func newTestSigningContext(t *testing.T) (
	*domain.SigningScript, []*domain.Keychain, *wire.MsgTx, []byte,
) {
	t.Helper()

	keychains := newTestKeychains(t, 3)
	account, bins, err := domain.NewAccount(domain.NewAccountOpts{
		Name: "multi", MinSigs: 2, Keychains: keychains, UnusedPoolSize: 1,
	})
	require.NoError(t, err)

	script, _, err := domain.DeriveSigningScript(domain.DeriveSigningScriptOpts{
		Account:     account,
		Bin:         bins[1],
		Keychains:   keychains,
		ScriptIndex: 0,
		Network:     &chaincfg.MainNetParams,
	})
	require.NoError(t, err)

	msg := newTestMsgTx(t, script.TxInScript)
	sigHash, err := domain.SigHashForInput(msg, 0, script)
	require.NoError(t, err)
	return script, keychains, msg, sigHash
}

func signWithKeychain(
	t *testing.T, keychain *domain.Keychain, binIndex uint32, sigHash []byte,
) ([]byte, []byte) {
	t.Helper()
	privKey, err := keychain.GetSigningPrivateKey(
		0, wallet.DerivationPath{binIndex},
	)
	require.NoError(t, err)
	pubKey, err := keychain.GetSigningPublicKey(
		0, wallet.DerivationPath{binIndex},
	)
	require.NoError(t, err)
	signature, err := wallet.SignHash(wallet.SignHashOpts{
		PrivKey: privKey,
		Hash:    sigHash,
	})
	require.NoError(t, err)
	return pubKey, append(signature, byte(txscript.SigHashAll))
}

func TestInputSignaturesLifecycle(t *testing.T) {
	t.Parallel()

	script, keychains, _, sigHash := newTestSigningContext(t)

	parsed, err := domain.ParseInputSignatures(script, script.TxInScript, sigHash)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.MissingCount())
	require.Len(t, parsed.MissingPubKeys(), 3)
	require.False(t, parsed.Complete())

	pubKey1, sig1 := signWithKeychain(t, keychains[0], domain.DefaultBinIndex, sigHash)
	require.True(t, parsed.AddSignature(pubKey1, sig1))
	require.Equal(t, 1, parsed.MissingCount())
	require.Len(t, parsed.MissingPubKeys(), 2)

	// an unknown pubkey is skipped
	foreign := newTestKeychains(t, 1)[0]
	foreignPub, err := foreign.GetSigningPublicKey(99, wallet.DerivationPath{2})
	require.NoError(t, err)
	require.False(t, parsed.AddSignature(foreignPub, sig1))

	pubKey2, sig2 := signWithKeychain(t, keychains[1], domain.DefaultBinIndex, sigHash)
	require.True(t, parsed.AddSignature(pubKey2, sig2))
	require.True(t, parsed.Complete())
	require.Equal(t, 0, parsed.MissingCount())

	// a third signature is dropped: the script needs exactly two
	pubKey3, sig3 := signWithKeychain(t, keychains[2], domain.DefaultBinIndex, sigHash)
	require.True(t, parsed.AddSignature(pubKey3, sig3))

	assembled, err := parsed.Assemble()
	require.NoError(t, err)
	pushes, err := wallet.ScriptPushes(assembled)
	require.NoError(t, err)
	require.Len(t, pushes, 3)
	require.NotEmpty(t, pushes[0])
	require.NotEmpty(t, pushes[1])
	require.Equal(t, script.RedeemScript, pushes[2])

	// reparsing the assembled script recovers both signatures
	reparsed, err := domain.ParseInputSignatures(script, assembled, sigHash)
	require.NoError(t, err)
	require.True(t, reparsed.Complete())
}

func TestParseInputSignaturesSkipsUnknown(t *testing.T) {
	t.Parallel()

	script, _, _, sigHash := newTestSigningContext(t)

	// a signature from a keychain outside the script verifies against no
	// slot and is silently dropped
	foreign, err := domain.NewKeychain(domain.NewKeychainOpts{
		Name:    "foreign",
		Entropy: make([]byte, 32),
	})
	require.NoError(t, err)
	foreignPriv, err := foreign.GetSigningPrivateKey(0, wallet.DerivationPath{2})
	require.NoError(t, err)
	foreignSig, err := wallet.SignHash(wallet.SignHashOpts{
		PrivKey: foreignPriv,
		Hash:    sigHash,
	})
	require.NoError(t, err)

	sigScript, err := wallet.AssembleSigScript([][]byte{
		append(foreignSig, byte(txscript.SigHashAll)),
		{},
		script.RedeemScript,
	})
	require.NoError(t, err)

	parsed, err := domain.ParseInputSignatures(script, sigScript, sigHash)
	require.NoError(t, err)
	require.Empty(t, parsed.Sigs)
	require.Equal(t, 2, parsed.MissingCount())
}

func TestShuffleReassignsIndexes(t *testing.T) {
	t.Parallel()

	ins := []*domain.TxIn{
		{TxIndex: 0, OutIndex: 0},
		{TxIndex: 1, OutIndex: 1},
		{TxIndex: 2, OutIndex: 2},
	}
	domain.ShuffleTxIns(ins)
	for i, in := range ins {
		require.Equal(t, uint32(i), in.TxIndex)
	}

	outs := []*domain.TxOut{
		{TxIndex: 0, Value: 1},
		{TxIndex: 1, Value: 2},
	}
	domain.ShuffleTxOuts(outs)
	for i, out := range outs {
		require.Equal(t, uint32(i), out.TxIndex)
	}
}

func TestRecomputeStatus(t *testing.T) {
	t.Parallel()

	tx := &domain.Tx{Status: domain.TxStatusUnsigned}
	require.True(t, tx.RecomputeStatus(true, false, false))
	require.Equal(t, domain.TxStatusUnsent, tx.Status)

	require.True(t, tx.RecomputeStatus(true, true, false))
	require.Equal(t, domain.TxStatusConfirmed, tx.Status)

	// reorg: block gone, status falls back
	require.True(t, tx.RecomputeStatus(true, false, false))
	require.Equal(t, domain.TxStatusPropagated, tx.Status)

	require.True(t, tx.RecomputeStatus(true, false, true))
	require.Equal(t, domain.TxStatusConflicting, tx.Status)
}
