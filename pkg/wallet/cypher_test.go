package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	secret := []byte("super secret chain code material")
	lockKey := []byte("passphrase")

	cypherText, salt, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: secret,
		LockKey:   lockKey,
	})
	require.NoError(t, err)
	require.NotEmpty(t, cypherText)
	require.Len(t, salt, 32)
	require.NotEqual(t, secret, cypherText)

	plainText, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: cypherText,
		LockKey:    lockKey,
		Salt:       salt,
	})
	require.NoError(t, err)
	require.Equal(t, secret, plainText)
}

func TestEncryptWithFixedSalt(t *testing.T) {
	t.Parallel()

	secret := []byte{0x01, 0x02, 0x03}
	lockKey := []byte("key")
	salt := make([]byte, 32)
	for i := range salt {
		salt[i] = byte(i)
	}

	cypherText, usedSalt, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: secret,
		LockKey:   lockKey,
		Salt:      salt,
	})
	require.NoError(t, err)
	require.Equal(t, salt, usedSalt)

	plainText, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: cypherText,
		LockKey:    lockKey,
		Salt:       salt,
	})
	require.NoError(t, err)
	require.Equal(t, secret, plainText)
}

func TestDecryptWithWrongKey(t *testing.T) {
	t.Parallel()

	cypherText, salt, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: []byte("secret"),
		LockKey:   []byte("right key"),
	})
	require.NoError(t, err)

	plainText, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: cypherText,
		LockKey:    []byte("wrong key"),
		Salt:       salt,
	})
	if err == nil {
		// CBC padding may accidentally survive a wrong key, the plaintext
		// never does
		require.NotEqual(t, []byte("secret"), plainText)
	}
}

func TestFailingEncrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opts          wallet.EncryptOpts
		expectedError error
	}{
		{
			wallet.EncryptOpts{PlainText: nil, LockKey: []byte("key")},
			wallet.ErrNullPlainText,
		},
		{
			wallet.EncryptOpts{PlainText: []byte("text"), LockKey: nil},
			wallet.ErrNullPassphrase,
		},
	}

	for _, tt := range tests {
		_, _, err := wallet.Encrypt(tt.opts)
		require.EqualError(t, err, tt.expectedError.Error())
	}
}

func TestFailingDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opts          wallet.DecryptOpts
		expectedError error
	}{
		{
			wallet.DecryptOpts{CypherText: nil, LockKey: []byte("key")},
			wallet.ErrNullCypherText,
		},
		{
			wallet.DecryptOpts{
				CypherText: []byte{0x01, 0x02, 0x03},
				LockKey:    []byte("key"),
			},
			wallet.ErrInvalidCypherText,
		},
		{
			wallet.DecryptOpts{
				CypherText: make([]byte, 48),
				LockKey:    nil,
			},
			wallet.ErrNullPassphrase,
		},
	}

	for _, tt := range tests {
		_, err := wallet.Decrypt(tt.opts)
		require.EqualError(t, err, tt.expectedError.Error())
	}
}
