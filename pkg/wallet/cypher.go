package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/scrypt"
)

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText []byte
	LockKey   []byte
	Salt      []byte
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.LockKey) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt encrypts a secret with AES-256-CBC under a key stretched from the
// provided lock key. The random IV is prepended to the returned ciphertext;
// the salt used for stretching is returned alongside so that it can be
// persisted next to the ciphertext.
func Encrypt(opts EncryptOpts) (cypherText, salt []byte, err error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	key, salt, err := DeriveKey(opts.LockKey, opts.Salt)
	if err != nil {
		return nil, nil, err
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	padded := pkcs7Pad(opts.PlainText, aes.BlockSize)
	cypherText = make([]byte, aes.BlockSize+len(padded))
	copy(cypherText, iv)
	cipher.NewCBCEncrypter(blockCipher, iv).CryptBlocks(
		cypherText[aes.BlockSize:], padded,
	)

	return cypherText, salt, nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText []byte
	LockKey    []byte
	Salt       []byte
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if len(o.CypherText)%aes.BlockSize != 0 ||
		len(o.CypherText) < 2*aes.BlockSize {
		return ErrInvalidCypherText
	}
	if len(o.LockKey) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt reverses Encrypt with the same lock key and salt.
func Decrypt(opts DecryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	key, _, err := DeriveKey(opts.LockKey, opts.Salt)
	if err != nil {
		return nil, err
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv, data := opts.CypherText[:aes.BlockSize], opts.CypherText[aes.BlockSize:]
	plainText := make([]byte, len(data))
	cipher.NewCBCDecrypter(blockCipher, iv).CryptBlocks(plainText, data)

	return pkcs7Unpad(plainText, aes.BlockSize)
}

// DeriveKey stretches a lock key into a 32 byte symmetric key. A random
// 32 byte salt is generated when none is provided.
func DeriveKey(lockKey, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, 32)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	// 2^15 keeps unlock interactive while staying a real stretch. Check the
	// doc for other recommended values:
	// https://godoc.org/golang.org/x/crypto/scrypt
	key, err := scrypt.Key(lockKey, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidCypherText
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrInvalidCypherText
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrInvalidCypherText
		}
	}
	return data[:len(data)-padLen], nil
}
