package domain

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// IsPrivate returns whether the keychain holds private key material, plain
// or encrypted.
func (k *Keychain) IsPrivate() bool {
	return len(k.PrivKey) > 0 || len(k.PrivKeyCypher) > 0
}

// IsChainCodeLocked returns whether the chain code is encrypted and not
// currently unlocked.
func (k *Keychain) IsChainCodeLocked() bool {
	return len(k.ChainCodeCypher) > 0 && len(k.ChainCode) <= 0
}

// IsPrivateKeyLocked returns whether the private key is encrypted and not
// currently unlocked.
func (k *Keychain) IsPrivateKeyLocked() bool {
	return len(k.PrivKeyCypher) > 0 && len(k.PrivKey) <= 0
}

// IsLocked returns whether any secret of the keychain is locked.
func (k *Keychain) IsLocked() bool {
	return k.IsChainCodeLocked() || k.IsPrivateKeyLocked()
}

// IsLockable returns whether the keychain carries encrypted secrets, so
// that locking and unlocking have an effect on it.
func (k *Keychain) IsLockable() bool {
	return len(k.ChainCodeCypher) > 0 || len(k.PrivKeyCypher) > 0
}

// SetChainCodeUnlockKey encrypts the chain code under the provided lock key.
// It is allowed only before the keychain is first persisted.
func (k *Keychain) SetChainCodeUnlockKey(lockKey, salt []byte) error {
	if k.ID != 0 || len(k.ChainCodeCypher) > 0 {
		return ErrAlreadyEncrypted
	}
	cypher, usedSalt, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: k.ChainCode,
		LockKey:   lockKey,
		Salt:      salt,
	})
	if err != nil {
		return err
	}
	k.ChainCodeCypher, k.ChainCodeSalt = cypher, usedSalt
	return nil
}

// SetPrivateKeyUnlockKey encrypts the private key under the provided lock
// key. It is allowed only before the keychain is first persisted.
func (k *Keychain) SetPrivateKeyUnlockKey(lockKey, salt []byte) error {
	if !k.IsPrivate() {
		return ErrKeychainNotPrivate
	}
	if k.ID != 0 || len(k.PrivKeyCypher) > 0 {
		return ErrAlreadyEncrypted
	}
	cypher, usedSalt, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText: k.PrivKey,
		LockKey:   lockKey,
		Salt:      salt,
	})
	if err != nil {
		return err
	}
	k.PrivKeyCypher, k.PrivKeySalt = cypher, usedSalt
	return nil
}

func (k *Keychain) encryptSecrets(lockKey, salt []byte) error {
	if err := k.SetChainCodeUnlockKey(lockKey, salt); err != nil {
		return err
	}
	if k.IsPrivate() {
		return k.SetPrivateKeyUnlockKey(lockKey, salt)
	}
	return nil
}

// UnlockChainCode decrypts the chain code into its transient slot.
func (k *Keychain) UnlockChainCode(lockKey []byte) error {
	if len(k.ChainCodeCypher) <= 0 || len(k.ChainCode) > 0 {
		return nil
	}
	plain, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: k.ChainCodeCypher,
		LockKey:    lockKey,
		Salt:       k.ChainCodeSalt,
	})
	if err != nil {
		return ErrBadLockKey
	}
	if !bytes.Equal(keychainHash(k.PubKey, plain), k.Hash) {
		return ErrBadLockKey
	}
	k.ChainCode = plain
	return nil
}

// UnlockPrivateKey decrypts the private key into its transient slot.
func (k *Keychain) UnlockPrivateKey(lockKey []byte) error {
	if !k.IsPrivate() {
		return ErrKeychainNotPrivate
	}
	if len(k.PrivKeyCypher) <= 0 || len(k.PrivKey) > 0 {
		return nil
	}
	plain, err := wallet.Decrypt(wallet.DecryptOpts{
		CypherText: k.PrivKeyCypher,
		LockKey:    lockKey,
		Salt:       k.PrivKeySalt,
	})
	if err != nil {
		return ErrBadLockKey
	}
	node := &wallet.NodeKey{PrivKey: plain, ChainCode: k.ChainCode}
	if privKey, err := node.ECPrivKey(); err != nil ||
		!bytes.Equal(privKey.PubKey().SerializeCompressed(), k.PubKey) {
		zeroBytes(plain)
		return ErrBadLockKey
	}
	k.PrivKey = plain
	return nil
}

// Unlock decrypts every locked secret of the keychain with the same key.
func (k *Keychain) Unlock(lockKey []byte) error {
	if err := k.UnlockChainCode(lockKey); err != nil {
		return err
	}
	if k.IsPrivate() {
		return k.UnlockPrivateKey(lockKey)
	}
	return nil
}

// LockChainCode wipes the transient chain code slot. It is a no-op for
// keychains persisted without encryption.
func (k *Keychain) LockChainCode() {
	if len(k.ChainCodeCypher) <= 0 {
		return
	}
	zeroBytes(k.ChainCode)
	k.ChainCode = nil
}

// LockPrivateKey wipes the transient private key slot.
func (k *Keychain) LockPrivateKey() {
	if len(k.PrivKeyCypher) <= 0 {
		return
	}
	zeroBytes(k.PrivKey)
	k.PrivKey = nil
}

// Lock wipes every transient secret slot of the keychain.
func (k *Keychain) Lock() {
	k.LockChainCode()
	k.LockPrivateKey()
}

// NodeKey materializes the keychain as a BIP32 node. It requires the chain
// code unlocked, and the private key unlocked when getPrivate is set.
func (k *Keychain) NodeKey(getPrivate bool) (*wallet.NodeKey, error) {
	if k.IsChainCodeLocked() {
		return nil, ErrKeychainLocked
	}
	node := &wallet.NodeKey{
		PubKey:    k.PubKey,
		ChainCode: k.ChainCode,
		Depth:     k.Depth,
		ParentFP:  k.ParentFP,
		ChildNum:  k.ChildNum,
	}
	if getPrivate {
		if !k.IsPrivate() {
			return nil, ErrKeychainNotPrivate
		}
		if k.IsPrivateKeyLocked() {
			return nil, ErrKeychainLocked
		}
		node.PrivKey = k.PrivKey
	}
	return node, nil
}

// DeriveChild spawns the child keychain at the provided index. The child
// holds its secrets in the transient slots only; it belongs to the current
// session unless the caller encrypts and persists it explicitly.
func (k *Keychain) DeriveChild(name string, index uint32, getPrivate bool) (*Keychain, error) {
	node, err := k.NodeKey(getPrivate)
	if err != nil {
		return nil, err
	}
	childNode, err := node.Derive(wallet.DeriveOpts{
		Index:      index,
		GetPrivate: getPrivate,
	})
	if err != nil {
		if err == wallet.ErrNullPrivKey && k.IsPrivateKeyLocked() {
			return nil, ErrKeychainLocked
		}
		return nil, err
	}

	rootID := k.RootID
	if rootID == 0 {
		rootID = k.ID
	}
	path := make([]uint32, 0, len(k.DerivationPath)+1)
	path = append(path, k.DerivationPath...)
	path = append(path, index)

	child := &Keychain{
		Name:           name,
		Depth:          childNode.Depth,
		ParentFP:       childNode.ParentFP,
		ChildNum:       childNode.ChildNum,
		PubKey:         childNode.PubKey,
		ChainCode:      childNode.ChainCode,
		PrivKey:        childNode.PrivKey,
		ParentID:       k.ID,
		RootID:         rootID,
		DerivationPath: path,
		Hidden:         k.Hidden,
	}
	child.Hash = keychainHash(child.PubKey, child.ChainCode)
	return child, nil
}

// GetSigningPrivateKey walks the keychain along path and derives the private
// key of child index.
func (k *Keychain) GetSigningPrivateKey(
	index uint32, path wallet.DerivationPath,
) ([]byte, error) {
	node, err := k.NodeKey(true)
	if err != nil {
		return nil, err
	}
	node, err = node.DerivePath(path.Extend(index), true)
	if err != nil {
		return nil, err
	}
	return node.PrivKey, nil
}

// GetSigningPublicKey mirrors GetSigningPrivateKey over the public chain.
func (k *Keychain) GetSigningPublicKey(
	index uint32, path wallet.DerivationPath,
) ([]byte, error) {
	node, err := k.NodeKey(false)
	if err != nil {
		return nil, err
	}
	node, err = node.DerivePath(path.Extend(index), false)
	if err != nil {
		return nil, err
	}
	return node.PubKey, nil
}

// ExtendedKey exports the keychain in the 78-byte BIP32 serialization,
// base58check encoded with the network's version bytes.
func (k *Keychain) ExtendedKey(getPrivate bool, net *chaincfg.Params) (string, error) {
	node, err := k.NodeKey(getPrivate)
	if err != nil {
		return "", err
	}
	return node.ExtendedKey(wallet.ExtendedKeyOpts{
		Private: getPrivate,
		Network: net,
	})
}

// StrippedForStorage returns a copy safe to persist: transient plain slots
// are dropped whenever the matching cypher is present.
func (k *Keychain) StrippedForStorage() *Keychain {
	stored := *k
	if len(stored.ChainCodeCypher) > 0 {
		stored.ChainCode = nil
	}
	if len(stored.PrivKeyCypher) > 0 {
		stored.PrivKey = nil
	}
	return &stored
}

// StrippedForExport returns a copy carrying public material only: the
// private key is dropped in both plain and cypher form, the chain code
// travels as ciphertext when one is present.
func (k *Keychain) StrippedForExport() *Keychain {
	stored := *k.StrippedForStorage()
	stored.PrivKey = nil
	stored.PrivKeyCypher = nil
	stored.PrivKeySalt = nil
	return &stored
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
