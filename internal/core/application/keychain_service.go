package application

import (
	"context"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// GenerateMnemonic returns a fresh BIP39 mnemonic of the given entropy
// size, usable with NewKeychainFromMnemonic.
func GenerateMnemonic(entropySize int) ([]string, error) {
	return wallet.NewMnemonic(wallet.NewMnemonicOpts{EntropySize: entropySize})
}

// NewKeychain creates a root keychain from entropy. When lockKey is set the
// private key and chain code are encrypted independently before persistence
// and the keychain stays unlocked for the current session.
func (s *VaultService) NewKeychain(
	ctx context.Context, name string, entropy, lockKey, salt []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychain, err := domain.NewKeychain(domain.NewKeychainOpts{
		Name:    name,
		Entropy: entropy,
		LockKey: lockKey,
		Salt:    salt,
	})
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, repoManager.KeychainRepository().AddKeychain(ctx, keychain)
		},
	); err != nil {
		return err
	}

	s.cacheSecrets(keychain)
	return nil
}

// NewKeychainFromMnemonic creates a root keychain from the BIP39 seed of
// the provided mnemonic.
func (s *VaultService) NewKeychainFromMnemonic(
	ctx context.Context, name string, mnemonic []string, lockKey []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychain, err := domain.NewKeychainFromMnemonic(domain.NewKeychainFromMnemonicOpts{
		Name:     name,
		Mnemonic: mnemonic,
		LockKey:  lockKey,
	})
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, repoManager.KeychainRepository().AddKeychain(ctx, keychain)
		},
	); err != nil {
		return err
	}

	s.cacheSecrets(keychain)
	return nil
}

// ImportKeychainExtendedKey reconstructs a keychain from its base58check
// extended serialization.
func (s *VaultService) ImportKeychainExtendedKey(
	ctx context.Context, name, extendedKey string, lockKey []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychain, err := domain.ImportKeychain(domain.ImportKeychainOpts{
		Name:        name,
		ExtendedKey: extendedKey,
		LockKey:     lockKey,
	})
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, repoManager.KeychainRepository().AddKeychain(ctx, keychain)
		},
	); err != nil {
		return err
	}

	s.cacheSecrets(keychain)
	return nil
}

// ExportKeychainExtendedKey renders the 78-byte BIP32 serialization of a
// keychain, private when getPrivate is set.
func (s *VaultService) ExportKeychainExtendedKey(
	ctx context.Context, name string, getPrivate bool,
) (string, error) {
	repoManager, err := s.manager()
	if err != nil {
		return "", err
	}

	keychain, err := repoManager.KeychainRepository().GetKeychainByName(ctx, name)
	if err != nil {
		return "", err
	}
	s.hydrateSecrets(keychain)

	return keychain.ExtendedKey(getPrivate, s.network)
}

// UnlockKeychain decrypts the keychain secrets into the session.
func (s *VaultService) UnlockKeychain(
	ctx context.Context, name string, lockKey []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychain, err := repoManager.KeychainRepository().GetKeychainByName(ctx, name)
	if err != nil {
		return err
	}
	if err := keychain.Unlock(lockKey); err != nil {
		return err
	}

	s.cacheSecrets(keychain)
	return nil
}

// LockKeychain wipes the session secrets of a keychain.
func (s *VaultService) LockKeychain(ctx context.Context, name string) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychain, err := repoManager.KeychainRepository().GetKeychainByName(ctx, name)
	if err != nil {
		return err
	}

	s.unlockedMtx.Lock()
	defer s.unlockedMtx.Unlock()
	if secrets, ok := s.unlocked[keychain.ID]; ok {
		secrets.zero()
		delete(s.unlocked, keychain.ID)
	}
	return nil
}

// LockAll wipes every session secret.
func (s *VaultService) LockAll() {
	s.lockAll()
}

func (s *VaultService) lockAll() {
	s.unlockedMtx.Lock()
	defer s.unlockedMtx.Unlock()
	for id, secrets := range s.unlocked {
		secrets.zero()
		delete(s.unlocked, id)
	}
}

// cacheSecrets captures the transient plain slots of a keychain for the
// duration of the session, keyed by the keychain id.
func (s *VaultService) cacheSecrets(keychain *domain.Keychain) {
	if keychain.ID == 0 || !keychain.IsLockable() {
		return
	}
	secrets := &unlockedSecrets{}
	if len(keychain.ChainCodeCypher) > 0 && len(keychain.ChainCode) > 0 {
		secrets.chainCode = append([]byte(nil), keychain.ChainCode...)
	}
	if len(keychain.PrivKeyCypher) > 0 && len(keychain.PrivKey) > 0 {
		secrets.privKey = append([]byte(nil), keychain.PrivKey...)
	}
	if len(secrets.chainCode) <= 0 && len(secrets.privKey) <= 0 {
		return
	}

	s.unlockedMtx.Lock()
	defer s.unlockedMtx.Unlock()
	if old, ok := s.unlocked[keychain.ID]; ok {
		old.zero()
	}
	s.unlocked[keychain.ID] = secrets
}

// hydrateSecrets restores cached session secrets into the transient slots
// of a freshly loaded keychain.
func (s *VaultService) hydrateSecrets(keychain *domain.Keychain) {
	s.unlockedMtx.Lock()
	defer s.unlockedMtx.Unlock()
	secrets, ok := s.unlocked[keychain.ID]
	if !ok {
		return
	}
	if len(keychain.ChainCode) <= 0 && len(secrets.chainCode) > 0 {
		keychain.ChainCode = append([]byte(nil), secrets.chainCode...)
	}
	if len(keychain.PrivKey) <= 0 && len(secrets.privKey) > 0 {
		keychain.PrivKey = append([]byte(nil), secrets.privKey...)
	}
}

func (u *unlockedSecrets) zero() {
	for i := range u.chainCode {
		u.chainCode[i] = 0
	}
	for i := range u.privKey {
		u.privKey[i] = 0
	}
	u.chainCode, u.privKey = nil, nil
}
