package domain

import "context"

// KeychainRepository persists keychains. Implementations must never store
// the transient plain slots while the matching cypher is set.
type KeychainRepository interface {
	AddKeychain(ctx context.Context, keychain *Keychain) error
	GetKeychainByID(ctx context.Context, id uint64) (*Keychain, error)
	GetKeychainByName(ctx context.Context, name string) (*Keychain, error)
	GetKeychainByHash(ctx context.Context, hash []byte) (*Keychain, error)
	GetAllKeychains(ctx context.Context, includeHidden bool) ([]Keychain, error)
	UpdateKeychain(ctx context.Context, keychain *Keychain) error
	DeleteKeychain(ctx context.Context, id uint64) error
}
