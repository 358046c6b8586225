package application

import "errors"

var (
	// ErrVaultAlreadyExists ...
	ErrVaultAlreadyExists = errors.New("a vault already exists at the provided path")
	// ErrVaultNotFound ...
	ErrVaultNotFound = errors.New("no vault found at the provided path")
	// ErrVaultNotOpen ...
	ErrVaultNotOpen = errors.New("vault is not open")
	// ErrVaultAlreadyOpen ...
	ErrVaultAlreadyOpen = errors.New("vault is already open")
	// ErrMissingRecipients ...
	ErrMissingRecipients = errors.New("transaction must have at least one recipient")
	// ErrNoBlocks ...
	ErrNoBlocks = errors.New("the vault tracks no blocks yet")
)
