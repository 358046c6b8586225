package application

import (
	"context"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// NewAccount creates an account over the named keychains with its two
// reserved bins and fills the lookahead pool of both.
func (s *VaultService) NewAccount(
	ctx context.Context, name string, minSigs uint32, keychainNames []string,
	unusedPoolSize uint32, timeCreated int64,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	keychains, err := s.keychainsByNames(ctx, keychainNames)
	if err != nil {
		return err
	}

	account, bins, err := domain.NewAccount(domain.NewAccountOpts{
		Name:           name,
		MinSigs:        minSigs,
		Keychains:      keychains,
		UnusedPoolSize: unusedPoolSize,
		TimeCreated:    timeCreated,
	})
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			accountRepo := repoManager.AccountRepository()
			if err := accountRepo.AddAccount(ctx, account, bins); err != nil {
				return nil, err
			}
			for _, bin := range bins {
				if err := s.refillBinPool(ctx, account, bin, keychains); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
	); err != nil {
		return err
	}

	s.publishEvents(newAccountsUpdatedEvent([]string{name}))
	return nil
}

// NewAccountBin appends a custom bin to an account at the next free index
// and fills its lookahead pool.
func (s *VaultService) NewAccountBin(
	ctx context.Context, accountName, binName string,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			accountRepo := repoManager.AccountRepository()
			account, err := accountRepo.GetAccountByName(ctx, accountName)
			if err != nil {
				return nil, err
			}
			bins, err := accountRepo.GetAccountBins(ctx, account.ID)
			if err != nil {
				return nil, err
			}
			nextIndex := uint32(domain.FirstCustomBinIndex)
			for _, bin := range bins {
				if bin.Name == binName {
					return nil, domain.ErrAccountBinAlreadyExists
				}
				if bin.Index >= nextIndex {
					nextIndex = bin.Index + 1
				}
			}

			keychains, err := s.accountKeychains(ctx, account)
			if err != nil {
				return nil, err
			}
			keychainHashes := make([][]byte, 0, len(keychains))
			for _, keychain := range keychains {
				keychainHashes = append(keychainHashes, keychain.Hash)
			}

			bin, err := domain.NewAccountBin(domain.NewAccountBinOpts{
				Account:        account,
				Index:          nextIndex,
				Name:           binName,
				KeychainHashes: keychainHashes,
			})
			if err != nil {
				return nil, err
			}
			if err := accountRepo.AddAccountBin(ctx, bin); err != nil {
				return nil, err
			}
			return nil, s.refillBinPool(ctx, account, bin, keychains)
		},
	); err != nil {
		return err
	}

	s.publishEvents(newAccountsUpdatedEvent([]string{accountName}))
	return nil
}

// AccountExists ...
func (s *VaultService) AccountExists(ctx context.Context, name string) (bool, error) {
	repoManager, err := s.manager()
	if err != nil {
		return false, err
	}
	if _, err := repoManager.AccountRepository().GetAccountByName(ctx, name); err != nil {
		if err == domain.ErrAccountNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteAccount removes an account with its bins, its signing scripts and
// their keys. Scripts referenced by persisted transactions survive so that
// tracked history stays interpretable.
func (s *VaultService) DeleteAccount(ctx context.Context, name string) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			accountRepo := repoManager.AccountRepository()
			txRepo := repoManager.TransactionRepository()

			account, err := accountRepo.GetAccountByName(ctx, name)
			if err != nil {
				return nil, err
			}

			referenced := make(map[uint64]struct{})
			ownedOuts, err := txRepo.GetOwnedTxOuts(ctx)
			if err != nil {
				return nil, err
			}
			for _, out := range ownedOuts {
				if out.SigningScriptID != 0 {
					referenced[out.SigningScriptID] = struct{}{}
				}
			}

			bins, err := accountRepo.GetAccountBins(ctx, account.ID)
			if err != nil {
				return nil, err
			}
			for _, bin := range bins {
				scripts, err := accountRepo.GetSigningScriptsByBin(ctx, bin.ID)
				if err != nil {
					return nil, err
				}
				for _, script := range scripts {
					if _, ok := referenced[script.ID]; ok {
						continue
					}
					for _, keyID := range script.KeyIDs {
						if err := accountRepo.DeleteKey(ctx, keyID); err != nil {
							return nil, err
						}
					}
					if err := accountRepo.DeleteSigningScript(ctx, script.ID); err != nil {
						return nil, err
					}
				}
			}
			return nil, accountRepo.DeleteAccount(ctx, account.ID)
		},
	); err != nil {
		return err
	}

	s.publishEvents(newAccountsUpdatedEvent([]string{name}))
	return nil
}

// IssueNewScript issues the next signing script of the account's default
// bin and returns its address with the output script.
func (s *VaultService) IssueNewScript(
	ctx context.Context, accountName, label string,
) (string, []byte, error) {
	return s.issueScript(ctx, accountName, domain.DefaultBinName, label)
}

// IssueNewScriptForBin issues the next signing script of a named bin.
func (s *VaultService) IssueNewScriptForBin(
	ctx context.Context, accountName, binName, label string,
) (string, []byte, error) {
	return s.issueScript(ctx, accountName, binName, label)
}

func (s *VaultService) issueScript(
	ctx context.Context, accountName, binName, label string,
) (string, []byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return "", nil, err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			account, err := repoManager.AccountRepository().
				GetAccountByName(ctx, accountName)
			if err != nil {
				return nil, err
			}
			bin, err := s.accountBinByName(ctx, account, binName)
			if err != nil {
				return nil, err
			}
			return s.issueScriptForBin(ctx, account, bin, label)
		},
	)
	if err != nil {
		return "", nil, err
	}

	script := res.(*domain.SigningScript)
	address, err := wallet.ScriptAddress(wallet.ScriptAddressOpts{
		TxOutScript: script.TxOutScript,
		Network:     s.network,
	})
	if err != nil {
		return "", nil, err
	}

	s.publishEvents(newAccountsUpdatedEvent([]string{accountName}))
	return address, script.TxOutScript, nil
}

// issueScriptForBin selects the script at the bin's next issuable index,
// skipping scripts already used by incoming funds, labels it and refills
// the lookahead pool. Must run inside a write transaction.
func (s *VaultService) issueScriptForBin(
	ctx context.Context, account *domain.Account, bin *domain.AccountBin,
	label string,
) (*domain.SigningScript, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	repo := repoManager.AccountRepository()

	keychains, err := s.binKeychains(ctx, account, bin)
	if err != nil {
		return nil, err
	}

	var issued *domain.SigningScript
	for {
		if bin.NextScriptIndex >= bin.ScriptCount {
			script, err := s.deriveAndAddScript(
				ctx, account, bin, keychains, bin.ScriptCount,
			)
			if err != nil {
				return nil, err
			}
			bin.ScriptCount++
			issued = script
			break
		}
		script, err := repo.GetSigningScriptByBinIndex(ctx, bin.ID, bin.NextScriptIndex)
		if err != nil {
			return nil, err
		}
		if script.Status == domain.ScriptStatusUsed {
			bin.NextScriptIndex++
			continue
		}
		issued = script
		break
	}

	issued.Issue(label, bin.IsChange())
	if err := repo.UpdateSigningScript(ctx, issued); err != nil {
		return nil, err
	}
	bin.NextScriptIndex++
	if err := repo.UpdateAccountBin(ctx, bin); err != nil {
		return nil, err
	}
	if err := s.refillBinPool(ctx, account, bin, keychains); err != nil {
		return nil, err
	}
	return issued, nil
}

// refillBinPool tops the lookahead pool up: new scripts are derived at the
// top of the bin until the number of unissued scripts past the next
// issuable index reaches the account's pool size. Must run inside a write
// transaction.
func (s *VaultService) refillBinPool(
	ctx context.Context, account *domain.Account, bin *domain.AccountBin,
	keychains []*domain.Keychain,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	repo := repoManager.AccountRepository()

	scripts, err := repo.GetSigningScriptsByBin(ctx, bin.ID)
	if err != nil {
		return err
	}
	pooled := uint32(0)
	for _, script := range scripts {
		if script.Index < bin.NextScriptIndex {
			continue
		}
		if script.Status == domain.ScriptStatusUnused ||
			script.Status == domain.ScriptStatusChange {
			pooled++
		}
	}

	changed := false
	for pooled < account.UnusedPoolSize {
		if _, err := s.deriveAndAddScript(
			ctx, account, bin, keychains, bin.ScriptCount,
		); err != nil {
			return err
		}
		bin.ScriptCount++
		pooled++
		changed = true
	}
	if changed {
		return repo.UpdateAccountBin(ctx, bin)
	}
	return nil
}

func (s *VaultService) deriveAndAddScript(
	ctx context.Context, account *domain.Account, bin *domain.AccountBin,
	keychains []*domain.Keychain, index uint32,
) (*domain.SigningScript, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	repo := repoManager.AccountRepository()

	script, keys, err := domain.DeriveSigningScript(domain.DeriveSigningScriptOpts{
		Account:     account,
		Bin:         bin,
		Keychains:   keychains,
		ScriptIndex: index,
		Network:     s.network,
	})
	if err != nil {
		return nil, err
	}

	keyIDs := make([]uint64, 0, len(keys))
	for _, key := range keys {
		if err := repo.AddKey(ctx, key); err != nil {
			return nil, err
		}
		keyIDs = append(keyIDs, key.ID)
	}
	script.KeyIDs = keyIDs

	if err := repo.AddSigningScript(ctx, script); err != nil {
		return nil, err
	}
	return script, nil
}

func (s *VaultService) keychainsByNames(
	ctx context.Context, names []string,
) ([]*domain.Keychain, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	keychains := make([]*domain.Keychain, 0, len(names))
	for _, name := range names {
		keychain, err := repoManager.KeychainRepository().GetKeychainByName(ctx, name)
		if err != nil {
			return nil, err
		}
		s.hydrateSecrets(keychain)
		keychains = append(keychains, keychain)
	}
	return keychains, nil
}

func (s *VaultService) accountKeychains(
	ctx context.Context, account *domain.Account,
) ([]*domain.Keychain, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	keychains := make([]*domain.Keychain, 0, len(account.KeychainIDs))
	for _, id := range account.KeychainIDs {
		keychain, err := repoManager.KeychainRepository().GetKeychainByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.hydrateSecrets(keychain)
		keychains = append(keychains, keychain)
	}
	return keychains, nil
}

// binKeychains resolves the keychain set scripts of a bin derive from:
// imported bins carry their own transient set, every other bin uses the
// account's.
func (s *VaultService) binKeychains(
	ctx context.Context, account *domain.Account, bin *domain.AccountBin,
) ([]*domain.Keychain, error) {
	if len(bin.KeychainIDs) <= 0 {
		return s.accountKeychains(ctx, account)
	}
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	keychains := make([]*domain.Keychain, 0, len(bin.KeychainIDs))
	for _, id := range bin.KeychainIDs {
		keychain, err := repoManager.KeychainRepository().GetKeychainByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.hydrateSecrets(keychain)
		keychains = append(keychains, keychain)
	}
	return keychains, nil
}

func (s *VaultService) accountBinByName(
	ctx context.Context, account *domain.Account, binName string,
) (*domain.AccountBin, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	bins, err := repoManager.AccountRepository().GetAccountBins(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for i := range bins {
		if bins[i].Name == binName {
			return &bins[i], nil
		}
	}
	return nil, domain.ErrAccountBinNotFound
}
