package application

import (
	"context"
	"os"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/bufferutil"
)

// Record classes of the export bundle. Every class is serialized at
// version 1; readers accept anything up to the version they know.
const (
	recordClassKeychain   uint8 = 1
	recordClassAccount    uint8 = 2
	recordClassAccountBin uint8 = 3

	recordVersion uint8 = 1
)

// ExportAccount writes the export bundle of an account to path, carrying
// the provided alias as the account name. Bundles hold public material
// only: pubkeys, chain codes (as ciphertext when one is set) and hashes.
func (s *VaultService) ExportAccount(
	ctx context.Context, accountName, alias, path string,
) error {
	bundle, err := s.exportAccountBundle(ctx, accountName, alias)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bundle, 0600)
}

// ImportAccount reconstructs an account from a bundle file under the given
// name. Keychains travelling with the bundle are persisted hidden; the
// signing script pools are reissued deterministically so that scripts match
// the source byte for byte. A lock key is needed when the bundle carries
// encrypted chain codes.
func (s *VaultService) ImportAccount(
	ctx context.Context, name, path string, lockKey []byte,
) error {
	bundle, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.importAccountBundle(ctx, name, bundle, lockKey)
}

func (s *VaultService) exportAccountBundle(
	ctx context.Context, accountName, alias string,
) ([]byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	accountRepo := repoManager.AccountRepository()
	keychainRepo := repoManager.KeychainRepository()

	account, err := accountRepo.GetAccountByName(ctx, accountName)
	if err != nil {
		return nil, err
	}
	bins, err := accountRepo.GetAccountBins(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if len(alias) <= 0 {
		alias = account.Name
	}

	serializer := bufferutil.NewSerializer()
	serializer.BeginRecord(recordClassAccount, recordVersion)
	serializer.WriteString(alias)
	serializer.WriteUint32(account.MinSigs)
	serializer.WriteUint32(account.UnusedPoolSize)
	serializer.WriteUint64(uint64(account.TimeCreated))
	serializer.WriteVarBytes(account.Hash)
	serializer.WriteUint32(uint32(len(bins)))

	for _, bin := range bins {
		keychainIDs := bin.KeychainIDs
		if len(keychainIDs) <= 0 {
			keychainIDs = account.KeychainIDs
		}

		serializer.BeginRecord(recordClassAccountBin, recordVersion)
		serializer.WriteUint32(bin.Index)
		serializer.WriteString(bin.Name)
		serializer.WriteUint32(bin.NextScriptIndex)
		serializer.WriteUint32(bin.MinSigs)
		serializer.WriteVarBytes(bin.Hash)
		serializer.WriteUint32(uint32(len(keychainIDs)))

		for _, id := range keychainIDs {
			keychain, err := keychainRepo.GetKeychainByID(ctx, id)
			if err != nil {
				return nil, err
			}
			exported := keychain.StrippedForExport()

			serializer.BeginRecord(recordClassKeychain, recordVersion)
			serializer.WriteString(exported.Name)
			serializer.WriteUint8(exported.Depth)
			serializer.WriteUint32(exported.ParentFP)
			serializer.WriteUint32(exported.ChildNum)
			serializer.WriteVarBytes(exported.PubKey)
			serializer.WriteVarBytes(exported.ChainCode)
			serializer.WriteVarBytes(exported.ChainCodeCypher)
			serializer.WriteVarBytes(exported.ChainCodeSalt)
			serializer.WriteVarBytes(exported.Hash)
		}
	}

	return serializer.Bytes(), nil
}

type importedBin struct {
	index           uint32
	name            string
	nextScriptIndex uint32
	minSigs         uint32
	hash            []byte
	keychains       []*domain.Keychain
}

func (s *VaultService) importAccountBundle(
	ctx context.Context, name string, bundle, lockKey []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	deserializer := bufferutil.NewDeserializer(bundle)
	if _, err := deserializer.ExpectRecord(
		recordClassAccount, recordVersion,
	); err != nil {
		return err
	}

	bundleName, err := deserializer.ReadString()
	if err != nil {
		return err
	}
	if len(name) <= 0 {
		name = bundleName
	}
	minSigs, err := deserializer.ReadUint32()
	if err != nil {
		return err
	}
	poolSize, err := deserializer.ReadUint32()
	if err != nil {
		return err
	}
	timeCreated, err := deserializer.ReadUint64()
	if err != nil {
		return err
	}
	accountHash, err := deserializer.ReadVarBytes()
	if err != nil {
		return err
	}
	binCount, err := deserializer.ReadUint32()
	if err != nil {
		return err
	}

	bins := make([]*importedBin, 0, binCount)
	for i := uint32(0); i < binCount; i++ {
		bin, err := s.readImportedBin(deserializer, lockKey)
		if err != nil {
			return err
		}
		bins = append(bins, bin)
	}

	if _, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, s.applyImportedAccount(
				ctx, name, minSigs, poolSize, int64(timeCreated), accountHash, bins,
			)
		},
	); err != nil {
		return err
	}

	s.publishEvents(newAccountsUpdatedEvent([]string{name}))
	return nil
}

func (s *VaultService) readImportedBin(
	deserializer *bufferutil.Deserializer, lockKey []byte,
) (*importedBin, error) {
	if _, err := deserializer.ExpectRecord(
		recordClassAccountBin, recordVersion,
	); err != nil {
		return nil, err
	}

	bin := &importedBin{}
	var err error
	if bin.index, err = deserializer.ReadUint32(); err != nil {
		return nil, err
	}
	if bin.name, err = deserializer.ReadString(); err != nil {
		return nil, err
	}
	if bin.nextScriptIndex, err = deserializer.ReadUint32(); err != nil {
		return nil, err
	}
	if bin.minSigs, err = deserializer.ReadUint32(); err != nil {
		return nil, err
	}
	if bin.hash, err = deserializer.ReadVarBytes(); err != nil {
		return nil, err
	}
	keychainCount, err := deserializer.ReadUint32()
	if err != nil {
		return nil, err
	}

	for i := uint32(0); i < keychainCount; i++ {
		if _, err := deserializer.ExpectRecord(
			recordClassKeychain, recordVersion,
		); err != nil {
			return nil, err
		}
		keychain := &domain.Keychain{Hidden: true}
		if keychain.Name, err = deserializer.ReadString(); err != nil {
			return nil, err
		}
		if keychain.Depth, err = deserializer.ReadUint8(); err != nil {
			return nil, err
		}
		if keychain.ParentFP, err = deserializer.ReadUint32(); err != nil {
			return nil, err
		}
		if keychain.ChildNum, err = deserializer.ReadUint32(); err != nil {
			return nil, err
		}
		if keychain.PubKey, err = deserializer.ReadVarBytes(); err != nil {
			return nil, err
		}
		if keychain.ChainCode, err = deserializer.ReadVarBytes(); err != nil {
			return nil, err
		}
		if keychain.ChainCodeCypher, err = deserializer.ReadVarBytes(); err != nil {
			return nil, err
		}
		if keychain.ChainCodeSalt, err = deserializer.ReadVarBytes(); err != nil {
			return nil, err
		}
		if keychain.Hash, err = deserializer.ReadVarBytes(); err != nil {
			return nil, err
		}

		if len(keychain.ChainCodeCypher) > 0 && len(lockKey) > 0 {
			if err := keychain.UnlockChainCode(lockKey); err != nil {
				return nil, err
			}
		}
		bin.keychains = append(bin.keychains, keychain)
	}
	return bin, nil
}

// applyImportedAccount persists the reconstructed account. Keychains are
// matched to existing rows by hash, otherwise persisted hidden; the script
// sequences are reissued deterministically, issued range first, lookahead
// pool on top.
func (s *VaultService) applyImportedAccount(
	ctx context.Context, name string, minSigs, poolSize uint32,
	timeCreated int64, accountHash []byte, bins []*importedBin,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	accountRepo := repoManager.AccountRepository()
	keychainRepo := repoManager.KeychainRepository()

	if poolSize == 0 {
		poolSize = domain.DefaultUnusedPoolSize
	}

	resolveKeychains := func(keychains []*domain.Keychain) ([]uint64, []*domain.Keychain, error) {
		ids := make([]uint64, 0, len(keychains))
		resolved := make([]*domain.Keychain, 0, len(keychains))
		for _, keychain := range keychains {
			existing, err := keychainRepo.GetKeychainByHash(ctx, keychain.Hash)
			if err == nil {
				s.hydrateSecrets(existing)
				if len(existing.ChainCode) <= 0 && len(keychain.ChainCode) > 0 {
					existing.ChainCode = keychain.ChainCode
				}
				ids = append(ids, existing.ID)
				resolved = append(resolved, existing)
				continue
			}
			if err != domain.ErrKeychainNotFound {
				return nil, nil, err
			}
			if err := keychainRepo.AddKeychain(ctx, keychain); err != nil {
				return nil, nil, err
			}
			s.cacheSecrets(keychain)
			ids = append(ids, keychain.ID)
			resolved = append(resolved, keychain)
		}
		return ids, resolved, nil
	}

	account := &domain.Account{
		Name:           name,
		MinSigs:        minSigs,
		UnusedPoolSize: poolSize,
		TimeCreated:    timeCreated,
		Hash:           accountHash,
	}
	if len(bins) > 0 {
		ids, _, err := resolveKeychains(bins[0].keychains)
		if err != nil {
			return err
		}
		account.KeychainIDs = ids
	}

	accountBins := make([]*domain.AccountBin, 0, len(bins))
	binKeychains := make([][]*domain.Keychain, 0, len(bins))
	for _, imported := range bins {
		ids, resolved, err := resolveKeychains(imported.keychains)
		if err != nil {
			return err
		}
		accountBins = append(accountBins, &domain.AccountBin{
			Index:       imported.index,
			Name:        imported.name,
			MinSigs:     imported.minSigs,
			KeychainIDs: ids,
			Hash:        imported.hash,
		})
		binKeychains = append(binKeychains, resolved)
	}

	if err := accountRepo.AddAccount(ctx, account, accountBins); err != nil {
		return err
	}

	for i, bin := range accountBins {
		imported := bins[i]
		issuedStatus := domain.ScriptStatusIssued
		if bin.IsChange() {
			issuedStatus = domain.ScriptStatusChange
		}
		for index := uint32(0); index < imported.nextScriptIndex; index++ {
			script, err := s.deriveAndAddScript(
				ctx, account, bin, binKeychains[i], index,
			)
			if err != nil {
				return err
			}
			if script.Status != issuedStatus {
				script.Status = issuedStatus
				if err := accountRepo.UpdateSigningScript(ctx, script); err != nil {
					return err
				}
			}
			bin.ScriptCount++
		}
		bin.NextScriptIndex = imported.nextScriptIndex
		if err := accountRepo.UpdateAccountBin(ctx, bin); err != nil {
			return err
		}
		if err := s.refillBinPool(ctx, account, bin, binKeychains[i]); err != nil {
			return err
		}
	}
	return nil
}
