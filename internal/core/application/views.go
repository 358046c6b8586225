package application

import (
	"context"
	"encoding/hex"

	"github.com/shopspring/decimal"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

const satsPerBTC = 100000000

// KeychainInfo is the list view of a keychain.
type KeychainInfo struct {
	Name      string
	Hash      string
	Depth     uint8
	IsPrivate bool
	IsLocked  bool
	Hidden    bool
}

// AccountInfo is the list view of an account.
type AccountInfo struct {
	Name           string
	MinSigs        uint32
	KeychainNames  []string
	UnusedPoolSize uint32
	TimeCreated    int64
	Hash           string
}

// SigningScriptInfo is the list view of a signing script.
type SigningScriptInfo struct {
	Account     string
	Bin         string
	Index       uint32
	Label       string
	Status      domain.ScriptStatus
	Address     string
	TxOutScript string
}

// TxOutRole distinguishes how an account relates to an output.
type TxOutRole string

const (
	// TxOutRoleSender ...
	TxOutRoleSender TxOutRole = "sender"
	// TxOutRoleReceiver ...
	TxOutRoleReceiver TxOutRole = "receiver"
)

// TxOutInfo is the joined view of an owned output.
type TxOutInfo struct {
	TxHash      string
	TxIndex     uint32
	Value       uint64
	Role        TxOutRole
	Account     string
	Bin         string
	ScriptLabel string
	Status      domain.TxOutStatus
	TxStatus    domain.TxStatus
	BlockHeight uint32
	Confirmed   bool
}

// TxInfo is the list view of a tracked transaction.
type TxInfo struct {
	UnsignedHash string
	Hash         string
	Status       domain.TxStatus
	Timestamp    int64
	Fee          *uint64
	BlockHeight  uint32
	Confirmed    bool
}

// Balance is the aggregated value of an account's unspent outputs.
type Balance struct {
	ConfirmedSats   uint64
	UnconfirmedSats uint64
	TotalSats       uint64
	TotalBTC        decimal.Decimal
}

// ListKeychains ...
func (s *VaultService) ListKeychains(
	ctx context.Context, includeHidden bool,
) ([]KeychainInfo, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	keychains, err := repoManager.KeychainRepository().
		GetAllKeychains(ctx, includeHidden)
	if err != nil {
		return nil, err
	}
	infos := make([]KeychainInfo, 0, len(keychains))
	for i := range keychains {
		keychain := &keychains[i]
		s.hydrateSecrets(keychain)
		infos = append(infos, KeychainInfo{
			Name:      keychain.Name,
			Hash:      hex.EncodeToString(keychain.Hash),
			Depth:     keychain.Depth,
			IsPrivate: keychain.IsPrivate(),
			IsLocked:  keychain.IsLocked(),
			Hidden:    keychain.Hidden,
		})
	}
	return infos, nil
}

// ListAccounts ...
func (s *VaultService) ListAccounts(ctx context.Context) ([]AccountInfo, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	accounts, err := repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]AccountInfo, 0, len(accounts))
	for _, account := range accounts {
		names := make([]string, 0, len(account.KeychainIDs))
		for _, id := range account.KeychainIDs {
			keychain, err := repoManager.KeychainRepository().GetKeychainByID(ctx, id)
			if err != nil {
				continue
			}
			names = append(names, keychain.Name)
		}
		infos = append(infos, AccountInfo{
			Name:           account.Name,
			MinSigs:        account.MinSigs,
			KeychainNames:  names,
			UnusedPoolSize: account.UnusedPoolSize,
			TimeCreated:    account.TimeCreated,
			Hash:           hex.EncodeToString(account.Hash),
		})
	}
	return infos, nil
}

// ListSigningScripts returns script views of an account filtered by status;
// no statuses means all.
func (s *VaultService) ListSigningScripts(
	ctx context.Context, accountName string, statuses ...domain.ScriptStatus,
) ([]SigningScriptInfo, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	accountRepo := repoManager.AccountRepository()

	account, err := accountRepo.GetAccountByName(ctx, accountName)
	if err != nil {
		return nil, err
	}
	bins, err := accountRepo.GetAccountBins(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[domain.ScriptStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	infos := make([]SigningScriptInfo, 0)
	for _, bin := range bins {
		scripts, err := accountRepo.GetSigningScriptsByBin(ctx, bin.ID)
		if err != nil {
			return nil, err
		}
		for _, script := range scripts {
			if len(wanted) > 0 {
				if _, ok := wanted[script.Status]; !ok {
					continue
				}
			}
			address, err := wallet.ScriptAddress(wallet.ScriptAddressOpts{
				TxOutScript: script.TxOutScript,
				Network:     s.network,
			})
			if err != nil {
				return nil, err
			}
			infos = append(infos, SigningScriptInfo{
				Account:     account.Name,
				Bin:         bin.Name,
				Index:       script.Index,
				Label:       script.Label,
				Status:      script.Status,
				Address:     address,
				TxOutScript: hex.EncodeToString(script.TxOutScript),
			})
		}
	}
	return infos, nil
}

// ListTxOuts returns the joined view of every output touching an account,
// with the role the account plays for it.
func (s *VaultService) ListTxOuts(ctx context.Context) ([]TxOutInfo, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()
	accountRepo := repoManager.AccountRepository()
	chainRepo := repoManager.BlockchainRepository()

	outs, err := txRepo.GetOwnedTxOuts(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := s.sentTxOuts(ctx)
	if err != nil {
		return nil, err
	}
	outs = append(outs, sent...)

	infos := make([]TxOutInfo, 0, len(outs))
	seen := make(map[uint64]struct{})
	for _, out := range outs {
		if _, ok := seen[out.ID]; ok {
			continue
		}
		seen[out.ID] = struct{}{}

		tx, err := txRepo.GetTxByID(ctx, out.TxID)
		if err != nil {
			return nil, err
		}

		role := TxOutRoleReceiver
		accountID := out.ReceivingAccountID
		if accountID == 0 {
			role = TxOutRoleSender
			accountID = out.SendingAccountID
		}
		accountName, _ := s.accountNameByID(ctx, accountID)

		var binName, label string
		if out.AccountBinID != 0 {
			if bin, err := accountRepo.GetAccountBinByID(ctx, out.AccountBinID); err == nil {
				binName = bin.Name
			}
		}
		if out.SigningScriptID != 0 {
			if script, err := accountRepo.GetSigningScriptByID(
				ctx, out.SigningScriptID,
			); err == nil {
				label = script.Label
			}
		}

		var height uint32
		if tx.IsConfirmed() {
			if header, err := chainRepo.GetBlockHeaderByID(
				ctx, tx.BlockHeaderID,
			); err == nil {
				height = header.Height
			}
		}

		infos = append(infos, TxOutInfo{
			TxHash:      hex.EncodeToString(tx.Hash),
			TxIndex:     out.TxIndex,
			Value:       out.Value,
			Role:        role,
			Account:     accountName,
			Bin:         binName,
			ScriptLabel: label,
			Status:      out.Status,
			TxStatus:    tx.Status,
			BlockHeight: height,
			Confirmed:   tx.IsConfirmed(),
		})
	}
	return infos, nil
}

// ListTxs returns transaction views filtered by status; no statuses means
// all.
func (s *VaultService) ListTxs(
	ctx context.Context, statuses ...domain.TxStatus,
) ([]TxInfo, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()
	chainRepo := repoManager.BlockchainRepository()

	var txs []domain.Tx
	if len(statuses) > 0 {
		txs, err = txRepo.GetTxsByStatus(ctx, statuses...)
	} else {
		txs, err = txRepo.GetAllTxs(ctx)
	}
	if err != nil {
		return nil, err
	}

	infos := make([]TxInfo, 0, len(txs))
	for _, tx := range txs {
		var height uint32
		if tx.IsConfirmed() {
			if header, err := chainRepo.GetBlockHeaderByID(
				ctx, tx.BlockHeaderID,
			); err == nil {
				height = header.Height
			}
		}
		infos = append(infos, TxInfo{
			UnsignedHash: hex.EncodeToString(tx.UnsignedHash),
			Hash:         hex.EncodeToString(tx.Hash),
			Status:       tx.Status,
			Timestamp:    tx.Timestamp,
			Fee:          tx.Fee,
			BlockHeight:  height,
			Confirmed:    tx.IsConfirmed(),
		})
	}
	return infos, nil
}

// ListConfirmedTxs ...
func (s *VaultService) ListConfirmedTxs(ctx context.Context) ([]TxInfo, error) {
	return s.ListTxs(ctx, domain.TxStatusConfirmed)
}

// GetBalance sums the unspent owned outputs of an account. Outputs of
// unsigned, conflicting or canceled transactions do not count.
func (s *VaultService) GetBalance(
	ctx context.Context, accountName string,
) (*Balance, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	account, err := repoManager.AccountRepository().GetAccountByName(ctx, accountName)
	if err != nil {
		return nil, err
	}
	unspent, err := txRepo.GetUnspentTxOuts(ctx)
	if err != nil {
		return nil, err
	}

	balance := &Balance{}
	for _, out := range unspent {
		if out.ReceivingAccountID != account.ID {
			continue
		}
		tx, err := txRepo.GetTxByID(ctx, out.TxID)
		if err != nil {
			return nil, err
		}
		switch tx.Status {
		case domain.TxStatusConflicting, domain.TxStatusCanceled,
			domain.TxStatusUnsigned:
			continue
		case domain.TxStatusConfirmed:
			balance.ConfirmedSats += out.Value
		default:
			balance.UnconfirmedSats += out.Value
		}
	}
	balance.TotalSats = balance.ConfirmedSats + balance.UnconfirmedSats
	balance.TotalBTC = decimal.NewFromInt(int64(balance.TotalSats)).
		Div(decimal.NewFromInt(satsPerBTC))
	return balance, nil
}

// GetBestHeight returns the height of the chain tip.
func (s *VaultService) GetBestHeight(ctx context.Context) (uint32, error) {
	repoManager, err := s.manager()
	if err != nil {
		return 0, err
	}
	best, err := repoManager.BlockchainRepository().GetBestBlockHeader(ctx)
	if err != nil {
		if err == domain.ErrBlockHeaderNotFound {
			return 0, ErrNoBlocks
		}
		return 0, err
	}
	return best.Height, nil
}

// GetBlockCount ...
func (s *VaultService) GetBlockCount(ctx context.Context) (int, error) {
	repoManager, err := s.manager()
	if err != nil {
		return 0, err
	}
	return repoManager.BlockchainRepository().GetBlockCount(ctx)
}

// GetHorizonHeight returns the lowest height the vault needs to scan from
// to cover its oldest account.
func (s *VaultService) GetHorizonHeight(ctx context.Context) (uint32, error) {
	repoManager, err := s.manager()
	if err != nil {
		return 0, err
	}
	chainRepo := repoManager.BlockchainRepository()

	horizon, hasAccounts, err := s.GetMaxFirstBlockTimestamp(ctx)
	if err != nil {
		return 0, err
	}
	best, err := chainRepo.GetBestBlockHeader(ctx)
	if err != nil {
		if err == domain.ErrBlockHeaderNotFound {
			return 0, ErrNoBlocks
		}
		return 0, err
	}
	if !hasAccounts {
		return best.Height, nil
	}

	for height := uint32(0); height <= best.Height; height++ {
		header, err := chainRepo.GetBlockHeaderByHeight(ctx, height)
		if err != nil {
			if err == domain.ErrBlockHeaderNotFound {
				continue
			}
			return 0, err
		}
		if header.Timestamp >= horizon {
			return header.Height, nil
		}
	}
	return best.Height, nil
}

// sentTxOuts returns outputs of transactions funded by an owned account but
// paying foreign scripts, so that sender views cover them.
func (s *VaultService) sentTxOuts(ctx context.Context) ([]domain.TxOut, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	all, err := txRepo.GetAllTxs(ctx)
	if err != nil {
		return nil, err
	}
	sent := make([]domain.TxOut, 0)
	for _, tx := range all {
		outs, err := txRepo.GetTxOuts(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		for _, out := range outs {
			if out.SendingAccountID != 0 && out.ReceivingAccountID == 0 {
				sent = append(sent, out)
			}
		}
	}
	return sent, nil
}
