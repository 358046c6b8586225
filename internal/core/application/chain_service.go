package application

import (
	"bytes"
	"context"
	"math"
	"sort"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
)

type chainResult struct {
	header   *domain.BlockHeader
	isNew    bool
	reorged  bool
	accounts map[string]struct{}
}

// InsertBlock ingests a full block: the header is appended to the chain
// (reorganizing when it competes with a stored branch) and every tracked
// transaction found in the block is confirmed at its position.
func (s *VaultService) InsertBlock(ctx context.Context, block *wire.MsgBlock) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			result, err := s.insertHeader(ctx, &block.Header)
			if err != nil {
				return nil, err
			}
			if !result.isNew {
				return result, nil
			}

			hashes := make([][]byte, 0, len(block.Transactions))
			for _, msgTx := range block.Transactions {
				hash := msgTx.TxHash()
				hashes = append(hashes, hash.CloneBytes())
			}
			merkleBlock := &domain.MerkleBlock{
				BlockHeaderID: result.header.ID,
				TxCount:       uint32(len(block.Transactions)),
				Hashes:        hashes,
			}
			if err := repoManager.BlockchainRepository().
				AddMerkleBlock(ctx, merkleBlock); err != nil {
				return nil, err
			}
			if err := s.confirmMatchedTxs(ctx, result, merkleBlock); err != nil {
				return nil, err
			}
			return result, nil
		},
	)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.publishChainEvents(res.(*chainResult))
	return nil
}

// InsertMerkleBlock ingests a filtered block: the header is appended and
// every tracked transaction among the matched hashes is confirmed at its
// matching position.
func (s *VaultService) InsertMerkleBlock(
	ctx context.Context, msg *wire.MsgMerkleBlock,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			result, err := s.insertHeader(ctx, &msg.Header)
			if err != nil {
				return nil, err
			}
			if !result.isNew {
				return result, nil
			}

			merkleBlock := domain.NewMerkleBlockFromWire(msg, result.header.ID)
			if err := repoManager.BlockchainRepository().
				AddMerkleBlock(ctx, merkleBlock); err != nil {
				return nil, err
			}
			if err := s.confirmMatchedTxs(ctx, result, merkleBlock); err != nil {
				return nil, err
			}
			return result, nil
		},
	)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.publishChainEvents(res.(*chainResult))
	return nil
}

// DeleteMerkleBlock removes the merkle blocks of the header with the given
// hash and detaches their transactions, which fall back to propagated.
func (s *VaultService) DeleteMerkleBlock(ctx context.Context, hash []byte) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			chainRepo := repoManager.BlockchainRepository()
			header, err := chainRepo.GetBlockHeaderByHash(ctx, hash)
			if err != nil {
				return nil, err
			}
			merkleBlocks, err := chainRepo.GetMerkleBlocksByHeader(ctx, header.ID)
			if err != nil {
				return nil, err
			}
			if len(merkleBlocks) <= 0 {
				return nil, domain.ErrMerkleBlockNotFound
			}

			accounts, err := s.detachTxsFromHeader(ctx, header.ID)
			if err != nil {
				return nil, err
			}
			for _, merkleBlock := range merkleBlocks {
				if err := chainRepo.DeleteMerkleBlock(ctx, merkleBlock.ID); err != nil {
					return nil, err
				}
			}
			return accounts, nil
		},
	)
	if err != nil {
		return err
	}

	if accounts := res.(map[string]struct{}); len(accounts) > 0 {
		s.publishEvents(newAccountsUpdatedEvent(sortedNames(accounts)))
	}
	return nil
}

// GetLocatorHashes returns the standard exponentially spaced block locator
// of the best chain.
func (s *VaultService) GetLocatorHashes(ctx context.Context) ([][]byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	chainRepo := repoManager.BlockchainRepository()

	best, err := chainRepo.GetBestBlockHeader(ctx)
	if err != nil {
		if err == domain.ErrBlockHeaderNotFound {
			return [][]byte{}, nil
		}
		return nil, err
	}

	hashes := make([][]byte, 0)
	for _, height := range domain.LocatorHeights(best.Height) {
		header, err := chainRepo.GetBlockHeaderByHeight(ctx, height)
		if err != nil {
			if err == domain.ErrBlockHeaderNotFound {
				continue
			}
			return nil, err
		}
		hashes = append(hashes, header.Hash)
	}
	return hashes, nil
}

// GetMaxFirstBlockTimestamp returns the earliest creation time across all
// accounts, the horizon the chain needs to be scanned from. The ok flag is
// false when the vault has no accounts.
func (s *VaultService) GetMaxFirstBlockTimestamp(
	ctx context.Context,
) (int64, bool, error) {
	repoManager, err := s.manager()
	if err != nil {
		return 0, false, err
	}
	accounts, err := repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(accounts) <= 0 {
		return math.MaxInt64, false, nil
	}
	min := accounts[0].TimeCreated
	for _, account := range accounts[1:] {
		if account.TimeCreated < min {
			min = account.TimeCreated
		}
	}
	return min, true, nil
}

// insertHeader appends a header to the chain. A duplicate hash is a no-op;
// a header competing with a stored branch triggers a reorg back to the
// common ancestor before it is applied.
func (s *VaultService) insertHeader(
	ctx context.Context, header *wire.BlockHeader,
) (*chainResult, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	chainRepo := repoManager.BlockchainRepository()

	blockHash := header.BlockHash()
	if existing, err := chainRepo.GetBlockHeaderByHash(
		ctx, blockHash.CloneBytes(),
	); err == nil {
		return &chainResult{header: existing}, nil
	} else if err != domain.ErrBlockHeaderNotFound {
		return nil, err
	}

	var height uint32
	count, err := chainRepo.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		height = 0
	} else {
		parent, err := chainRepo.GetBlockHeaderByHash(
			ctx, header.PrevBlock.CloneBytes(),
		)
		if err != nil {
			if err == domain.ErrBlockHeaderNotFound {
				return nil, domain.ErrChainMismatch
			}
			return nil, err
		}
		height = parent.Height + 1
	}

	result := &chainResult{isNew: true, accounts: make(map[string]struct{})}

	// a stored header at the same height with a different hash means the
	// incoming header starts a competing branch: drop everything from this
	// height up
	if competing, err := chainRepo.GetBlockHeaderByHeight(ctx, height); err == nil {
		if bytes.Equal(competing.Hash, blockHash.CloneBytes()) {
			return &chainResult{header: competing}, nil
		}
		if err := s.reorgFromHeight(ctx, height, result); err != nil {
			return nil, err
		}
		result.reorged = true
	} else if err != domain.ErrBlockHeaderNotFound {
		return nil, err
	}

	stored := domain.NewBlockHeaderFromWire(header, height)
	if err := chainRepo.AddBlockHeader(ctx, stored); err != nil {
		return nil, err
	}
	result.header = stored
	return result, nil
}

// reorgFromHeight walks the orphaned branch from the tip down to the given
// height: transactions lose their block assignment and fall back to
// propagated, merkle blocks and headers are deleted.
func (s *VaultService) reorgFromHeight(
	ctx context.Context, fromHeight uint32, result *chainResult,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	chainRepo := repoManager.BlockchainRepository()

	best, err := chainRepo.GetBestBlockHeader(ctx)
	if err != nil {
		return err
	}

	log.WithField("from", fromHeight).WithField("tip", best.Height).
		Info("reorganizing chain")

	for height := best.Height; ; height-- {
		header, err := chainRepo.GetBlockHeaderByHeight(ctx, height)
		if err != nil {
			if err == domain.ErrBlockHeaderNotFound {
				if height == fromHeight || height == 0 {
					break
				}
				continue
			}
			return err
		}

		accounts, err := s.detachTxsFromHeader(ctx, header.ID)
		if err != nil {
			return err
		}
		for name := range accounts {
			result.accounts[name] = struct{}{}
		}

		merkleBlocks, err := chainRepo.GetMerkleBlocksByHeader(ctx, header.ID)
		if err != nil {
			return err
		}
		for _, merkleBlock := range merkleBlocks {
			if err := chainRepo.DeleteMerkleBlock(ctx, merkleBlock.ID); err != nil {
				return err
			}
		}
		if err := chainRepo.DeleteBlockHeader(ctx, header.ID); err != nil {
			return err
		}
		if height == fromHeight || height == 0 {
			break
		}
	}
	return nil
}

// detachTxsFromHeader clears the block assignment of every transaction
// confirmed by the header. Confirmed transactions fall back to propagated.
func (s *VaultService) detachTxsFromHeader(
	ctx context.Context, headerID uint64,
) (map[string]struct{}, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	txs, err := txRepo.GetTxsByBlockHeader(ctx, headerID)
	if err != nil {
		return nil, err
	}
	accounts := make(map[string]struct{})
	for i := range txs {
		tx := &txs[i]
		tx.BlockHeaderID = 0
		tx.BlockIndex = 0
		if tx.Status == domain.TxStatusConfirmed {
			if _, err := tx.UpdateStatus(domain.TxStatusPropagated); err != nil {
				return nil, err
			}
		}
		if err := txRepo.UpdateTx(ctx, tx); err != nil {
			return nil, err
		}
		names, err := s.accountNamesForTx(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		for name := range names {
			accounts[name] = struct{}{}
		}
	}
	return accounts, nil
}

// confirmMatchedTxs assigns the header to every tracked transaction whose
// hash appears among the matched hashes, and cancels the spenders that
// conflict with the confirmed ones.
func (s *VaultService) confirmMatchedTxs(
	ctx context.Context, result *chainResult, merkleBlock *domain.MerkleBlock,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	txRepo := repoManager.TransactionRepository()

	for position, hash := range merkleBlock.Hashes {
		tx, err := txRepo.GetTxByHash(ctx, hash)
		if err != nil {
			if err == domain.ErrTxNotFound {
				continue
			}
			return err
		}

		tx.BlockHeaderID = merkleBlock.BlockHeaderID
		tx.BlockIndex = uint32(position)
		if tx.Status != domain.TxStatusConfirmed {
			if _, err := tx.UpdateStatus(domain.TxStatusConfirmed); err != nil {
				return err
			}
		}
		if err := txRepo.UpdateTx(ctx, tx); err != nil {
			return err
		}

		if err := s.cancelConflictingSpenders(ctx, tx); err != nil {
			return err
		}

		names, err := s.accountNamesForTx(ctx, tx.ID)
		if err != nil {
			return err
		}
		for name := range names {
			result.accounts[name] = struct{}{}
		}
	}
	return nil
}

// cancelConflictingSpenders forces every competing spender of the confirmed
// transaction's outpoints to canceled, and repoints the spent outputs to
// the confirmed inputs.
func (s *VaultService) cancelConflictingSpenders(
	ctx context.Context, confirmed *domain.Tx,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	txRepo := repoManager.TransactionRepository()

	ins, err := txRepo.GetTxIns(ctx, confirmed.ID)
	if err != nil {
		return err
	}
	for i := range ins {
		in := &ins[i]
		conflicting, err := s.conflictingSpenders(ctx, in, confirmed.ID)
		if err != nil {
			return err
		}
		for j := range conflicting {
			other := &conflicting[j]
			if _, err := other.UpdateStatus(domain.TxStatusCanceled); err != nil {
				return err
			}
			if err := txRepo.UpdateTx(ctx, other); err != nil {
				return err
			}
		}

		prevOut, err := s.ownedTxOutForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return err
		}
		if prevOut != nil && prevOut.SpentByID != in.ID {
			prevOut.SpentByID = in.ID
			prevOut.Status = domain.TxOutStatusSpent
			if err := txRepo.UpdateTxOut(ctx, prevOut); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *VaultService) accountNamesForTx(
	ctx context.Context, txID uint64,
) (map[string]struct{}, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	names := make(map[string]struct{})
	outs, err := txRepo.GetTxOuts(ctx, txID)
	if err != nil {
		return nil, err
	}
	for _, out := range outs {
		for _, id := range []uint64{out.ReceivingAccountID, out.SendingAccountID} {
			if id == 0 {
				continue
			}
			if name, err := s.accountNameByID(ctx, id); err == nil {
				names[name] = struct{}{}
			}
		}
	}
	return names, nil
}

func (s *VaultService) publishChainEvents(res *chainResult) {
	if !res.isNew {
		return
	}
	events := []Event{
		newBlockAddedEvent(res.header.Hash, res.header.Height),
		newSyncHeightUpdatedEvent(res.header.Height),
	}
	if len(res.accounts) > 0 {
		events = append(events, newAccountsUpdatedEvent(sortedNames(res.accounts)))
	}
	s.publishEvents(events...)
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
