package application

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// Recipient is one output of a transaction under construction.
type Recipient struct {
	TxOutScript []byte
	Value       uint64
	Label       string
}

// insertResult carries what a commit needs to report afterwards.
type insertResult struct {
	tx       *domain.Tx
	isNew    bool
	accounts map[string]struct{}
}

// InsertRawTransaction ingests a transaction received from the network.
// Reinsertion of a known unsigned hash merges signatures instead of
// creating a duplicate.
func (s *VaultService) InsertRawTransaction(ctx context.Context, rawTx []byte) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	msg, err := domain.ParseRawTx(rawTx)
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return s.insertOrMergeTx(ctx, msg, false)
		},
	)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.publishInsertEvents(res.(*insertResult))
	return nil
}

// InsertTransaction ingests a locally assembled transaction, optionally
// signing every input the session can sign.
func (s *VaultService) InsertTransaction(
	ctx context.Context, msg *wire.MsgTx, sign bool,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			inserted, err := s.insertOrMergeTx(ctx, msg, true)
			if err != nil {
				return nil, err
			}
			if sign {
				if _, err := s.signTx(ctx, inserted.tx); err != nil {
					return nil, err
				}
			}
			return inserted, nil
		},
	)
	if err != nil {
		return err
	}

	s.publishInsertEvents(res.(*insertResult))
	return nil
}

// SignRawTransaction merges the provided transaction into the vault, signs
// every input whose keychains are unlockable and returns the updated
// serialization.
func (s *VaultService) SignRawTransaction(
	ctx context.Context, rawTx []byte,
) ([]byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	msg, err := domain.ParseRawTx(rawTx)
	if err != nil {
		return nil, err
	}

	var signed []byte
	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			inserted, err := s.insertOrMergeTx(ctx, msg, true)
			if err != nil {
				return nil, err
			}
			signedMsg, err := s.signTx(ctx, inserted.tx)
			if err != nil {
				return nil, err
			}
			signed, err = domain.SerializeTx(signedMsg)
			if err != nil {
				return nil, err
			}
			return inserted, nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.publishInsertEvents(res.(*insertResult))
	return signed, nil
}

// CreateRawTransaction assembles an unsigned transaction of the account:
// oldest confirmed funds first, change back to the account's change bin,
// caller supplied fee. Inputs carry the signature script templates of the
// outputs they spend. The transaction is tracked immediately.
func (s *VaultService) CreateRawTransaction(
	ctx context.Context, accountName string, recipients []Recipient, fee uint64,
) ([]byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	if len(recipients) <= 0 {
		return nil, ErrMissingRecipients
	}

	var raw []byte
	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			account, err := repoManager.AccountRepository().
				GetAccountByName(ctx, accountName)
			if err != nil {
				return nil, err
			}

			amount := uint64(0)
			for _, recipient := range recipients {
				amount += recipient.Value
			}

			selected, total, err := s.selectSpendableOuts(ctx, account, amount+fee)
			if err != nil {
				return nil, err
			}

			msg := wire.NewMsgTx(wire.TxVersion)
			for _, coin := range selected {
				msg.AddTxIn(&wire.TxIn{
					PreviousOutPoint: coin.outPoint,
					SignatureScript:  coin.script.TxInScript,
					Sequence:         wire.MaxTxInSequenceNum,
				})
			}
			for _, recipient := range recipients {
				msg.AddTxOut(wire.NewTxOut(int64(recipient.Value), recipient.TxOutScript))
			}

			if change := total - amount - fee; change > 0 {
				changeBin, err := s.accountBinByName(ctx, account, domain.ChangeBinName)
				if err != nil {
					return nil, err
				}
				changeScript, err := s.issueScriptForBin(ctx, account, changeBin, "")
				if err != nil {
					return nil, err
				}
				msg.AddTxOut(wire.NewTxOut(int64(change), changeScript.TxOutScript))
			}

			domain.ShuffleMsgTx(msg)

			inserted, err := s.insertOrMergeTx(ctx, msg, true)
			if err != nil {
				return nil, err
			}
			inserted.tx.Fee = &fee
			if err := repoManager.TransactionRepository().
				UpdateTx(ctx, inserted.tx); err != nil {
				return nil, err
			}

			raw, err = domain.SerializeTx(msg)
			if err != nil {
				return nil, err
			}
			return inserted, nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.publishInsertEvents(res.(*insertResult))
	return raw, nil
}

// CancelTransaction abandons a tracked transaction. Confirmed transactions
// cannot be canceled; the outputs it was spending become spendable again.
func (s *VaultService) CancelTransaction(
	ctx context.Context, unsignedHash []byte,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}

	res, err := repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			txRepo := repoManager.TransactionRepository()
			tx, err := txRepo.GetTxByUnsignedHash(ctx, unsignedHash)
			if err != nil {
				return nil, err
			}
			if _, err := tx.UpdateStatus(domain.TxStatusCanceled); err != nil {
				return nil, err
			}
			if err := txRepo.UpdateTx(ctx, tx); err != nil {
				return nil, err
			}

			// release the outpoints this transaction was holding
			ins, err := txRepo.GetTxIns(ctx, tx.ID)
			if err != nil {
				return nil, err
			}
			accounts := make(map[string]struct{})
			for i := range ins {
				prevOut, err := s.ownedTxOutForOutpoint(
					ctx, ins[i].OutHash, ins[i].OutIndex,
				)
				if err != nil {
					return nil, err
				}
				if prevOut == nil || prevOut.SpentByID != ins[i].ID {
					continue
				}
				prevOut.SpentByID = 0
				prevOut.Status = domain.TxOutStatusUnspent
				if err := txRepo.UpdateTxOut(ctx, prevOut); err != nil {
					return nil, err
				}
				if name, err := s.accountNameByID(
					ctx, prevOut.ReceivingAccountID,
				); err == nil {
					accounts[name] = struct{}{}
				}
			}
			return &insertResult{tx: tx, accounts: accounts}, nil
		},
	)
	if err != nil {
		return err
	}

	s.publishInsertEvents(res.(*insertResult))
	return nil
}

// MissingSignatures reports how many signature placeholders of a tracked
// transaction are still empty and which pubkeys can fill them.
func (s *VaultService) MissingSignatures(
	ctx context.Context, unsignedHash []byte,
) (int, [][]byte, error) {
	repoManager, err := s.manager()
	if err != nil {
		return 0, nil, err
	}
	txRepo := repoManager.TransactionRepository()

	tx, err := txRepo.GetTxByUnsignedHash(ctx, unsignedHash)
	if err != nil {
		return 0, nil, err
	}
	ins, err := txRepo.GetTxIns(ctx, tx.ID)
	if err != nil {
		return 0, nil, err
	}
	outs, err := txRepo.GetTxOuts(ctx, tx.ID)
	if err != nil {
		return 0, nil, err
	}
	insPtr := txInPtrs(ins)
	msg, err := domain.ToMsgTx(tx, insPtr, txOutPtrs(outs))
	if err != nil {
		return 0, nil, err
	}

	missingCount := 0
	missingPubKeys := make([][]byte, 0)
	for i, in := range insPtr {
		script, err := s.signingScriptForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return 0, nil, err
		}
		if script == nil {
			continue
		}
		sigHash, err := domain.SigHashForInput(msg, i, script)
		if err != nil {
			return 0, nil, err
		}
		parsed, err := domain.ParseInputSignatures(script, in.Script, sigHash)
		if err != nil {
			return 0, nil, err
		}
		missingCount += parsed.MissingCount()
		missingPubKeys = append(missingPubKeys, parsed.MissingPubKeys()...)
	}
	return missingCount, missingPubKeys, nil
}

// insertOrMergeTx is the single ingestion path. It must run inside a write
// transaction.
func (s *VaultService) insertOrMergeTx(
	ctx context.Context, msg *wire.MsgTx, localOrigin bool,
) (*insertResult, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	tx, ins, outs, err := domain.NewTxFromMsg(msg, time.Now().Unix())
	if err != nil {
		return nil, err
	}

	if existing, err := txRepo.GetTxByUnsignedHash(ctx, tx.UnsignedHash); err == nil {
		accounts, err := s.mergeSignatures(ctx, existing, msg, localOrigin)
		if err != nil {
			return nil, err
		}
		return &insertResult{tx: existing, accounts: accounts}, nil
	} else if err != domain.ErrTxNotFound {
		return nil, err
	}

	accounts := make(map[string]struct{})

	// link outputs to owned signing scripts
	for _, out := range outs {
		accountName, err := s.linkTxOut(ctx, out)
		if err != nil {
			return nil, err
		}
		if len(accountName) > 0 {
			accounts[accountName] = struct{}{}
		}
	}

	if err := txRepo.AddTx(ctx, tx, ins, outs); err != nil {
		return nil, err
	}

	// link spends of owned outputs and detect conflicts on them
	hasConflict := false
	var sendingAccountID uint64
	for _, in := range ins {
		prevOut, err := s.ownedTxOutForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return nil, err
		}
		if prevOut == nil {
			continue
		}

		conflicting, err := s.conflictingSpenders(ctx, in, tx.ID)
		if err != nil {
			return nil, err
		}
		if len(conflicting) > 0 {
			hasConflict = true
		}

		if !prevOut.IsSpent() {
			prevOut.SpentByID = in.ID
			prevOut.Status = domain.TxOutStatusSpent
			if err := txRepo.UpdateTxOut(ctx, prevOut); err != nil {
				return nil, err
			}
		}
		sendingAccountID = prevOut.ReceivingAccountID
		if name, err := s.accountNameByID(ctx, sendingAccountID); err == nil {
			accounts[name] = struct{}{}
		}
	}
	if sendingAccountID != 0 {
		for _, out := range outs {
			out.SendingAccountID = sendingAccountID
			if err := txRepo.UpdateTxOut(ctx, out); err != nil {
				return nil, err
			}
		}
	}

	sigsComplete, err := s.signaturesComplete(ctx, tx, ins, outs)
	if err != nil {
		return nil, err
	}

	switch {
	case hasConflict:
		tx.Status = domain.TxStatusConflicting
	case !sigsComplete:
		tx.Status = domain.TxStatusUnsigned
	case localOrigin:
		tx.Status = domain.TxStatusUnsent
	default:
		tx.Status = domain.TxStatusPropagated
	}
	if sigsComplete {
		tx.Hash = domain.TxHash(msg)
	}
	if err := txRepo.UpdateTx(ctx, tx); err != nil {
		return nil, err
	}

	return &insertResult{tx: tx, isNew: true, accounts: accounts}, nil
}

// mergeSignatures folds the signatures carried by a reinserted transaction
// into the tracked one. Signatures for pubkeys outside the matched signing
// scripts are silently skipped.
func (s *VaultService) mergeSignatures(
	ctx context.Context, tx *domain.Tx, incoming *wire.MsgTx, localOrigin bool,
) (map[string]struct{}, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	ins, err := txRepo.GetTxIns(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	outs, err := txRepo.GetTxOuts(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	insPtr, outsPtr := txInPtrs(ins), txOutPtrs(outs)
	msg, err := domain.ToMsgTx(tx, insPtr, outsPtr)
	if err != nil {
		return nil, err
	}
	if len(incoming.TxIn) != len(insPtr) {
		return nil, domain.ErrInvalidTx
	}

	accounts := make(map[string]struct{})
	complete := true
	for i, in := range insPtr {
		script, err := s.signingScriptForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return nil, err
		}
		if script == nil {
			if len(in.Script) <= 0 && len(incoming.TxIn[i].SignatureScript) > 0 {
				in.Script = incoming.TxIn[i].SignatureScript
				if err := txRepo.UpdateTxIn(ctx, in); err != nil {
					return nil, err
				}
			}
			if len(in.Script) <= 0 {
				complete = false
			}
			continue
		}

		sigHash, err := domain.SigHashForInput(msg, i, script)
		if err != nil {
			return nil, err
		}
		parsed, err := domain.ParseInputSignatures(script, in.Script, sigHash)
		if err != nil {
			return nil, err
		}
		incomingSigs, err := domain.ParseInputSignatures(
			script, incoming.TxIn[i].SignatureScript, sigHash,
		)
		if err != nil {
			return nil, err
		}
		for slot, sig := range incomingSigs.Sigs {
			if _, ok := parsed.Sigs[slot]; !ok {
				parsed.Sigs[slot] = sig
			}
		}

		assembled, err := parsed.Assemble()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(assembled, in.Script) {
			in.Script = assembled
			if err := txRepo.UpdateTxIn(ctx, in); err != nil {
				return nil, err
			}
		}
		if !parsed.Complete() {
			complete = false
		}
		if name, err := s.accountNameByID(ctx, script.AccountID); err == nil {
			accounts[name] = struct{}{}
		}
	}

	changed := false
	if statusRankBelowPropagated(tx.Status) {
		tx.Timestamp = time.Now().Unix()
		changed = true
	}
	if complete && len(tx.Hash) <= 0 {
		finalMsg, err := domain.ToMsgTx(tx, insPtr, outsPtr)
		if err != nil {
			return nil, err
		}
		tx.Hash = domain.TxHash(finalMsg)
		changed = true
	}
	if complete && tx.Status == domain.TxStatusUnsigned {
		next := domain.TxStatusUnsent
		if !localOrigin {
			next = domain.TxStatusPropagated
		}
		if _, err := tx.UpdateStatus(next); err != nil {
			return nil, err
		}
		changed = true
	} else if !localOrigin &&
		(tx.Status == domain.TxStatusUnsent || tx.Status == domain.TxStatusSent) {
		// the network echoed a transaction we consider in flight
		if _, err := tx.UpdateStatus(domain.TxStatusPropagated); err != nil {
			return nil, err
		}
		changed = true
	}
	if changed {
		if err := txRepo.UpdateTx(ctx, tx); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// signTx fills every fillable signature placeholder of a tracked
// transaction. Must run inside a write transaction.
func (s *VaultService) signTx(
	ctx context.Context, tx *domain.Tx,
) (*wire.MsgTx, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()
	accountRepo := repoManager.AccountRepository()
	keychainRepo := repoManager.KeychainRepository()

	ins, err := txRepo.GetTxIns(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	outs, err := txRepo.GetTxOuts(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	insPtr, outsPtr := txInPtrs(ins), txOutPtrs(outs)
	msg, err := domain.ToMsgTx(tx, insPtr, outsPtr)
	if err != nil {
		return nil, err
	}

	complete := true
	for i, in := range insPtr {
		script, err := s.signingScriptForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return nil, err
		}
		if script == nil {
			if len(in.Script) <= 0 {
				complete = false
			}
			continue
		}

		sigHash, err := domain.SigHashForInput(msg, i, script)
		if err != nil {
			return nil, err
		}
		parsed, err := domain.ParseInputSignatures(script, in.Script, sigHash)
		if err != nil {
			return nil, err
		}

		keys, err := accountRepo.GetKeysByIDs(ctx, script.KeyIDs)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			keychain, err := keychainRepo.GetKeychainByID(ctx, key.KeychainID)
			if err != nil {
				return nil, err
			}
			s.hydrateSecrets(keychain)
			if !keychain.IsPrivate() || keychain.IsLocked() {
				continue
			}
			privKey, err := keychain.GetSigningPrivateKey(
				key.Index, key.DerivationPath,
			)
			if err != nil {
				return nil, err
			}
			signature, err := wallet.SignHash(wallet.SignHashOpts{
				PrivKey: privKey,
				Hash:    sigHash,
			})
			if err != nil {
				return nil, err
			}
			signature = append(signature, byte(txscript.SigHashAll))
			if !parsed.AddSignature(key.PubKey, signature) {
				log.Debug("skipping signature for pubkey outside signing script")
			}
		}

		assembled, err := parsed.Assemble()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(assembled, in.Script) {
			in.Script = assembled
			msg.TxIn[i].SignatureScript = assembled
			if err := txRepo.UpdateTxIn(ctx, in); err != nil {
				return nil, err
			}
		}
		if !parsed.Complete() {
			complete = false
		}
	}

	if complete {
		tx.Hash = domain.TxHash(msg)
		if tx.Status == domain.TxStatusUnsigned {
			if _, err := tx.UpdateStatus(domain.TxStatusUnsent); err != nil {
				return nil, err
			}
		}
		if err := txRepo.UpdateTx(ctx, tx); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

type spendableOut struct {
	outPoint wire.OutPoint
	value    uint64
	script   *domain.SigningScript
}

// selectSpendableOuts picks owned unspent outputs of the account, confirmed
// and oldest first, until target is covered.
func (s *VaultService) selectSpendableOuts(
	ctx context.Context, account *domain.Account, target uint64,
) ([]spendableOut, uint64, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, 0, err
	}
	txRepo := repoManager.TransactionRepository()
	accountRepo := repoManager.AccountRepository()

	unspent, err := txRepo.GetUnspentTxOuts(ctx)
	if err != nil {
		return nil, 0, err
	}

	type candidate struct {
		out       domain.TxOut
		confirmed bool
		txHash    []byte
	}
	candidates := make([]candidate, 0, len(unspent))
	for _, out := range unspent {
		if out.ReceivingAccountID != account.ID {
			continue
		}
		parent, err := txRepo.GetTxByID(ctx, out.TxID)
		if err != nil {
			return nil, 0, err
		}
		if len(parent.Hash) <= 0 ||
			parent.Status == domain.TxStatusConflicting ||
			parent.Status == domain.TxStatusCanceled {
			continue
		}
		candidates = append(candidates, candidate{
			out:       out,
			confirmed: parent.IsConfirmed(),
			txHash:    parent.Hash,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].confirmed != candidates[j].confirmed {
			return candidates[i].confirmed
		}
		return candidates[i].out.ID < candidates[j].out.ID
	})

	selected := make([]spendableOut, 0)
	total := uint64(0)
	for _, c := range candidates {
		if total >= target {
			break
		}
		script, err := accountRepo.GetSigningScriptByID(ctx, c.out.SigningScriptID)
		if err != nil {
			return nil, 0, err
		}
		hash, err := outPointHash(c.txHash)
		if err != nil {
			return nil, 0, err
		}
		selected = append(selected, spendableOut{
			outPoint: wire.OutPoint{Hash: hash, Index: c.out.TxIndex},
			value:    c.out.Value,
			script:   script,
		})
		total += c.out.Value
	}
	if total < target {
		return nil, 0, domain.ErrInsufficientFunds
	}
	return selected, total, nil
}

// linkTxOut attaches an output to the signing script it pays, if owned, and
// advances the script to used. Returns the owning account name.
func (s *VaultService) linkTxOut(
	ctx context.Context, out *domain.TxOut,
) (string, error) {
	repoManager, err := s.manager()
	if err != nil {
		return "", err
	}
	accountRepo := repoManager.AccountRepository()

	script, err := accountRepo.GetSigningScriptByTxOutScript(ctx, out.Script)
	if err != nil {
		if err == domain.ErrSigningScriptNotFound {
			return "", nil
		}
		return "", err
	}

	out.ReceivingAccountID = script.AccountID
	out.AccountBinID = script.AccountBinID
	out.SigningScriptID = script.ID
	if script.MarkUsed() {
		if err := accountRepo.UpdateSigningScript(ctx, script); err != nil {
			return "", err
		}
		if err := s.refillPoolAfterUse(ctx, script); err != nil {
			return "", err
		}
	}

	account, err := accountRepo.GetAccountByID(ctx, script.AccountID)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			return "", nil
		}
		return "", err
	}
	return account.Name, nil
}

// refillPoolAfterUse tops up the pool of the bin a used script belongs to.
// A locked chain code only logs: ingesting network data must not fail on a
// locked vault; the pool catches up at the next unlock.
func (s *VaultService) refillPoolAfterUse(
	ctx context.Context, script *domain.SigningScript,
) error {
	repoManager, err := s.manager()
	if err != nil {
		return err
	}
	accountRepo := repoManager.AccountRepository()

	account, err := accountRepo.GetAccountByID(ctx, script.AccountID)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			return nil
		}
		return err
	}
	bin, err := accountRepo.GetAccountBinByID(ctx, script.AccountBinID)
	if err != nil {
		if err == domain.ErrAccountBinNotFound {
			return nil
		}
		return err
	}
	keychains, err := s.binKeychains(ctx, account, bin)
	if err != nil {
		return err
	}
	if err := s.refillBinPool(ctx, account, bin, keychains); err != nil {
		if err == domain.ErrKeychainLocked {
			log.Warn("skipping pool refill: keychain locked")
			return nil
		}
		return err
	}
	return nil
}

// signaturesComplete walks the inputs of a freshly inserted transaction.
func (s *VaultService) signaturesComplete(
	ctx context.Context, tx *domain.Tx, ins []*domain.TxIn, outs []*domain.TxOut,
) (bool, error) {
	msg, err := domain.ToMsgTx(tx, ins, outs)
	if err != nil {
		return false, err
	}
	for i, in := range ins {
		script, err := s.signingScriptForOutpoint(ctx, in.OutHash, in.OutIndex)
		if err != nil {
			return false, err
		}
		if script == nil {
			if len(in.Script) <= 0 {
				return false, nil
			}
			continue
		}
		sigHash, err := domain.SigHashForInput(msg, i, script)
		if err != nil {
			return false, err
		}
		parsed, err := domain.ParseInputSignatures(script, in.Script, sigHash)
		if err != nil {
			return false, err
		}
		if !parsed.Complete() {
			return false, nil
		}
	}
	return true, nil
}

// conflictingSpenders returns other tracked spenders of the same owned
// outpoint that are neither canceled nor unsigned.
func (s *VaultService) conflictingSpenders(
	ctx context.Context, in *domain.TxIn, selfTxID uint64,
) ([]domain.Tx, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	spenders, err := txRepo.GetTxInsByOutpoint(ctx, in.OutHash, in.OutIndex)
	if err != nil {
		return nil, err
	}
	conflicting := make([]domain.Tx, 0)
	for _, spender := range spenders {
		if spender.TxID == selfTxID {
			continue
		}
		other, err := txRepo.GetTxByID(ctx, spender.TxID)
		if err != nil {
			return nil, err
		}
		if other.Status == domain.TxStatusCanceled ||
			other.Status == domain.TxStatusUnsigned {
			continue
		}
		conflicting = append(conflicting, *other)
	}
	return conflicting, nil
}

// ownedTxOutForOutpoint resolves an outpoint to the owned output it spends,
// or nil when the vault does not track it.
func (s *VaultService) ownedTxOutForOutpoint(
	ctx context.Context, outHash []byte, outIndex uint32,
) (*domain.TxOut, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	txRepo := repoManager.TransactionRepository()

	prevTx, err := txRepo.GetTxByHash(ctx, outHash)
	if err != nil {
		if err == domain.ErrTxNotFound {
			return nil, nil
		}
		return nil, err
	}
	outs, err := txRepo.GetTxOuts(ctx, prevTx.ID)
	if err != nil {
		return nil, err
	}
	for i := range outs {
		if outs[i].TxIndex == outIndex {
			if !outs[i].IsOwned() {
				return nil, nil
			}
			return &outs[i], nil
		}
	}
	return nil, nil
}

// signingScriptForOutpoint resolves the signing script guarding an owned
// outpoint, or nil when the outpoint is foreign.
func (s *VaultService) signingScriptForOutpoint(
	ctx context.Context, outHash []byte, outIndex uint32,
) (*domain.SigningScript, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	out, err := s.ownedTxOutForOutpoint(ctx, outHash, outIndex)
	if err != nil || out == nil {
		return nil, err
	}
	if out.SigningScriptID == 0 {
		return nil, nil
	}
	script, err := repoManager.AccountRepository().
		GetSigningScriptByID(ctx, out.SigningScriptID)
	if err != nil {
		if err == domain.ErrSigningScriptNotFound {
			return nil, nil
		}
		return nil, err
	}
	return script, nil
}

func (s *VaultService) accountNameByID(
	ctx context.Context, id uint64,
) (string, error) {
	if id == 0 {
		return "", domain.ErrAccountNotFound
	}
	repoManager, err := s.manager()
	if err != nil {
		return "", err
	}
	account, err := repoManager.AccountRepository().GetAccountByID(ctx, id)
	if err != nil {
		return "", err
	}
	return account.Name, nil
}

func (s *VaultService) publishInsertEvents(res *insertResult) {
	events := make([]Event, 0, 2)
	if res.isNew {
		events = append(events, newTransactionAddedEvent(res.tx.UnsignedHash))
	}
	if len(res.accounts) > 0 {
		names := make([]string, 0, len(res.accounts))
		for name := range res.accounts {
			names = append(names, name)
		}
		sort.Strings(names)
		events = append(events, newAccountsUpdatedEvent(names))
	}
	s.publishEvents(events...)
}

func statusRankBelowPropagated(status domain.TxStatus) bool {
	switch status {
	case domain.TxStatusUnsigned, domain.TxStatusUnsent, domain.TxStatusSent:
		return true
	}
	return false
}

func txInPtrs(ins []domain.TxIn) []*domain.TxIn {
	ptrs := make([]*domain.TxIn, 0, len(ins))
	for i := range ins {
		ptrs = append(ptrs, &ins[i])
	}
	return ptrs
}

func txOutPtrs(outs []domain.TxOut) []*domain.TxOut {
	ptrs := make([]*domain.TxOut, 0, len(outs))
	for i := range outs {
		ptrs = append(ptrs, &outs[i])
	}
	return ptrs
}

func outPointHash(hash []byte) (chainhash.Hash, error) {
	parsed, err := chainhash.NewHash(hash)
	if err != nil {
		return chainhash.Hash{}, domain.ErrInvalidTx
	}
	return *parsed, nil
}
