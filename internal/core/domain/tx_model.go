package domain

// Tx is a transaction tracked by the vault. Its stable identity is the
// unsigned hash, computed over the serialization with every input script
// cleared, so that signing never changes it. Hash stays empty until the
// transaction is fully signed.
type Tx struct {
	ID            uint64 `badgerhold:"key"`
	UnsignedHash  []byte `badgerholdUnique:"UnsignedHash"`
	Hash          []byte
	Version       int32
	LockTime      uint32
	Timestamp     int64
	Status        TxStatus `badgerholdIndex:"Status"`
	Fee           *uint64
	BlockHeaderID uint64 `badgerholdIndex:"BlockHeaderID"`
	BlockIndex    uint32
}

// TxIn is a transaction input. The back reference to its transaction is
// non-owning; (TxID, TxIndex) is unique.
type TxIn struct {
	ID       uint64 `badgerhold:"key"`
	TxID     uint64 `badgerholdIndex:"TxID"`
	TxIndex  uint32
	OutHash  []byte
	OutIndex uint32
	Script   []byte
	Sequence uint32
}

// TxOut is a transaction output. Owned outputs link back to the signing
// script they pay and to the accounts they move funds between; Spent is the
// id of the input consuming them.
type TxOut struct {
	ID                 uint64 `badgerhold:"key"`
	TxID               uint64 `badgerholdIndex:"TxID"`
	TxIndex            uint32
	Value              uint64
	Script             []byte `badgerholdIndex:"Script"`
	SpentByID          uint64
	SendingAccountID   uint64
	ReceivingAccountID uint64 `badgerholdIndex:"ReceivingAccountID"`
	AccountBinID       uint64
	SigningScriptID    uint64
	Status             TxOutStatus
}

// IsOwned returns whether the output pays a script of the vault.
func (o *TxOut) IsOwned() bool {
	return o.ReceivingAccountID != 0
}

// IsSpent returns whether the output has been consumed by a tracked input.
func (o *TxOut) IsSpent() bool {
	return o.SpentByID != 0
}

// IsConfirmed returns whether the transaction sits in a block.
func (t *Tx) IsConfirmed() bool {
	return t.BlockHeaderID != 0
}

// statusRank orders the linear part of the lifecycle; conflicting and
// canceled sit outside it.
func statusRank(s TxStatus) int {
	switch s {
	case TxStatusUnsigned:
		return 1
	case TxStatusUnsent:
		return 2
	case TxStatusSent:
		return 3
	case TxStatusPropagated:
		return 4
	case TxStatusConfirmed:
		return 5
	}
	return 0
}

// canTransition encodes the status lattice. Forward moves along
// unsigned → unsent → sent → propagated → confirmed may skip steps, except
// that unsigned never moves straight to confirmed; the only backward move is
// confirmed → propagated when a reorg drops the block. Conflicting is
// reachable from any status but confirmed and canceled, canceled from any
// status but confirmed.
func (t *Tx) canTransition(next TxStatus) bool {
	if t.Status == next {
		return false
	}
	switch next {
	case TxStatusConflicting:
		return t.Status != TxStatusConfirmed && t.Status != TxStatusCanceled
	case TxStatusCanceled:
		return t.Status != TxStatusConfirmed
	case TxStatusPropagated:
		if t.Status == TxStatusConfirmed {
			// reorg path
			return true
		}
		return statusRank(t.Status) > 0 && statusRank(t.Status) < statusRank(next)
	case TxStatusConfirmed:
		return t.Status != TxStatusCanceled && t.Status != TxStatusUnsigned
	default:
		cur, nxt := statusRank(t.Status), statusRank(next)
		if t.Status == TxStatusConflicting {
			// a conflict resolved in our favor resumes the linear flow
			return next == TxStatusConfirmed
		}
		return cur > 0 && nxt > cur
	}
}

// UpdateStatus applies a status transition, asserting it is legal. Passing
// TxStatusNone is not valid here; recomputation from facts lives with the
// orchestrator which owns them. Returns whether the status changed.
func (t *Tx) UpdateStatus(next TxStatus) (bool, error) {
	if next == TxStatusNone {
		return false, ErrInvalidStatusTransition
	}
	if t.Status == next {
		return false, nil
	}
	if !t.canTransition(next) {
		return false, ErrInvalidStatusTransition
	}
	t.Status = next
	return true, nil
}

// RecomputeStatus derives the status from current facts: whether every
// required signature is present, whether a block links the transaction, and
// whether a conflicting spend exists. Returns whether the status changed.
func (t *Tx) RecomputeStatus(sigsComplete, hasBlock, hasConflict bool) bool {
	next := t.Status
	switch {
	case hasBlock:
		next = TxStatusConfirmed
	case t.Status == TxStatusConfirmed:
		next = TxStatusPropagated
	case hasConflict && t.Status != TxStatusCanceled:
		next = TxStatusConflicting
	case !sigsComplete:
		next = TxStatusUnsigned
	case t.Status == TxStatusUnsigned && sigsComplete:
		next = TxStatusUnsent
	}
	if next == t.Status {
		return false
	}
	t.Status = next
	return true
}
