package domain

const (
	// SchemaBaseVersion is the oldest store schema an open can migrate from.
	SchemaBaseVersion = 4
	// SchemaVersion is the schema written by this build.
	SchemaVersion = 5

	// ChangeBinIndex is the reserved bin receiving change scripts.
	ChangeBinIndex = 1
	// DefaultBinIndex is the reserved bin receiving issued scripts.
	DefaultBinIndex = 2
	// FirstCustomBinIndex is where user defined bins start. Index 0 is
	// reserved and never assigned.
	FirstCustomBinIndex = 3

	// ChangeBinName ...
	ChangeBinName = "@change"
	// DefaultBinName ...
	DefaultBinName = "@default"

	// MaxAccountKeychains bounds the keychain set of an account, matching
	// the multisig script limit.
	MaxAccountKeychains = 15

	// DefaultUnusedPoolSize is the lookahead pool kept past the next
	// issuable script of every bin.
	DefaultUnusedPoolSize = 25
)

// TxStatus tracks a transaction along its lifecycle.
type TxStatus int

const (
	// TxStatusNone is the recompute sentinel, never persisted.
	TxStatusNone TxStatus = iota
	// TxStatusUnsigned marks a transaction with missing signatures.
	TxStatusUnsigned
	// TxStatusUnsent marks a fully signed transaction not yet broadcast.
	TxStatusUnsent
	// TxStatusSent marks a broadcast transaction not yet echoed by peers.
	TxStatusSent
	// TxStatusPropagated marks a transaction seen back from the network.
	TxStatusPropagated
	// TxStatusConflicting marks a transaction double-spending an owned
	// outpoint already referenced by another transaction.
	TxStatusConflicting
	// TxStatusCanceled marks a transaction abandoned by the user or killed
	// by the confirmation of a conflicting one.
	TxStatusCanceled
	// TxStatusConfirmed marks a transaction matched by a merkle block.
	TxStatusConfirmed
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusUnsigned:
		return "unsigned"
	case TxStatusUnsent:
		return "unsent"
	case TxStatusSent:
		return "sent"
	case TxStatusPropagated:
		return "propagated"
	case TxStatusConflicting:
		return "conflicting"
	case TxStatusCanceled:
		return "canceled"
	case TxStatusConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// TxOutStatus tracks whether an owned output has been spent.
type TxOutStatus int

const (
	// TxOutStatusUnspent ...
	TxOutStatusUnspent TxOutStatus = iota + 1
	// TxOutStatusSpent ...
	TxOutStatusSpent
)

func (s TxOutStatus) String() string {
	if s == TxOutStatusSpent {
		return "spent"
	}
	return "unspent"
}

// ScriptStatus tracks a signing script through the lookahead pool.
type ScriptStatus int

const (
	// ScriptStatusUnused marks a pool script not yet handed out.
	ScriptStatusUnused ScriptStatus = iota + 1
	// ScriptStatusChange marks a pool script of the change bin.
	ScriptStatusChange
	// ScriptStatusIssued marks a script handed out to a caller.
	ScriptStatusIssued
	// ScriptStatusUsed marks a script matched by a transaction output.
	ScriptStatusUsed
)

func (s ScriptStatus) String() string {
	switch s {
	case ScriptStatusUnused:
		return "unused"
	case ScriptStatusChange:
		return "change"
	case ScriptStatusIssued:
		return "issued"
	case ScriptStatusUsed:
		return "used"
	default:
		return "unknown"
	}
}
