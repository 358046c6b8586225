package application

import (
	"github.com/google/uuid"
)

const (
	// QuitSignal ...
	QuitSignal EventType = iota
	// AccountsUpdated is emitted whenever any owned object of the named
	// accounts changes.
	AccountsUpdated
	// TransactionAdded is emitted on first insertion of a transaction
	// whose unsigned hash was not present.
	TransactionAdded
	// BlockAdded is emitted on every successful header insertion.
	BlockAdded
	// SyncHeightUpdated is emitted on every best height advance.
	SyncHeightUpdated
	// OperationFailed mirrors errors surfaced by background chain
	// operations.
	OperationFailed
)

// EventType ...
type EventType int

func (et EventType) String() string {
	switch et {
	case QuitSignal:
		return "QuitSignal"
	case AccountsUpdated:
		return "AccountsUpdated"
	case TransactionAdded:
		return "TransactionAdded"
	case BlockAdded:
		return "BlockAdded"
	case SyncHeightUpdated:
		return "SyncHeightUpdated"
	case OperationFailed:
		return "OperationFailed"
	default:
		return "Unknown"
	}
}

// Event is emitted through the vault's event channel after every commit,
// in commit order.
type Event interface {
	Type() EventType
	ID() string
}

type baseEvent struct {
	id        string
	eventType EventType
}

func newBaseEvent(eventType EventType) baseEvent {
	return baseEvent{id: uuid.New().String(), eventType: eventType}
}

func (e baseEvent) Type() EventType { return e.eventType }
func (e baseEvent) ID() string      { return e.id }

// AccountsUpdatedEvent ...
type AccountsUpdatedEvent struct {
	baseEvent
	AccountNames []string
}

// TransactionAddedEvent ...
type TransactionAddedEvent struct {
	baseEvent
	UnsignedHash []byte
}

// BlockAddedEvent ...
type BlockAddedEvent struct {
	baseEvent
	Hash   []byte
	Height uint32
}

// SyncHeightUpdatedEvent ...
type SyncHeightUpdatedEvent struct {
	baseEvent
	Height uint32
}

// OperationFailedEvent ...
type OperationFailedEvent struct {
	baseEvent
	Err error
}

func newAccountsUpdatedEvent(accountNames []string) Event {
	return AccountsUpdatedEvent{newBaseEvent(AccountsUpdated), accountNames}
}

func newTransactionAddedEvent(unsignedHash []byte) Event {
	return TransactionAddedEvent{newBaseEvent(TransactionAdded), unsignedHash}
}

func newBlockAddedEvent(hash []byte, height uint32) Event {
	return BlockAddedEvent{newBaseEvent(BlockAdded), hash, height}
}

func newSyncHeightUpdatedEvent(height uint32) Event {
	return SyncHeightUpdatedEvent{newBaseEvent(SyncHeightUpdated), height}
}

func newOperationFailedEvent(err error) Event {
	return OperationFailedEvent{newBaseEvent(OperationFailed), err}
}
