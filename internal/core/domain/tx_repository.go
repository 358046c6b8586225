package domain

import "context"

// TransactionRepository persists transactions with their inputs and outputs.
type TransactionRepository interface {
	AddTx(ctx context.Context, tx *Tx, ins []*TxIn, outs []*TxOut) error
	GetTxByID(ctx context.Context, id uint64) (*Tx, error)
	GetTxByUnsignedHash(ctx context.Context, unsignedHash []byte) (*Tx, error)
	GetTxByHash(ctx context.Context, hash []byte) (*Tx, error)
	GetAllTxs(ctx context.Context) ([]Tx, error)
	GetTxsByStatus(ctx context.Context, statuses ...TxStatus) ([]Tx, error)
	GetTxsByBlockHeader(ctx context.Context, headerID uint64) ([]Tx, error)
	UpdateTx(ctx context.Context, tx *Tx) error
	DeleteTx(ctx context.Context, id uint64) error

	GetTxIns(ctx context.Context, txID uint64) ([]TxIn, error)
	GetTxInsByOutpoint(ctx context.Context, outHash []byte, outIndex uint32) ([]TxIn, error)
	UpdateTxIn(ctx context.Context, txIn *TxIn) error

	GetTxOuts(ctx context.Context, txID uint64) ([]TxOut, error)
	GetTxOutByID(ctx context.Context, id uint64) (*TxOut, error)
	GetTxOutsByScript(ctx context.Context, script []byte) ([]TxOut, error)
	GetOwnedTxOuts(ctx context.Context) ([]TxOut, error)
	GetUnspentTxOuts(ctx context.Context) ([]TxOut, error)
	UpdateTxOut(ctx context.Context, txOut *TxOut) error
}
