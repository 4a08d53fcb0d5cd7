package types

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ConfirmationsDisplaced is the sentinel confirmation count meaning the
// transaction's history was invalidated: a conflicting transaction displaced
// it (double spend / reorg signal).
const ConfirmationsDisplaced = -1

// TxObservation is the sole external input describing chain state for a
// transaction: the tx itself, the height of the block containing it and the
// confirmation count the chain source reports for it.
type TxObservation struct {
	Tx            *wire.MsgTx
	TxHash        chainhash.Hash
	BlockHeight   int64
	Confirmations int64
}

func NewTxObservation(tx *wire.MsgTx, blockHeight, confirmations int64) *TxObservation {
	return &TxObservation{
		Tx:            tx,
		TxHash:        tx.TxHash(),
		BlockHeight:   blockHeight,
		Confirmations: confirmations,
	}
}

// Displaced reports whether this observation carries the displacement
// sentinel.
func (o *TxObservation) Displaced() bool {
	return o.Confirmations == ConfirmationsDisplaced
}
