package core

import (
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrMultiInputRelativeLock = errors.New("relatively-timelocked transaction must have a single input")
	ErrTimeBasedLock          = errors.New("time-based locks are not supported, only block heights")
)

// relativeLockDelay returns the block-based relative delay encoded in the
// input's nSequence per BIP-68, or 0 when the input carries no relative lock.
func relativeLockDelay(in *wire.TxIn) (int64, error) {
	seq := in.Sequence
	if seq == wire.MaxTxInSequenceNum || seq&wire.SequenceLockTimeDisabled != 0 {
		return 0, nil
	}

	if seq&wire.SequenceLockTimeIsSeconds != 0 {
		return 0, ErrTimeBasedLock
	}

	return int64(seq & wire.SequenceLockTimeMask), nil
}

// relativeLock returns the relative delay of the transaction's single input.
// A relatively-timelocked transaction with more than one input is a contract
// violation.
func relativeLock(tx *wire.MsgTx) (int64, error) {
	for _, in := range tx.TxIn {
		delay, err := relativeLockDelay(in)
		if err != nil {
			return 0, err
		}

		if delay > 0 {
			if len(tx.TxIn) > 1 {
				return 0, ErrMultiInputRelativeLock
			}

			return delay, nil
		}
	}

	return 0, nil
}

// absoluteLockHeight returns the height encoded in nLockTime, or 0 when the
// transaction has no absolute lock.
func absoluteLockHeight(tx *wire.MsgTx) (int64, error) {
	if tx.LockTime == 0 {
		return 0, nil
	}

	if tx.LockTime >= txscript.LockTimeThreshold {
		return 0, ErrTimeBasedLock
	}

	return int64(tx.LockTime), nil
}
