package core

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/sisu-network/dewatch/types"
)

// eventLog keeps the most recent observation per transaction, in original
// arrival order. It is replayed to watches registered after the matching
// observation already arrived, closing the race between the event stream and
// late registration.
//
// The log grows without bound. There is no eviction: replay correctness for
// arbitrarily late watches depends on the full history being present.
type eventLog struct {
	order []chainhash.Hash
	byTx  map[chainhash.Hash]*types.TxObservation
}

func newEventLog() *eventLog {
	return &eventLog{
		order: make([]chainhash.Hash, 0),
		byTx:  make(map[chainhash.Hash]*types.TxObservation),
	}
}

// upsert records the observation. A newer observation for the same
// transaction always replaces the stored one, even when its confirmation
// count is lower (reorg rollbacks and the displacement sentinel included),
// and keeps the transaction's original position in the log.
func (l *eventLog) upsert(obs *types.TxObservation) {
	if _, ok := l.byTx[obs.TxHash]; !ok {
		l.order = append(l.order, obs.TxHash)
	}

	l.byTx[obs.TxHash] = obs
}

func (l *eventLog) get(hash chainhash.Hash) (*types.TxObservation, bool) {
	obs, ok := l.byTx[hash]
	return obs, ok
}

func (l *eventLog) forEach(fn func(obs *types.TxObservation) bool) {
	for _, hash := range l.order {
		if !fn(l.byTx[hash]) {
			return
		}
	}
}

func (l *eventLog) size() int {
	return len(l.order)
}
