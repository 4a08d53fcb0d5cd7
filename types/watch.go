package types

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type WatchKind int

const (
	// Fires once when any transaction spends the outpoint, then the watch is
	// removed.
	WatchKindSpentBasic WatchKind = iota

	// Fires on every transaction observed spending the outpoint. Never
	// removed: a funding output can be re-spent by competing transactions
	// across a reorg and every occurrence must be reported.
	WatchKindSpent

	// Fires once when the transaction reaches MinDepth confirmations, or
	// fires the double-spent notification if the chain source reports the
	// transaction as displaced.
	WatchKindConfirmed
)

// Watch is a standing request to be notified about a chain condition. It is
// owned by a subscriber (a channel state machine, typically) identified by an
// opaque id.
type Watch struct {
	Subscriber string
	Kind       WatchKind

	// Key fields. Outpoint is set for the spent kinds, TxHash and MinDepth
	// for the confirmed kind.
	Outpoint wire.OutPoint
	TxHash   chainhash.Hash
	MinDepth int64

	// Opaque payload handed back to the subscriber on trigger.
	Payload interface{}
}

// Key uniquely identifies a watch by (subscriber, kind, key fields). Adding a
// watch with the same key twice is a no-op.
func (w *Watch) Key() string {
	switch w.Kind {
	case WatchKindConfirmed:
		return fmt.Sprintf("%s/confirmed/%s/%d", w.Subscriber, w.TxHash.String(), w.MinDepth)
	case WatchKindSpent:
		return fmt.Sprintf("%s/spent/%s", w.Subscriber, w.Outpoint.String())
	default:
		return fmt.Sprintf("%s/spent-basic/%s", w.Subscriber, w.Outpoint.String())
	}
}

type TriggerKind int

const (
	TriggerSpentBasic TriggerKind = iota
	TriggerSpent
	TriggerConfirmed
	TriggerDoubleSpent
)

// WatchTrigger is the notification delivered to a subscriber when one of its
// watches matches an observation. Subscribers only ever see these payloads,
// never the internal watch set or event log.
type WatchTrigger struct {
	Kind       TriggerKind
	Subscriber string
	Payload    interface{}

	// Set for TriggerSpent only.
	SpendingTx *wire.MsgTx

	// Set for TriggerConfirmed only.
	BlockHeight int64
}
