package core

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/database"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
)

type publishRequest struct {
	tx    *wire.MsgTx
	errCh chan error
}

// csvWait is a transaction waiting for its parent to confirm so that the
// relative delay can be resolved into an absolute height.
type csvWait struct {
	tx    *wire.MsgTx
	delay int64
}

// Watcher matches chain observations against registered watches and resolves
// publish requests against chain height. All inputs are funneled through a
// single listen goroutine, so the watch set, event log and pending tables are
// never mutated concurrently.
type Watcher struct {
	db          database.Database
	triggerCh   chan *types.WatchTrigger
	broadcaster *Broadcaster

	watchCh       chan *types.Watch
	observationCh chan *types.TxObservation
	heightCh      chan int64
	publishCh     chan *publishRequest
	terminateCh   chan string
	snapshotCh    chan chan []*types.Watch

	// State below is owned by the listen goroutine.
	watches     map[string]*types.Watch
	watchOrder  []string
	eventLog    *eventLog
	pendingPubs map[int64][]*wire.MsgTx
	csvWaits    map[chainhash.Hash][]*csvWait
	height      int64
}

func NewWatcher(db database.Database, triggerCh chan *types.WatchTrigger,
	broadcaster *Broadcaster) *Watcher {
	return &Watcher{
		db:            db,
		triggerCh:     triggerCh,
		broadcaster:   broadcaster,
		watchCh:       make(chan *types.Watch, 100),
		observationCh: make(chan *types.TxObservation, 100),
		heightCh:      make(chan int64, 100),
		publishCh:     make(chan *publishRequest),
		terminateCh:   make(chan string, 100),
		snapshotCh:    make(chan chan []*types.Watch),
		watches:       make(map[string]*types.Watch),
		watchOrder:    make([]string, 0),
		eventLog:      newEventLog(),
		pendingPubs:   make(map[int64][]*wire.MsgTx),
		csvWaits:      make(map[chainhash.Hash][]*csvWait),
	}
}

func (w *Watcher) Start() {
	log.Info("Starting chain watcher...")

	go w.listen()
}

// AddWatch registers the watch. Registering the same watch twice is a no-op.
// Observations that arrived before registration are replayed to the new
// watch, so triggers may be delivered as part of registration.
func (w *Watcher) AddWatch(watch *types.Watch) {
	w.watchCh <- watch
}

// ObserveConfirmation feeds one chain confirmation event into the watcher.
// Observations for the same transaction are applied in arrival order.
func (w *Watcher) ObserveConfirmation(obs *types.TxObservation) {
	w.observationCh <- obs
}

// ObserveHeight advances the chain height and releases every pending
// publication whose target height has been reached.
func (w *Watcher) ObserveHeight(height int64) {
	w.heightCh <- height
}

// PublishWhenReady schedules the fully-signed tx for broadcast, honoring any
// block-based timelock it carries. The returned error is non-nil only for
// contract violations; scheduling itself never fails.
func (w *Watcher) PublishWhenReady(tx *wire.MsgTx) error {
	request := &publishRequest{
		tx:    tx,
		errCh: make(chan error, 1),
	}
	w.publishCh <- request

	return <-request.errCh
}

// Terminate removes every watch owned by the subscriber. Unknown subscribers
// are a no-op.
func (w *Watcher) Terminate(subscriber string) {
	w.terminateCh <- subscriber
}

// Snapshot returns the current watch set. Diagnostic and testing hook.
func (w *Watcher) Snapshot() []*types.Watch {
	replyCh := make(chan []*types.Watch, 1)
	w.snapshotCh <- replyCh

	return <-replyCh
}

func (w *Watcher) listen() {
	for {
		select {
		case watch := <-w.watchCh:
			w.processAddWatch(watch)

		case obs := <-w.observationCh:
			w.processObservation(obs)

		case height := <-w.heightCh:
			w.processHeight(height)

		case request := <-w.publishCh:
			request.errCh <- w.processPublish(request.tx)

		case subscriber := <-w.terminateCh:
			w.processTerminate(subscriber)

		case replyCh := <-w.snapshotCh:
			replyCh <- w.activeWatches()
		}
	}
}

// activeWatches returns the registered watches in registration order, pruning
// order entries of removed watches along the way.
func (w *Watcher) activeWatches() []*types.Watch {
	kept := w.watchOrder[:0]
	ret := make([]*types.Watch, 0, len(w.watches))
	for _, key := range w.watchOrder {
		watch, ok := w.watches[key]
		if !ok {
			continue
		}

		kept = append(kept, key)
		ret = append(ret, watch)
	}
	w.watchOrder = kept

	return ret
}

func (w *Watcher) processAddWatch(watch *types.Watch) {
	key := watch.Key()
	if _, ok := w.watches[key]; ok {
		log.Verbose("Ignoring duplicated watch, key = ", key)
		return
	}

	w.watches[key] = watch
	w.watchOrder = append(w.watchOrder, key)

	// Replay history so that observations preceding registration still
	// trigger the watch, in their original arrival order.
	w.eventLog.forEach(func(obs *types.TxObservation) bool {
		fired := w.deliverMatch(watch, obs)

		// A one-shot watch fires at most once; stop the replay as soon as
		// it is spent.
		if fired && oneShot(watch) {
			return false
		}

		return true
	})
}

func (w *Watcher) processObservation(obs *types.TxObservation) {
	log.Verbose("Observed tx ", obs.TxHash.String(), " at height ", obs.BlockHeight,
		", confirmations = ", obs.Confirmations)

	for _, watch := range w.activeWatches() {
		w.deliverMatch(watch, obs)
	}

	w.resolveCsvWaits(obs)

	w.eventLog.upsert(obs)
	if w.db != nil {
		w.db.SaveObservation(obs)
	}
}

// deliverMatch delivers the trigger for the watch if it matches the
// observation and removes the watch from the active set when it is one-shot.
// Returns whether the watch fired.
func (w *Watcher) deliverMatch(watch *types.Watch, obs *types.TxObservation) bool {
	trigger := matchWatch(watch, obs)
	if trigger == nil {
		return false
	}

	if oneShot(watch) {
		delete(w.watches, watch.Key())
	}

	w.triggerCh <- trigger

	return true
}

// matchWatch returns the trigger the observation produces for the watch, or
// nil when it does not match.
func matchWatch(watch *types.Watch, obs *types.TxObservation) *types.WatchTrigger {
	switch watch.Kind {
	case types.WatchKindSpentBasic, types.WatchKindSpent:
		for _, in := range obs.Tx.TxIn {
			if in.PreviousOutPoint != watch.Outpoint {
				continue
			}

			if watch.Kind == types.WatchKindSpent {
				return &types.WatchTrigger{
					Kind:       types.TriggerSpent,
					Subscriber: watch.Subscriber,
					Payload:    watch.Payload,
					SpendingTx: obs.Tx,
				}
			}

			return &types.WatchTrigger{
				Kind:       types.TriggerSpentBasic,
				Subscriber: watch.Subscriber,
				Payload:    watch.Payload,
			}
		}

	case types.WatchKindConfirmed:
		if obs.TxHash != watch.TxHash {
			return nil
		}

		if obs.Displaced() {
			// The watched tx was displaced by a conflicting tx. This fires
			// regardless of the requested depth.
			return &types.WatchTrigger{
				Kind:       types.TriggerDoubleSpent,
				Subscriber: watch.Subscriber,
				Payload:    watch.Payload,
			}
		}

		if obs.Confirmations >= watch.MinDepth {
			return &types.WatchTrigger{
				Kind:        types.TriggerConfirmed,
				Subscriber:  watch.Subscriber,
				Payload:     watch.Payload,
				BlockHeight: obs.BlockHeight,
			}
		}
	}

	return nil
}

// oneShot reports whether the watch is removed after its first trigger.
// Spent watches are permanent: a funding output can be re-spent by competing
// transactions across a reorg and every spend must be reported.
func oneShot(watch *types.Watch) bool {
	return watch.Kind != types.WatchKindSpent
}

// resolveCsvWaits resolves relative-timelock waits keyed by the observed tx:
// once the parent is confirmed at a known height the absolute deadline is
// parent height + delay, and the child goes through normal scheduling.
func (w *Watcher) resolveCsvWaits(obs *types.TxObservation) {
	waits := w.csvWaits[obs.TxHash]
	if len(waits) == 0 {
		return
	}

	if obs.Displaced() {
		// The parent may still confirm after a reorg, keep waiting.
		log.Warnf("Parent tx %s of %d pending publication(s) was displaced",
			obs.TxHash.String(), len(waits))
		return
	}

	if obs.Confirmations < 1 {
		return
	}

	delete(w.csvWaits, obs.TxHash)

	for _, wait := range waits {
		w.scheduleAt(obs.BlockHeight+wait.delay, wait.tx)
	}
}

func (w *Watcher) processHeight(height int64) {
	if height > w.height {
		w.height = height
	}

	due := make([]int64, 0)
	for target := range w.pendingPubs {
		if target <= w.height {
			due = append(due, target)
		}
	}

	if len(due) == 0 {
		return
	}

	// Ascending height, then insertion order within a height.
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	for _, target := range due {
		for _, tx := range w.pendingPubs[target] {
			log.Verbose("Height ", w.height, " reached, publishing tx ", tx.TxHash().String())
			w.broadcaster.Submit(tx)
		}
		delete(w.pendingPubs, target)
	}
}

func (w *Watcher) processPublish(tx *wire.MsgTx) error {
	delay, err := relativeLock(tx)
	if err != nil {
		return err
	}

	if delay > 0 {
		parent := tx.TxIn[0].PreviousOutPoint.Hash

		// The real deadline is unknowable until the parent actually
		// confirms somewhere. If it already has, resolve right away from
		// the event log; otherwise wait for its confirmation observation.
		if obs, ok := w.eventLog.get(parent); ok && !obs.Displaced() && obs.Confirmations >= 1 {
			w.scheduleAt(obs.BlockHeight+delay, tx)
			return nil
		}

		log.Verbose("Waiting for parent ", parent.String(), " to confirm before publishing ",
			tx.TxHash().String())
		w.csvWaits[parent] = append(w.csvWaits[parent], &csvWait{tx: tx, delay: delay})

		return nil
	}

	target, err := absoluteLockHeight(tx)
	if err != nil {
		return err
	}

	w.scheduleAt(target, tx)

	return nil
}

// scheduleAt defers the tx until the chain reaches the target height, or
// hands it to the broadcaster right away when it already has.
func (w *Watcher) scheduleAt(target int64, tx *wire.MsgTx) {
	if target > w.height {
		log.Verbose("Deferring publication of ", tx.TxHash().String(), " until height ", target)
		w.pendingPubs[target] = append(w.pendingPubs[target], tx)
		return
	}

	w.broadcaster.Submit(tx)
}

func (w *Watcher) processTerminate(subscriber string) {
	removed := 0
	for key, watch := range w.watches {
		if watch.Subscriber == subscriber {
			delete(w.watches, key)
			removed++
		}
	}

	if removed > 0 {
		log.Infof("Removed %d watch(es) of terminated subscriber %s", removed, subscriber)
	}
}
