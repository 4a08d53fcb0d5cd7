package core

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/chains"
	"github.com/sisu-network/dewatch/client"
	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/database"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"
)

// Processor owns the watcher and the broadcaster and forwards watch triggers
// to the subscriber host. Triggers produced before the subscriber signals
// readiness are held back and flushed, in order, once it does.
type Processor struct {
	cfg         config.Dewatch
	db          database.Database
	client      client.Client
	transmitter chains.Transmitter

	watcher     *Watcher
	broadcaster *Broadcaster

	triggerCh chan *types.WatchTrigger
	readyCh   chan bool

	subscriberReady atomic.Bool
}

func NewProcessor(cfg *config.Dewatch, db database.Database, subscriberClient client.Client,
	transmitter chains.Transmitter) *Processor {
	return &Processor{
		cfg:         *cfg,
		db:          db,
		client:      subscriberClient,
		transmitter: transmitter,
	}
}

func (p *Processor) Start() {
	log.Info("Starting processor...")

	p.triggerCh = make(chan *types.WatchTrigger, 1000)
	p.readyCh = make(chan bool, 10)

	p.broadcaster = NewBroadcaster(p.transmitter, p.db)
	p.watcher = NewWatcher(p.db, p.triggerCh, p.broadcaster)

	go p.listen()

	p.transmitter.Start()
	p.broadcaster.Start()
	p.watcher.Start()

	p.replayJournal()
}

// replayJournal feeds archived observations back through the watcher so that
// watches registered after a restart still see pre-restart history.
func (p *Processor) replayJournal() {
	if p.db == nil {
		return
	}

	observations, err := p.db.LoadObservations()
	if err != nil {
		log.Error("Cannot load archived observations, err = ", err)
		return
	}

	if len(observations) == 0 {
		return
	}

	log.Infof("Replaying %d archived observation(s)", len(observations))
	for _, obs := range observations {
		p.watcher.ObserveConfirmation(obs)
	}
}

func (p *Processor) listen() {
	pending := make([]*types.WatchTrigger, 0)

	for {
		select {
		case trigger := <-p.triggerCh:
			// Forward only when the subscriber is ready and nothing is held
			// back, otherwise the trigger would overtake earlier ones still
			// waiting for the flush.
			if p.subscriberReady.Load() && len(pending) == 0 {
				p.forward(trigger)
			} else {
				log.Warnf("trigger: subscriber is not ready, holding back")
				pending = append(pending, trigger)
			}

		case ready := <-p.readyCh:
			if !ready {
				continue
			}

			for _, trigger := range pending {
				p.forward(trigger)
			}
			pending = pending[:0]
		}
	}
}

func (p *Processor) forward(trigger *types.WatchTrigger) {
	err := p.client.PostWatchTrigger(trigger)
	if err != nil {
		log.Error("Cannot post watch trigger to subscriber, err = ", err)
	}
}

// SetSubscriberReady tells the processor whether the subscriber host can
// receive triggers.
func (p *Processor) SetSubscriberReady(isReady bool) {
	p.subscriberReady.Store(isReady)
	p.readyCh <- isReady
}

func (p *Processor) AddWatch(watch *types.Watch) {
	p.watcher.AddWatch(watch)
}

func (p *Processor) ObserveConfirmation(obs *types.TxObservation) {
	p.watcher.ObserveConfirmation(obs)
}

func (p *Processor) ObserveHeight(height int64) {
	p.watcher.ObserveHeight(height)
}

func (p *Processor) PublishWhenReady(tx *wire.MsgTx) error {
	return p.watcher.PublishWhenReady(tx)
}

func (p *Processor) Terminate(subscriber string) {
	p.watcher.Terminate(subscriber)
}

// WatchSubscriber removes every watch of the subscriber once done closes.
// This is the supervision hook for host runtimes that know when a subscriber
// goes away.
func (p *Processor) WatchSubscriber(subscriber string, done <-chan struct{}) {
	go func() {
		<-done
		log.Info("Subscriber terminated: ", subscriber)
		p.watcher.Terminate(subscriber)
	}()
}

// WatchCount returns the number of active watches. Diagnostic hook.
func (p *Processor) WatchCount() int {
	return len(p.watcher.Snapshot())
}
