package core

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/chains"
	"github.com/sisu-network/dewatch/database"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
)

type transmitComplete struct {
	txHash string
	result *types.TransmitResult
}

// Broadcaster serializes transaction broadcasts: at most one transmit call is
// outstanding at any time and submissions go out in FIFO order. A failed
// transmit is logged and recorded, never retried; resubmitting is the
// caller's call.
//
// All state is owned by the listen goroutine. The transmit capability runs in
// its own goroutine and reports back through completeCh, so the loop never
// blocks on network I/O.
type Broadcaster struct {
	transmitter chains.Transmitter
	db          database.Database

	submitCh   chan *wire.MsgTx
	completeCh chan *transmitComplete

	inFlight     *wire.MsgTx
	inFlightHash string
	backlog      []*wire.MsgTx
}

func NewBroadcaster(transmitter chains.Transmitter, db database.Database) *Broadcaster {
	return &Broadcaster{
		transmitter: transmitter,
		db:          db,
		submitCh:    make(chan *wire.MsgTx, 100),
		completeCh:  make(chan *transmitComplete),
		backlog:     make([]*wire.MsgTx, 0),
	}
}

func (b *Broadcaster) Start() {
	go b.listen()
}

// Submit queues the transaction for broadcast. It transmits immediately when
// no broadcast is outstanding and joins the backlog otherwise.
func (b *Broadcaster) Submit(tx *wire.MsgTx) {
	b.submitCh <- tx
}

func (b *Broadcaster) listen() {
	for {
		select {
		case tx := <-b.submitCh:
			b.processSubmit(tx)

		case complete := <-b.completeCh:
			b.processComplete(complete)
		}
	}
}

func (b *Broadcaster) processSubmit(tx *wire.MsgTx) {
	if b.inFlight != nil {
		b.backlog = append(b.backlog, tx)
		return
	}

	b.transmit(tx)
}

func (b *Broadcaster) processComplete(complete *transmitComplete) {
	if b.inFlight == nil || complete.txHash != b.inFlightHash {
		// A completion that does not match the in-flight tx means the
		// one-at-a-time invariant was broken externally.
		panic(fmt.Errorf("unknown transmit acknowledgment for tx %s, in flight = %s",
			complete.txHash, b.inFlightHash))
	}

	result := complete.result
	if result.Success {
		log.Verbose("Tx transmitted successfully, hash = ", complete.txHash)
	} else {
		log.Error("Tx transmission failed, hash = ", complete.txHash, ", err = ", result.Err)
	}

	if b.db != nil {
		errMsg := ""
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		b.db.SaveBroadcastResult(complete.txHash, result.Success, errMsg)
	}

	b.inFlight = nil
	b.inFlightHash = ""

	if len(b.backlog) > 0 {
		next := b.backlog[0]
		b.backlog = b.backlog[1:]
		b.transmit(next)
	}
}

func (b *Broadcaster) transmit(tx *wire.MsgTx) {
	hash := tx.TxHash().String()

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		// Cannot even serialize the tx. Treat as a failed attempt and move
		// on to the next one in the backlog.
		log.Error("Cannot serialize tx ", hash, ", err = ", err)
		if b.db != nil {
			b.db.SaveBroadcastResult(hash, false, err.Error())
		}

		if len(b.backlog) > 0 {
			next := b.backlog[0]
			b.backlog = b.backlog[1:]
			b.transmit(next)
		}
		return
	}

	b.inFlight = tx
	b.inFlightHash = hash

	request := &types.TransmitRequest{
		TxHash: hash,
		Tx:     buf.Bytes(),
	}

	go func() {
		result := b.transmitter.Transmit(request)
		b.completeCh <- &transmitComplete{
			txHash: hash,
			result: result,
		}
	}()
}
