package bitcoin

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/sisu-network/dewatch/chains"
	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
	"github.com/ybbus/jsonrpc/v3"
)

const (
	RpcTimeOut = time.Second * 5

	// Number of recently transmitted tx hashes kept around so that
	// re-submissions can be spotted in the logs.
	SentTxCacheSize = 1_000
)

// Transmitter submits raw transactions to a bitcoind-style node through the
// sendrawtransaction JSON-RPC call.
type Transmitter struct {
	cfg    config.Chain
	client jsonrpc.RPCClient

	sentTxCache *lru.Cache
}

func NewTransmitter(cfg config.Chain) chains.Transmitter {
	return &Transmitter{
		cfg:         cfg,
		sentTxCache: lru.New(SentTxCacheSize),
	}
}

func (t *Transmitter) Start() {
	if len(t.cfg.Rpcs) == 0 {
		panic(fmt.Errorf("no rpc endpoint configured for chain %s", t.cfg.Chain))
	}

	// TODO: Use multiple RPC endpoints.
	t.client = jsonrpc.NewClient(t.cfg.Rpcs[0])
}

func (t *Transmitter) Transmit(request *types.TransmitRequest) *types.TransmitResult {
	if _, ok := t.sentTxCache.Get(request.TxHash); ok {
		log.Verbose("Re-transmitting previously sent tx, hash = ", request.TxHash)
	}

	ctx, cancel := context.WithTimeout(context.Background(), RpcTimeOut)
	defer cancel()

	response, err := t.client.Call(ctx, "sendrawtransaction", hex.EncodeToString(request.Tx))
	if err != nil {
		log.Error("Cannot send raw transaction, err = ", err)
		return types.NewTransmitError(err)
	}

	if response.Error != nil {
		log.Error("Node rejected transaction ", request.TxHash, ", err = ", response.Error)
		return types.NewTransmitError(response.Error)
	}

	t.sentTxCache.Add(request.TxHash, true)

	return &types.TransmitResult{
		Success: true,
		TxHash:  request.TxHash,
	}
}
