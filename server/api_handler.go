package server

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/core"
)

type ApiHandler struct {
	processor *core.Processor
}

func NewApi(processor *core.Processor) *ApiHandler {
	return &ApiHandler{
		processor: processor,
	}
}

// Empty function for checking health only.
func (api *ApiHandler) CheckHealth() {
}

// Called by the subscriber host to indicate that it is ready to receive
// watch triggers.
func (api *ApiHandler) SetSubscriberReady() {
	api.processor.SetSubscriberReady(true)
}

// Publishes a hex-encoded signed transaction, honoring any timelock it
// carries.
func (api *ApiHandler) PublishTx(txHex string) error {
	bz, err := hex.DecodeString(txHex)
	if err != nil {
		return err
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(bz)); err != nil {
		return err
	}

	return api.processor.PublishWhenReady(tx)
}

func (api *ApiHandler) GetWatchCount() int {
	return api.processor.WatchCount()
}
