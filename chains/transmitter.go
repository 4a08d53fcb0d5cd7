package chains

import (
	"github.com/sisu-network/dewatch/types"
)

// Transmitter submits a fully-signed transaction to the network. Transmit
// blocks until the node accepts or rejects the transaction; the broadcast
// serializer calls it from its own goroutine and feeds the result back into
// its loop as a completion event.
type Transmitter interface {
	Start()
	Transmit(request *types.TransmitRequest) *types.TransmitResult
}
