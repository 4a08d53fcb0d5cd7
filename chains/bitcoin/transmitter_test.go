package bitcoin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/types"
	"github.com/stretchr/testify/require"
)

func runTestRpcServer(t *testing.T, response string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make(map[string]interface{})
		err := json.NewDecoder(r.Body).Decode(&body)
		require.Nil(t, err)
		require.Equal(t, "sendrawtransaction", body["method"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

func TestTransmitter_Success(t *testing.T) {
	server := runTestRpcServer(t, `{"jsonrpc":"2.0","id":1,"result":"some-tx-hash"}`)
	defer server.Close()

	transmitter := NewTransmitter(config.Chain{
		Chain: "bitcoin-regtest",
		Rpcs:  []string{server.URL},
	})
	transmitter.Start()

	result := transmitter.Transmit(&types.TransmitRequest{
		TxHash: "some-tx-hash",
		Tx:     []byte{0x01, 0x02},
	})

	require.True(t, result.Success)
	require.Equal(t, "some-tx-hash", result.TxHash)
}

func TestTransmitter_NodeRejection(t *testing.T) {
	server := runTestRpcServer(t,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-26,"message":"txn-mempool-conflict"}}`)
	defer server.Close()

	transmitter := NewTransmitter(config.Chain{
		Chain: "bitcoin-regtest",
		Rpcs:  []string{server.URL},
	})
	transmitter.Start()

	result := transmitter.Transmit(&types.TransmitRequest{
		TxHash: "some-tx-hash",
		Tx:     []byte{0x01, 0x02},
	})

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
}
