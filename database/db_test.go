package database

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/types"
	"github.com/stretchr/testify/require"
)

func getTestDb(t *testing.T) *DefaultDatabase {
	cfg := config.Dewatch{
		DbSchema: t.Name(),
		InMemory: true,
	}
	dbInstance := NewDb(&cfg)
	err := dbInstance.Init()
	require.Nil(t, err)

	return dbInstance.(*DefaultDatabase)
}

func testTx(t *testing.T, prevHash byte, index uint32) *wire.MsgTx {
	hash := chainhash.Hash{}
	hash[0] = prevHash

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, index), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	return tx
}

func TestDefaultDatabase_SaveAndLoadObservations(t *testing.T) {
	db := getTestDb(t)

	tx1 := testTx(t, 1, 0)
	tx2 := testTx(t, 2, 0)

	err := db.doSaveObservation(types.NewTxObservation(tx1, 100, 1))
	require.Nil(t, err)
	err = db.doSaveObservation(types.NewTxObservation(tx2, 101, 1))
	require.Nil(t, err)

	obs, err := db.LoadObservations()
	require.Nil(t, err)
	require.Equal(t, 2, len(obs))
	require.Equal(t, tx1.TxHash(), obs[0].TxHash)
	require.Equal(t, tx2.TxHash(), obs[1].TxHash)
	require.Equal(t, int64(100), obs[0].BlockHeight)
}

func TestDefaultDatabase_LastObservationWins(t *testing.T) {
	db := getTestDb(t)

	tx1 := testTx(t, 1, 0)
	tx2 := testTx(t, 2, 0)

	require.Nil(t, db.doSaveObservation(types.NewTxObservation(tx1, 100, 2)))
	require.Nil(t, db.doSaveObservation(types.NewTxObservation(tx2, 101, 1)))

	// A replacement keeps the original position, even with a lower count
	// (displacement rollbacks included).
	require.Nil(t, db.doSaveObservation(types.NewTxObservation(tx1, 100, types.ConfirmationsDisplaced)))

	obs, err := db.LoadObservations()
	require.Nil(t, err)
	require.Equal(t, 2, len(obs))
	require.Equal(t, tx1.TxHash(), obs[0].TxHash)
	require.Equal(t, int64(types.ConfirmationsDisplaced), obs[0].Confirmations)
	require.Equal(t, tx2.TxHash(), obs[1].TxHash)
}

func TestDefaultDatabase_SaveBroadcastResult(t *testing.T) {
	db := getTestDb(t)

	db.SaveBroadcastResult("some-hash", false, "tx rejected")

	rows, err := db.db.Query("SELECT tx_hash, success, error FROM broadcast_results")
	require.Nil(t, err)
	defer rows.Close()

	require.True(t, rows.Next())

	var hash, errMsg string
	var success bool
	require.Nil(t, rows.Scan(&hash, &success, &errMsg))
	require.Equal(t, "some-hash", hash)
	require.False(t, success)
	require.Equal(t, "tx rejected", errMsg)
}
