package database

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate"
	migratedb "github.com/golang-migrate/migrate/database"
	migratemysql "github.com/golang-migrate/migrate/database/mysql"
	migratesqlite3 "github.com/golang-migrate/migrate/database/sqlite3"
	_ "github.com/golang-migrate/migrate/source/file"
	_ "github.com/mattn/go-sqlite3"

	"github.com/btcsuite/btcd/wire"
	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
)

const (
	DriverMysql   = "mysql"
	DriverSqlite3 = "sqlite3"
)

// Database archives every chain observation and broadcast attempt. The
// observation journal doubles as a warm-start source: on boot the processor
// replays it through the watcher so that watches registered by a restarted
// subscriber still see pre-restart history.
type Database interface {
	Init() error
	SaveObservation(obs *types.TxObservation)
	LoadObservations() ([]*types.TxObservation, error)
	SaveBroadcastResult(txHash string, success bool, errMsg string)
}

type saveObservationRequest struct {
	obs *types.TxObservation
}

type DefaultDatabase struct {
	cfg    *config.Dewatch
	db     *sql.DB
	saveCh chan *saveObservationRequest

	// Insertion index assigned to observations on first insert and kept on
	// replace, so load order matches original arrival order.
	nextSeq int64
}

type dbLogger struct {
}

func (logger *dbLogger) Printf(format string, v ...interface{}) {
	log.Verbosef(format, v...)
}

func (logger *dbLogger) Verbose() bool {
	return true
}

func NewDb(cfg *config.Dewatch) Database {
	return &DefaultDatabase{
		cfg:    cfg,
		saveCh: make(chan *saveObservationRequest, 100),
	}
}

func (d *DefaultDatabase) driver() string {
	if d.cfg.InMemory {
		return DriverSqlite3
	}

	return DriverMysql
}

func (d *DefaultDatabase) Connect() error {
	switch d.driver() {
	case DriverSqlite3:
		database, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", d.cfg.DbSchema))
		if err != nil {
			return err
		}
		d.db = database

	default:
		host := d.cfg.DbHost
		if host == "" {
			return fmt.Errorf("DB host cannot be empty")
		}

		username := d.cfg.DbUsername
		password := d.cfg.DbPassword
		schema := d.cfg.DbSchema

		url := fmt.Sprintf("%s:%s@tcp(%s:%d)/", username, password, host, d.cfg.DbPort)
		database, err := sql.Open("mysql", url)
		if err != nil {
			return err
		}
		_, err = database.Exec("CREATE DATABASE IF NOT EXISTS " + schema)
		if err != nil {
			return err
		}
		database.Close()

		database, err = sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", username, password,
			host, d.cfg.DbPort, schema))
		if err != nil {
			return err
		}
		d.db = database
	}

	log.Info("Db is connected successfully, driver = ", d.driver())
	return nil
}

func (d *DefaultDatabase) DoMigration() error {
	var driver migratedb.Driver
	var err error

	switch d.driver() {
	case DriverSqlite3:
		driver, err = migratesqlite3.WithInstance(d.db, &migratesqlite3.Config{})
	default:
		driver, err = migratemysql.WithInstance(d.db, &migratemysql.Config{})
	}
	if err != nil {
		return err
	}

	migrationDir, err := MigrationsTempDir()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationDir),
		d.driver(),
		driver,
	)
	if err != nil {
		return err
	}

	m.Log = &dbLogger{}
	m.Up()

	return nil
}

func (d *DefaultDatabase) Init() error {
	err := d.Connect()
	if err != nil {
		log.Error("Failed to connect to DB. Err = ", err)
		return err
	}

	err = d.DoMigration()
	if err != nil {
		return err
	}

	err = d.loadNextSeq()
	if err != nil {
		return err
	}

	go d.listen()

	return nil
}

func (d *DefaultDatabase) loadNextSeq() error {
	row := d.db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM observations")

	var maxSeq int64
	if err := row.Scan(&maxSeq); err != nil {
		return err
	}

	d.nextSeq = maxSeq + 1
	return nil
}

// Listen to requests to save into database.
func (d *DefaultDatabase) listen() {
	for req := range d.saveCh {
		err := d.doSaveObservation(req.obs)
		if err != nil {
			log.Error("Cannot save observation into db, err = ", err)
		}
	}
}

func (d *DefaultDatabase) doSaveObservation(obs *types.TxObservation) error {
	var buf bytes.Buffer
	if err := obs.Tx.Serialize(&buf); err != nil {
		return err
	}

	hash := obs.TxHash.String()
	txHex := hex.EncodeToString(buf.Bytes())

	// Last write wins per tx hash, matching the in-memory event log. A
	// replacement keeps the original seq so load order is arrival order.
	var seq int64
	row := d.db.QueryRow("SELECT seq FROM observations WHERE tx_hash = ?", hash)
	switch err := row.Scan(&seq); err {
	case sql.ErrNoRows:
		_, err = d.db.Exec(
			"INSERT INTO observations (tx_hash, seq, block_height, confirmations, tx_hex) VALUES (?, ?, ?, ?, ?)",
			hash, d.nextSeq, obs.BlockHeight, obs.Confirmations, txHex)
		if err != nil {
			return err
		}
		d.nextSeq++

	case nil:
		_, err = d.db.Exec(
			"UPDATE observations SET block_height = ?, confirmations = ?, tx_hex = ? WHERE tx_hash = ?",
			obs.BlockHeight, obs.Confirmations, txHex, hash)
		if err != nil {
			return err
		}

	default:
		return err
	}

	return nil
}

func (d *DefaultDatabase) SaveObservation(obs *types.TxObservation) {
	d.saveCh <- &saveObservationRequest{obs: obs}
}

func (d *DefaultDatabase) LoadObservations() ([]*types.TxObservation, error) {
	rows, err := d.db.Query("SELECT tx_hex, block_height, confirmations FROM observations ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*types.TxObservation, 0)
	for rows.Next() {
		var txHex string
		var blockHeight, confirmations int64
		if err := rows.Scan(&txHex, &blockHeight, &confirmations); err != nil {
			return nil, err
		}

		bz, err := hex.DecodeString(txHex)
		if err != nil {
			return nil, err
		}

		tx := &wire.MsgTx{}
		if err := tx.Deserialize(bytes.NewReader(bz)); err != nil {
			return nil, err
		}

		ret = append(ret, types.NewTxObservation(tx, blockHeight, confirmations))
	}

	return ret, nil
}

func (d *DefaultDatabase) SaveBroadcastResult(txHash string, success bool, errMsg string) {
	if len(errMsg) > 256 {
		errMsg = errMsg[:256]
	}

	_, err := d.db.Exec("INSERT INTO broadcast_results (tx_hash, success, error) VALUES (?, ?, ?)",
		txHash, success, errMsg)
	if err != nil {
		log.Error("Cannot save broadcast result, err = ", err)
	}
}
