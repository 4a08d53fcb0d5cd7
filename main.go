package main

import (
	"os"

	ethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/joho/godotenv"
	"github.com/sisu-network/dewatch/chains/bitcoin"
	"github.com/sisu-network/dewatch/client"
	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/core"
	"github.com/sisu-network/dewatch/database"
	"github.com/sisu-network/dewatch/server"
	"github.com/sisu-network/lib/log"
)

func initializeDb(cfg *config.Dewatch) database.Database {
	db := database.NewDb(cfg)
	err := db.Init()
	if err != nil {
		panic(err)
	}

	return db
}

func setupApiServer(cfg *config.Dewatch, processor *core.Processor) {
	handler := ethRpc.NewServer()
	if err := handler.RegisterName("dewatch", server.NewApi(processor)); err != nil {
		panic(err)
	}

	s := server.NewServer(handler, cfg.ServerPort)
	s.Run()
}

func main() {
	err := godotenv.Load()
	if err != nil {
		panic(err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./dewatch.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	db := initializeDb(&cfg)

	subscriberClient := client.NewClient(cfg.SubscriberUrl)
	go subscriberClient.TryDial()

	transmitter := bitcoin.NewTransmitter(cfg.Chain)

	processor := core.NewProcessor(&cfg, db, subscriberClient, transmitter)
	processor.Start()

	log.Info("Dewatch is running...")

	setupApiServer(&cfg, processor)
}
