// Command settlementd runs the auction settlement engine behind an HTTP
// API. Storage, event publishing and the tick source are chosen from
// the environment: with MYSQL_DSN set the engine persists to MySQL,
// otherwise it runs on the in-memory store; with AMQP_URL set events
// flow to RabbitMQ, otherwise they are dropped.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/config"
	"github.com/vicodeox/stackAuc/engine"
	"github.com/vicodeox/stackAuc/events"
	"github.com/vicodeox/stackAuc/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load configuration", zap.Error(err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		zap.L().Fatal("initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	var st engine.Store
	if cfg.MySQLDSN != "" {
		gormStore, err := store.Open(cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("connect to MySQL", zap.Error(err))
		}
		st = gormStore
		logger.Info("using MySQL store")
	} else {
		st = store.NewMemory()
		logger.Warn("no MYSQL_DSN configured, state is in-memory only")
	}

	var publisher engine.Publisher = engine.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("connect to RabbitMQ", zap.Error(err))
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info("publishing events to RabbitMQ")
	}

	// Without an external payment rail or item registry the process
	// keeps balances and ownership itself.
	eng, err := engine.New(
		engine.Config{
			Owner:             cfg.Owner,
			CustodyAccount:    cfg.CustodyAccount,
			FeeRateBps:        cfg.FeeRateBps,
			FeeRecipient:      cfg.FeeRecipient,
			WhitelistRequired: cfg.WhitelistRequired,
		},
		engine.Deps{
			Store:     st,
			Clock:     engine.NewIntervalClock(cfg.TickInterval),
			Transfers: engine.NewMemoryBank(),
			Owners:    engine.NewMemoryOwnerRegistry(),
			Publisher: publisher,
			Logger:    logger,
		},
	)
	if err != nil {
		logger.Fatal("assemble engine", zap.Error(err))
	}

	pem, err := eng.SignerPublicKeyPEM()
	if err != nil {
		logger.Fatal("export receipt public key", zap.Error(err))
	}
	logger.Info("receipt signing key generated", zap.String("public_key_pem", pem))

	server := NewServer(eng, logger)
	go func() {
		if err := server.Router().Run(cfg.ServerPort); err != nil {
			logger.Fatal("serve HTTP", zap.Error(err))
		}
	}()
	logger.Info("settlementd listening", zap.String("addr", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
}
