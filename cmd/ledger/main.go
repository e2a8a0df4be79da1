package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-pharma-orders/internal/config"
	kafkax "github.com/ariefcatur/go-pharma-orders/internal/kafka"
	"github.com/ariefcatur/go-pharma-orders/internal/ledger"
	"github.com/ariefcatur/go-pharma-orders/internal/logging"
	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/ariefcatur/go-pharma-orders/internal/postgres"
	"github.com/ariefcatur/go-pharma-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-ledger"
	log := logging.MustNewLogger(service, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db_connect_failed", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	if cfg.SheetID == "" || cfg.CredentialsJSON == "" {
		log.Fatal("ledger_not_configured", zap.String("hint", "set GOOGLE_SHEET_ID and GOOGLE_CREDENTIALS_JSON"))
	}
	svc, err := ledger.NewSheetsService(ctx, cfg.CredentialsJSON)
	if err != nil {
		log.Fatal("ledger_init_failed", zap.Error(err))
	}

	w := &ledger.Worker{
		Publisher: ledger.NewSheets(svc, cfg.SheetID, cfg.Worksheet, cfg.Location()),
		Rows:      &postgres.Store{DB: db},
		Dedup:     &redisx.Dedup{RDB: rdb, Service: service},
		Log:       log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LedgerGroup, orders.TopicOrderPlaced, cfg.LedgerWorkers, log)
	go func() {
		log.Info("ledger_consumer_started",
			zap.String("group", cfg.LedgerGroup),
			zap.String("topic", orders.TopicOrderPlaced),
			zap.Int("workers", cfg.LedgerWorkers))
		if err := cons.Start(ctx, w.HandleOrderPlaced); err != nil {
			log.Error("consumer_exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting_down")
	cancel()
}
