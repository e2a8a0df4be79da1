package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/config"
	"github.com/ariefcatur/go-pharma-orders/internal/httpx"
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
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db_connect_failed", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db_migrate_failed", zap.Error(err))
	}
	store := &postgres.Store{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Ledger
	notifier, shutdownLedger := ledgerNotifier(ctx, cfg, store, log)

	eng := orders.NewEngine(store, notifier, log)
	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Engine:   eng,
		Catalog:  store,
		Registry: store,
		Idem:     &redisx.Idempotency{RDB: rdb},
		Log:      log,
		Timeout:  cfg.SubmitTimeout,
	}
	oh.Register(router)
	ah := &httpx.AdminHandler{Orders: store, Products: store, Reps: store, Token: cfg.AdminToken, Log: log}
	ah.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http_listening", zap.String("addr", cfg.HTTPAddr), zap.String("ledger_mode", cfg.LedgerMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http_listen_failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting_down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	shutdownLedger()
	cancel()
}

// ledgerNotifier builds the post-commit hook for cfg.LedgerMode. The returned
// func drains pending ledger work and must run after the HTTP server stopped.
func ledgerNotifier(ctx context.Context, cfg config.Config, store *postgres.Store, log *zap.Logger) (orders.Notifier, func()) {
	switch cfg.LedgerMode {
	case config.LedgerKafka:
		prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, cfg.LedgerQueue, log)
		prod.Start(ctx)
		n := &ledger.EventNotifier{Producer: prod, Service: cfg.ServiceName, Log: log}
		return n, func() {
			prod.Close()
			prod.WaitClosed()
		}

	case config.LedgerDirect:
		var pub ledger.Publisher = ledger.Disabled{}
		if cfg.SheetID == "" || cfg.CredentialsJSON == "" {
			log.Warn("ledger_not_configured", zap.String("hint", "set GOOGLE_SHEET_ID and GOOGLE_CREDENTIALS_JSON"))
		} else if svc, err := ledger.NewSheetsService(ctx, cfg.CredentialsJSON); err != nil {
			log.Error("ledger_init_failed", zap.Error(err))
		} else {
			pub = ledger.NewSheets(svc, cfg.SheetID, cfg.Worksheet, cfg.Location())
		}
		d := ledger.NewDispatcher(pub, store, cfg.LedgerQueue, log)
		d.Start(context.WithoutCancel(ctx))
		return d, func() {
			d.Close()
			d.Wait()
		}
	}

	if cfg.LedgerMode != config.LedgerOff {
		log.Warn("unknown_ledger_mode", zap.String("mode", cfg.LedgerMode))
	}
	return nil, func() {}
}
