package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitledger/internal/config"
	"splitledger/internal/db"
	"splitledger/internal/handlers"
	"splitledger/internal/ledger"
	"splitledger/internal/services"
	"splitledger/internal/store"
	"splitledger/internal/store/memory"
	"splitledger/internal/websocket"
	"splitledger/pkg/logging"

	"github.com/joho/godotenv"
)

type stores struct {
	txRunner     db.TxRunner
	users        services.UserStore
	groups       services.GroupStore
	expenses     services.ExpenseStore
	participants services.ParticipantStore
	debts        interface {
		ledger.DebtStore
		services.DebtReader
	}
	close func() error
}

func openStores(cfg config.Config) (stores, error) {
	if cfg.DBDriver == config.DriverMemory {
		mem := memory.New()
		return stores{
			txRunner:     mem,
			users:        mem.Users(),
			groups:       mem.Groups(),
			expenses:     mem.Expenses(),
			participants: mem.Participants(),
			debts:        mem.Debts(),
			close:        func() error { return nil },
		}, nil
	}
	database, err := db.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		txRunner:     db.NewTxRunner(database),
		users:        store.NewUserStore(database),
		groups:       store.NewGroupStore(database),
		expenses:     store.NewExpenseStore(database),
		participants: store.NewParticipantStore(database),
		debts:        store.NewDebtStore(database, cfg.DBDriver),
		close:        database.Close,
	}, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	st, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to connect database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	clock := services.SystemClock{}
	locks := services.NewGroupLocks()
	hub := websocket.NewHub()
	engine := ledger.New(st.debts, clock)

	expenseService := services.NewExpenseService(st.txRunner, st.expenses, st.participants, st.groups, st.debts, engine, locks, clock, hub,
		services.WithAtomic(cfg.LedgerAtomic))
	directoryService := services.NewDirectoryService(st.txRunner, st.users, st.groups, st.expenses, locks, clock, hub)

	handler := handlers.New(cfg, expenseService, directoryService, hub)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("splitledger API listening", "addr", server.Addr, "driver", cfg.DBDriver, "atomic", cfg.LedgerAtomic)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	// Hijacked websocket connections are not drained by server.Shutdown.
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		return
	}
	slog.Info("server stopped")
}
