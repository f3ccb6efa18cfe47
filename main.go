// Command payments-engine replays a CSV file of transaction requests through
// the ledger and prints the resulting accounts.
//
// Run with:
//
//	go run . transactions.csv > accounts.csv
//
// Accounts are written to stdout as CSV; logs go to stderr. Set
// LEDGER_BACKEND=bolt to keep state in a BoltDB file (DB_PATH, default
// ledger.db) instead of memory. WORKERS sets the number of parallel client
// shards and LOG_LEVEL the log verbosity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkantrust/payments-engine/config"
	"github.com/arkantrust/payments-engine/ledger"
	"github.com/arkantrust/payments-engine/logging"
	"github.com/arkantrust/payments-engine/report"
	"github.com/arkantrust/payments-engine/source"
	"github.com/arkantrust/payments-engine/store"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <transactions.csv>\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "payments-engine: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		txs      store.TransactionStore
		accounts store.AccountStore
		events   store.EventLog
	)
	switch cfg.Backend {
	case config.BackendBolt:
		s, err := store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()
		txs, accounts, events = s, s, s
	default:
		log := store.NewMemoryEventLog()
		txs, accounts, events = store.NewMemoryTransactions(log), store.NewMemoryAccounts(log), log
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src := source.NewCSV(f, source.WithRowErrorHandler(func(e *source.RowError) {
		logger.Warn("skipping malformed row", zap.Int("line", e.Line), zap.Error(e.Err))
	}))

	logger.Info("run started", zap.String("input", path), zap.String("backend", cfg.Backend), zap.Int("workers", cfg.Workers))

	p := ledger.NewProcessor(txs, accounts, events, ledger.WithLogger(logger))
	if _, err := ledger.NewRunner(p, cfg.Workers, logger).Run(ctx, src, nil); err != nil {
		return err
	}

	list, err := accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	return report.WriteAccounts(os.Stdout, list)
}
