/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background tasks:
 * 1. Watching the escrow contract for Deposited events (live subscription + backfill).
 * 2. Polling confirmation depth for pending deposits and promoting confirmed orders.
 * 3. Executing swap settlement once a deposit reaches the confirmation threshold.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/chain
 * - backend/internal/services
 * - backend/internal/worker
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klassik-exchange/backend/internal/chain"
	"github.com/klassik-exchange/backend/internal/config"
	"github.com/klassik-exchange/backend/internal/db"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/services"
	"github.com/klassik-exchange/backend/internal/worker"
)

func main() {
	logger.Info("🔥 Starting Klassik Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	if _, err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	orderService := services.NewOrderService(pgDB, cfg.Chain.EscrowAddress, cfg.Chain.KaspaHotWallet)
	executor := services.NewSettlementExecutor(orderService, services.SimulatedPayout{})

	if cfg.Chain.EscrowAddress == "" {
		logger.Fatal("ESCROW_CONTRACT_ADDRESS is not set; the worker has nothing to watch")
	}

	// Prefer the WebSocket endpoint for live event subscriptions. The watcher
	// falls back to log polling when the endpoint does not support subscribe.
	rpcURL := cfg.Chain.EthWSURL
	if rpcURL == "" {
		rpcURL = cfg.Chain.EthRPCURL
	}

	escrow, err := chain.DialEscrow(rpcURL, cfg.Chain.EscrowAddress, cfg.Chain.RPCTimeout)
	if err != nil {
		logger.Fatal("Escrow RPC connection failed: %v", err)
	}

	watcher := worker.NewDepositWatcher(escrow, orderService, uint64(cfg.Chain.BackfillBlocks))
	poller := worker.NewConfirmationPoller(escrow, orderService, executor, cfg.Chain.ConfirmPollInterval, cfg.Chain.RequiredConfirmations)

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Deposit Watcher (backfill + live events)
	go watcher.Run(ctx)

	// 6. Confirmation Poller
	go poller.Run(ctx)

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	escrow.Close()

	time.Sleep(1 * time.Second) // Give the loops time to observe cancellation
	logger.Info("Worker exited.")
}
