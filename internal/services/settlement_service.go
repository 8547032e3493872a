/**
 * @description
 * Settlement Executor.
 * Performs the cross-chain payout for a confirmed deposit and records the
 * outcome through the order ledger as an append-only swap row. The payout
 * itself is a pluggable capability so the state machine can be exercised
 * deterministically; the default implementation simulates success with a
 * fabricated tx hash, exactly as the production placeholder does.
 *
 * Invariant: after ExecuteSwap returns, an order that was in deposit_confirmed
 * has moved to completed or failed with exactly one swap row recording which.
 * The failure path is recorded outside the rolled-back success transaction, so
 * a settlement error can never leave the order stuck; losing the completion
 * CAS means another writer already settled the order, and no failure row is
 * written for a lost race.
 *
 * @dependencies
 * - internal/services order ledger: swap outcome persistence
 * - github.com/google/uuid
 */

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
)

// Payout dispatches the outgoing transfer for a swap order and returns the
// resulting transaction hash. A real implementation would send funds to
// order.ToAddress on order.ToChain from a hot wallet.
type Payout interface {
	Execute(ctx context.Context, order *models.Order) (txHash string, err error)
}

// SimulatedPayout always succeeds with a fabricated transaction hash.
// Placeholder until real ETH/KASPA hot-wallet transfers are wired in.
type SimulatedPayout struct{}

func (SimulatedPayout) Execute(ctx context.Context, order *models.Order) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate tx hash: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// SettlementLedger is the slice of the order ledger the executor writes
// outcomes through. OrderService implements it.
type SettlementLedger interface {
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RecordSwapSuccess(ctx context.Context, orderID uuid.UUID, txHash string) error
	RecordSwapFailure(ctx context.Context, orderID uuid.UUID, cause error)
}

// SettlementExecutor finalizes orders whose deposits are confirmed
type SettlementExecutor struct {
	Ledger SettlementLedger
	Payout Payout
}

func NewSettlementExecutor(ledger SettlementLedger, payout Payout) *SettlementExecutor {
	return &SettlementExecutor{
		Ledger: ledger,
		Payout: payout,
	}
}

// ExecuteSwap performs the payout for an order and records the terminal outcome
func (e *SettlementExecutor) ExecuteSwap(ctx context.Context, orderID uuid.UUID) error {
	order, err := e.Ledger.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	logger.Info("🔄 Executing swap for order %s: %.8f %s -> %.8f %s (%s)",
		order.ID, order.FromAmount, order.FromChain, order.ToAmount, order.ToChain, order.ToAddress)

	txHash, payoutErr := e.Payout.Execute(ctx, order)
	if payoutErr == nil {
		payoutErr = e.Ledger.RecordSwapSuccess(ctx, order.ID, txHash)
	}

	if payoutErr != nil {
		if errors.Is(payoutErr, ErrConflict) {
			// Lost the completion CAS: already settled elsewhere
			logger.Info("Order %s already settled, skipping", order.ID)
			return payoutErr
		}
		logger.Error("❌ Swap failed for order %s: %v", order.ID, payoutErr)
		e.Ledger.RecordSwapFailure(ctx, order.ID, payoutErr)
		return payoutErr
	}

	logger.Info("✅ Swap completed for order %s tx=%s", order.ID, txHash)
	return nil
}
