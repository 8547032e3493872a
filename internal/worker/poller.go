/**
 * @description
 * Confirmation Poller.
 * On a fixed interval, re-checks the confirmation depth of pending deposits
 * against the current chain head. A deposit that reaches the required depth is
 * CAS-flipped to confirmed, its order advanced to deposit_confirmed, and the
 * settlement executor invoked inline for that order.
 *
 * Idempotence: the pending-only query plus the CAS flips make re-running
 * confirmation logic on an already-confirmed deposit a no-op. Confirmation
 * counts are persisted monotonically by the ledger, so a transiently lagging
 * chain-head read never rewinds progress.
 *
 * @dependencies
 * - internal/chain: head and transaction queries
 * - internal/worker ports: ledger writes and settlement
 */

package worker

import (
	"context"
	"time"

	"github.com/klassik-exchange/backend/internal/chain"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
)

// ConfirmationPoller advances pending deposits toward settlement
type ConfirmationPoller struct {
	Chain                 chain.Client
	Ledger                OrderLedger
	Settler               Settler
	Interval              time.Duration
	RequiredConfirmations int64
}

func NewConfirmationPoller(chainClient chain.Client, ledger OrderLedger, settler Settler, interval time.Duration, requiredConfirmations int64) *ConfirmationPoller {
	return &ConfirmationPoller{
		Chain:                 chainClient,
		Ledger:                ledger,
		Settler:               settler,
		Interval:              interval,
		RequiredConfirmations: requiredConfirmations,
	}
}

// Run ticks until the context is cancelled
func (p *ConfirmationPoller) Run(ctx context.Context) {
	logger.Info("⏱ Confirmation poller started (every %s, threshold %d)", p.Interval, p.RequiredConfirmations)
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(ctx); err != nil {
			logger.Error("Confirmation tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("🛑 Confirmation poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick processes every pending deposit once. Per-deposit errors are logged and
// do not block the rest of the batch.
func (p *ConfirmationPoller) Tick(ctx context.Context) error {
	deposits, err := p.Ledger.ListPendingDeposits(ctx)
	if err != nil {
		return err
	}
	if len(deposits) == 0 {
		return nil
	}

	head, err := p.Chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	for _, deposit := range deposits {
		if err := p.checkDeposit(ctx, deposit, head); err != nil {
			logger.Error("Error checking confirmations for deposit %s (order %s): %v", deposit.ID, deposit.OrderID, err)
		}
	}
	return nil
}

func (p *ConfirmationPoller) checkDeposit(ctx context.Context, deposit models.Deposit, head uint64) error {
	blockNumber, mined, err := p.Chain.TransactionBlock(ctx, deposit.TxHash)
	if err != nil {
		return err
	}
	if !mined {
		// Not yet included; try again next tick
		return nil
	}

	confirmations := int64(head) - int64(blockNumber) + 1
	if confirmations < 0 {
		confirmations = 0
	}

	if err := p.Ledger.UpdateConfirmations(ctx, deposit.ID, confirmations); err != nil {
		return err
	}

	if confirmations < p.RequiredConfirmations {
		return nil
	}

	applied, err := p.Ledger.ConfirmDeposit(ctx, deposit.ID)
	if err != nil {
		return err
	}
	if !applied {
		// Another tick got here first
		return nil
	}

	if _, err := p.Ledger.TransitionStatus(ctx, deposit.OrderID, models.OrderStatusDepositDetected, models.OrderStatusDepositConfirmed); err != nil {
		return err
	}

	logger.Info("✅ Deposit confirmed for order %s (%d confirmations)", deposit.OrderID, confirmations)

	// Settlement errors are recorded by the executor itself; log and move on
	if err := p.Settler.ExecuteSwap(ctx, deposit.OrderID); err != nil {
		logger.Error("Settlement failed for order %s: %v", deposit.OrderID, err)
	}
	return nil
}
