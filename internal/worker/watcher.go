/**
 * @description
 * Deposit Watcher.
 * Bridges on-chain reality into the order ledger. Two feeds share one handling
 * path: a live subscription to the escrow contract's Deposited event, and a
 * bounded historical backfill over recent blocks to cover downtime. When the
 * RPC endpoint cannot serve subscriptions (HTTP-only), the watcher degrades to
 * periodic log filtering.
 *
 * Failure semantics: an error on one event never aborts the loop; each event
 * is handled independently and errors are logged with the order context.
 *
 * @dependencies
 * - internal/chain: escrow event feed and queries
 * - internal/worker ports: order ledger access
 */

package worker

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/klassik-exchange/backend/internal/chain"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
	"github.com/klassik-exchange/backend/internal/services"
)

// amountTolerance absorbs float conversion noise when comparing the deposited
// wei amount against the order's expected ether amount.
const amountTolerance = 1e-9

// sourceChain is the chain whose deposits the escrow watcher observes
const sourceChain = "ETH"

// DepositWatcher consumes escrow deposit events and records them on orders
type DepositWatcher struct {
	Chain          chain.Client
	Ledger         OrderLedger
	BackfillBlocks uint64
	RetryInterval  time.Duration

	mu          sync.Mutex
	running     bool
	lastScanned uint64
}

func NewDepositWatcher(chainClient chain.Client, ledger OrderLedger, backfillBlocks uint64) *DepositWatcher {
	return &DepositWatcher{
		Chain:          chainClient,
		Ledger:         ledger,
		BackfillBlocks: backfillBlocks,
		RetryInterval:  15 * time.Second,
	}
}

// Run backfills recent history and then consumes the live event stream until
// the context is cancelled. Safe to call once per watcher instance.
func (w *DepositWatcher) Run(ctx context.Context) {
	if !w.start() {
		logger.Info("⚠️ Deposit watcher already running")
		return
	}
	defer w.stop()

	logger.Info("🔍 Starting deposit watcher (backfill %d blocks)", w.BackfillBlocks)
	w.Backfill(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		events := make(chan chain.DepositEvent, 64)
		sub, err := w.Chain.SubscribeDeposits(ctx, events)
		if err != nil {
			// HTTP-only endpoints land here every pass; poll instead
			logger.Error("Deposit subscription unavailable (%v), polling for new events", err)
			if !w.sleep(ctx) {
				return
			}
			w.pollOnce(ctx)
			continue
		}

		logger.Info("✅ Deposit watcher subscribed")
		w.consume(ctx, sub.Err(), events)
		sub.Unsubscribe()

		if ctx.Err() != nil {
			return
		}
		logger.Error("Deposit subscription dropped, reconnecting in %s", w.RetryInterval)
		if !w.sleep(ctx) {
			return
		}
	}
}

// Backfill scans the most recent BackfillBlocks blocks for deposit events
// missed while the process was down.
func (w *DepositWatcher) Backfill(ctx context.Context) {
	if w.BackfillBlocks == 0 {
		return
	}

	head, err := w.Chain.BlockNumber(ctx)
	if err != nil {
		logger.Error("Backfill: failed to read chain head: %v", err)
		return
	}

	from := uint64(0)
	if head > w.BackfillBlocks {
		from = head - w.BackfillBlocks
	}
	w.scanRange(ctx, from, head)
	w.setLastScanned(head)
}

// HandleDeposit is the single processing path for live and backfilled events
func (w *DepositWatcher) HandleDeposit(ctx context.Context, ev chain.DepositEvent) error {
	order, err := w.Ledger.FindByDepositReference(ctx, ev.Reference, sourceChain)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Expected race: order not created yet, or already settled
			logger.Info("⚠️ No matching open order for deposit reference %s (tx %s)", ev.Reference, ev.TxHash)
			return nil
		}
		return err
	}

	// Duplicate delivery (live + backfill overlap) is a no-op
	if order.Deposit.TxHash == ev.TxHash && order.Status != models.OrderStatusCreated {
		return nil
	}

	logger.Info("💰 Deposit detected: order=%s user=%s amount=%.8f ETH tx=%s", order.ID, ev.Depositor, ev.AmountEther(), ev.TxHash)

	// Under/over-payment is not rejected at this layer; reconciliation is
	// deferred to ops review via this warning.
	if math.Abs(ev.AmountEther()-order.FromAmount) > amountTolerance {
		logger.Error("⚠️ Amount mismatch for order %s: expected %.8f, got %.8f", order.ID, order.FromAmount, ev.AmountEther())
	}

	if err := w.Ledger.RecordDeposit(ctx, order.ID, ev.TxHash); err != nil {
		return err
	}

	applied, err := w.Ledger.TransitionStatus(ctx, order.ID, models.OrderStatusCreated, models.OrderStatusDepositDetected)
	if err != nil {
		return err
	}
	if !applied {
		// Order already past created: duplicate event delivery, not an error
		logger.Info("Order %s already past %s, skipping transition", order.ID, models.OrderStatusCreated)
	}
	return nil
}

func (w *DepositWatcher) consume(ctx context.Context, subErr <-chan error, events <-chan chain.DepositEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-subErr:
			if err != nil {
				logger.Error("Deposit subscription error: %v", err)
			}
			return
		case ev := <-events:
			if err := w.HandleDeposit(ctx, ev); err != nil {
				logger.Error("Error handling deposit event tx=%s: %v", ev.TxHash, err)
			}
			if ev.BlockNumber > w.getLastScanned() {
				w.setLastScanned(ev.BlockNumber)
			}
		}
	}
}

// pollOnce filters deposit logs from the last scanned block to the head
func (w *DepositWatcher) pollOnce(ctx context.Context) {
	head, err := w.Chain.BlockNumber(ctx)
	if err != nil {
		logger.Error("Poll: failed to read chain head: %v", err)
		return
	}

	last := w.getLastScanned()
	if head <= last {
		return
	}
	w.scanRange(ctx, last+1, head)
	w.setLastScanned(head)
}

func (w *DepositWatcher) scanRange(ctx context.Context, from, to uint64) {
	events, err := w.Chain.FilterDeposits(ctx, from, to)
	if err != nil {
		logger.Error("Failed to filter deposits %d..%d: %v", from, to, err)
		return
	}
	if len(events) > 0 {
		logger.Info("Found %d deposit events in blocks %d..%d", len(events), from, to)
	}
	for _, ev := range events {
		if err := w.HandleDeposit(ctx, ev); err != nil {
			logger.Error("Error processing deposit event tx=%s: %v", ev.TxHash, err)
		}
	}
}

func (w *DepositWatcher) start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

func (w *DepositWatcher) stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logger.Info("🛑 Deposit watcher stopped")
}

func (w *DepositWatcher) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.RetryInterval):
		return true
	}
}

func (w *DepositWatcher) getLastScanned() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastScanned
}

func (w *DepositWatcher) setLastScanned(block uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if block > w.lastScanned {
		w.lastScanned = block
	}
}
