package worker

import (
	"context"
	"math/big"
	"testing"

	"github.com/klassik-exchange/backend/internal/chain"
	"github.com/klassik-exchange/backend/internal/models"
)

func depositEvent(reference, txHash string, eth float64, block uint64) chain.DepositEvent {
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return chain.DepositEvent{
		Depositor:   "0x1111111111111111111111111111111111111111",
		Amount:      wei,
		Reference:   reference,
		TxHash:      txHash,
		BlockNumber: block,
	}
}

func TestHandleDepositAdvancesOrder(t *testing.T) {
	ledger := newFakeLedger()
	order := ledger.addOrder("0xref1", models.OrderStatusCreated, 1.5)

	w := NewDepositWatcher(&fakeChain{}, ledger, 0)
	if err := w.HandleDeposit(context.Background(), depositEvent("0xref1", "0xtx1", 1.5, 100)); err != nil {
		t.Fatalf("handle deposit failed: %v", err)
	}

	got := ledger.orderByID(order.ID)
	if got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("expected status deposit_detected, got %s", got.Status)
	}
	if got.Deposit.TxHash != "0xtx1" {
		t.Fatalf("expected tx hash recorded, got %q", got.Deposit.TxHash)
	}
}

func TestHandleDepositUnknownReferenceIsNoop(t *testing.T) {
	ledger := newFakeLedger()
	w := NewDepositWatcher(&fakeChain{}, ledger, 0)

	if err := w.HandleDeposit(context.Background(), depositEvent("0xunknown", "0xtx1", 1, 100)); err != nil {
		t.Fatalf("unknown reference must not be an error: %v", err)
	}
	if len(ledger.recordedDeposits) != 0 {
		t.Fatal("no deposit should be recorded for an unknown reference")
	}
}

func TestHandleDepositDuplicateDeliveryIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	order := ledger.addOrder("0xref1", models.OrderStatusCreated, 1)

	w := NewDepositWatcher(&fakeChain{}, ledger, 0)
	ev := depositEvent("0xref1", "0xtx1", 1, 100)

	// Live delivery and backfill overlap deliver the same event twice
	if err := w.HandleDeposit(context.Background(), ev); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := w.HandleDeposit(context.Background(), ev); err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	if len(ledger.recordedDeposits) != 1 {
		t.Fatalf("expected exactly one recorded deposit, got %d", len(ledger.recordedDeposits))
	}
	if got := ledger.orderByID(order.ID); got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("expected status deposit_detected, got %s", got.Status)
	}
}

func TestHandleDepositSkipsSettledOrder(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder("0xref1", models.OrderStatusCompleted, 1)

	w := NewDepositWatcher(&fakeChain{}, ledger, 0)
	if err := w.HandleDeposit(context.Background(), depositEvent("0xref1", "0xtx9", 1, 100)); err != nil {
		t.Fatalf("terminal order must be skipped, not errored: %v", err)
	}
	if len(ledger.recordedDeposits) != 0 {
		t.Fatal("no deposit should be recorded against a settled order")
	}
}

func TestHandleDepositAmountMismatchStillRecords(t *testing.T) {
	ledger := newFakeLedger()
	order := ledger.addOrder("0xref1", models.OrderStatusCreated, 2.0)

	w := NewDepositWatcher(&fakeChain{}, ledger, 0)
	// Underpayment is logged but the deposit is still processed
	if err := w.HandleDeposit(context.Background(), depositEvent("0xref1", "0xtx1", 1.0, 100)); err != nil {
		t.Fatalf("handle deposit failed: %v", err)
	}
	if got := ledger.orderByID(order.ID); got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("expected status deposit_detected, got %s", got.Status)
	}
}

func TestBackfillScansRecentWindow(t *testing.T) {
	ledger := newFakeLedger()
	order := ledger.addOrder("0xref1", models.OrderStatusCreated, 1)

	fc := &fakeChain{
		head:   500,
		events: []chain.DepositEvent{depositEvent("0xref1", "0xtx1", 1, 450)},
	}

	w := NewDepositWatcher(fc, ledger, 100)
	w.Backfill(context.Background())

	if len(fc.filtered) != 1 || fc.filtered[0] != [2]uint64{400, 500} {
		t.Fatalf("expected one scan over blocks 400..500, got %v", fc.filtered)
	}
	if got := ledger.orderByID(order.ID); got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("expected backfilled deposit to advance the order, got %s", got.Status)
	}
}

func TestBackfillNearGenesisClampsToZero(t *testing.T) {
	fc := &fakeChain{head: 50}
	w := NewDepositWatcher(fc, newFakeLedger(), 100)
	w.Backfill(context.Background())

	if len(fc.filtered) != 1 || fc.filtered[0] != [2]uint64{0, 50} {
		t.Fatalf("expected scan over blocks 0..50, got %v", fc.filtered)
	}
}
