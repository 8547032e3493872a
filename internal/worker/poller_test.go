package worker

import (
	"context"
	"testing"
	"time"

	"github.com/klassik-exchange/backend/internal/models"
)

// detectedOrder seeds the ledger with an order whose deposit has been seen
// on-chain but not yet confirmed.
func detectedOrder(ledger *fakeLedger, reference, txHash string) *models.Order {
	order := ledger.addOrder(reference, models.OrderStatusDepositDetected, 1)
	_ = ledger.RecordDeposit(context.Background(), order.ID, txHash)
	return order
}

func TestTickBelowThresholdOnlyUpdatesCount(t *testing.T) {
	ledger := newFakeLedger()
	order := detectedOrder(ledger, "0xref1", "0xtx1")

	// head 101, mined at 100 -> 2 confirmations, threshold 3
	fc := &fakeChain{head: 101, txBlocks: map[string]uint64{"0xtx1": 100}}
	settler := &fakeSettler{}

	p := NewConfirmationPoller(fc, ledger, settler, time.Second, 3)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	got := ledger.orderByID(order.ID)
	if got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("order must stay deposit_detected below threshold, got %s", got.Status)
	}
	if d := ledger.deposits[got.Deposit.ID]; d.Confirmations != 2 {
		t.Fatalf("expected 2 confirmations recorded, got %d", d.Confirmations)
	}
	if settler.settledCount() != 0 {
		t.Fatal("settlement must not run below threshold")
	}
}

func TestTickAtThresholdConfirmsAndSettles(t *testing.T) {
	ledger := newFakeLedger()
	order := detectedOrder(ledger, "0xref1", "0xtx1")

	// head 102, mined at 100 -> exactly 3 confirmations
	fc := &fakeChain{head: 102, txBlocks: map[string]uint64{"0xtx1": 100}}
	settler := &fakeSettler{}

	p := NewConfirmationPoller(fc, ledger, settler, time.Second, 3)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	got := ledger.orderByID(order.ID)
	if got.Status != models.OrderStatusDepositConfirmed {
		t.Fatalf("expected order deposit_confirmed, got %s", got.Status)
	}
	if d := ledger.deposits[got.Deposit.ID]; d.Status != models.DepositStatusConfirmed {
		t.Fatalf("expected deposit confirmed, got %s", d.Status)
	}
	if settler.settledCount() != 1 {
		t.Fatalf("expected one settlement, got %d", settler.settledCount())
	}
}

func TestTickConfirmedDepositIsNotReprocessed(t *testing.T) {
	ledger := newFakeLedger()
	detectedOrder(ledger, "0xref1", "0xtx1")

	fc := &fakeChain{head: 110, txBlocks: map[string]uint64{"0xtx1": 100}}
	settler := &fakeSettler{}

	p := NewConfirmationPoller(fc, ledger, settler, time.Second, 3)
	for i := 0; i < 3; i++ {
		if err := p.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
	}

	// the pending-only query plus the CAS flip keep settlement single-shot
	if settler.settledCount() != 1 {
		t.Fatalf("expected exactly one settlement across ticks, got %d", settler.settledCount())
	}
}

func TestTickUnminedTransactionWaits(t *testing.T) {
	ledger := newFakeLedger()
	order := detectedOrder(ledger, "0xref1", "0xtxpending")

	fc := &fakeChain{head: 500, txBlocks: map[string]uint64{}}
	settler := &fakeSettler{}

	p := NewConfirmationPoller(fc, ledger, settler, time.Second, 3)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	got := ledger.orderByID(order.ID)
	if got.Status != models.OrderStatusDepositDetected {
		t.Fatalf("unmined deposit must not advance the order, got %s", got.Status)
	}
	if settler.settledCount() != 0 {
		t.Fatal("settlement must not run for an unmined deposit")
	}
}

func TestTickLaggingHeadNeverRewindsConfirmations(t *testing.T) {
	ledger := newFakeLedger()
	order := detectedOrder(ledger, "0xref1", "0xtx1")

	fc := &fakeChain{head: 101, txBlocks: map[string]uint64{"0xtx1": 100}}
	settler := &fakeSettler{}

	p := NewConfirmationPoller(fc, ledger, settler, time.Second, 10)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	// A transiently lagging RPC node reports an older head
	fc.head = 100
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	got := ledger.orderByID(order.ID)
	if d := ledger.deposits[got.Deposit.ID]; d.Confirmations != 2 {
		t.Fatalf("confirmations must not rewind, got %d", d.Confirmations)
	}
}
