package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/klassik-exchange/backend/internal/models"
	"gorm.io/gorm"
)

const (
	testEscrowAddress = "0x000000000000000000000000000000000000dEaD"
	testKaspaWallet   = "kaspa:qqhotwallet000000000000000"
)

func seedProduct(t *testing.T, gdb *gorm.DB, title string, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Title:    title,
		Price:    price,
		Currency: "usd",
		Stock:    stock,
		Active:   true,
	}
	if err := gdb.Create(product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}

func TestCreateShopOrderRepeatedly(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewOrderService(gdb, testEscrowAddress, testKaspaWallet)
	ctx := context.Background()

	product := seedProduct(t, gdb, "Hoodie", 45, 10)
	userID := uuid.New()
	items := []ShopItem{{ProductID: product.ID.String(), Quantity: 1}}

	// Shop orders carry no deposit reference; creating several must not trip
	// the reference uniqueness that swap orders rely on
	for i := 0; i < 3; i++ {
		order, err := svc.CreateShopOrder(ctx, userID, items, "0xbuyer")
		if err != nil {
			t.Fatalf("shop order %d failed: %v", i+1, err)
		}
		if order.DepositReference != nil {
			t.Fatalf("shop order %d: expected nil deposit reference, got %q", i+1, *order.DepositReference)
		}
		if order.TotalAmount != 45 {
			t.Fatalf("shop order %d: expected total 45, got %v", i+1, order.TotalAmount)
		}
	}

	var remaining models.Product
	if err := gdb.First(&remaining, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("failed to reload product: %v", err)
	}
	if remaining.Stock != 7 {
		t.Fatalf("expected stock 7 after three orders, got %d", remaining.Stock)
	}
}

func TestCreateShopOrderInsufficientStock(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewOrderService(gdb, testEscrowAddress, testKaspaWallet)

	product := seedProduct(t, gdb, "Poster", 10, 1)
	_, err := svc.CreateShopOrder(context.Background(), uuid.New(), []ShopItem{{ProductID: product.ID.String(), Quantity: 2}}, "0xbuyer")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on insufficient stock, got %v", err)
	}

	// The rejected order must not have touched the stock
	var reloaded models.Product
	if err := gdb.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("failed to reload product: %v", err)
	}
	if reloaded.Stock != 1 {
		t.Fatalf("expected stock 1 after rejected order, got %d", reloaded.Stock)
	}
}

func TestCreateOrderAssignsUniqueReferences(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewOrderService(gdb, testEscrowAddress, testKaspaWallet)
	ctx := context.Background()
	userID := uuid.New()

	req := CreateOrderRequest{
		FromChain:   "ETH",
		ToChain:     "KASPA",
		FromAmount:  1,
		ToAmount:    9000,
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "kaspa:qqdestination0000000000000",
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		order, instructions, err := svc.CreateOrder(ctx, userID, req)
		if err != nil {
			t.Fatalf("swap order %d failed: %v", i+1, err)
		}
		if order.DepositReference == nil || *order.DepositReference == "" {
			t.Fatalf("swap order %d: missing deposit reference", i+1)
		}
		if seen[*order.DepositReference] {
			t.Fatalf("swap order %d: duplicate reference %s", i+1, *order.DepositReference)
		}
		seen[*order.DepositReference] = true
		if instructions.Address != testEscrowAddress {
			t.Fatalf("expected escrow deposit address, got %s", instructions.Address)
		}
	}
}

func TestTransitionStatusCAS(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewOrderService(gdb, testEscrowAddress, testKaspaWallet)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, uuid.New(), CreateOrderRequest{
		FromChain:   "ETH",
		ToChain:     "KASPA",
		FromAmount:  1,
		ToAmount:    9000,
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "kaspa:qqdestination0000000000000",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	applied, err := svc.TransitionStatus(ctx, order.ID, models.OrderStatusCreated, models.OrderStatusDepositDetected)
	if err != nil || !applied {
		t.Fatalf("expected first transition to apply, applied=%v err=%v", applied, err)
	}

	// Replaying the same CAS loses cleanly
	applied, err = svc.TransitionStatus(ctx, order.ID, models.OrderStatusCreated, models.OrderStatusDepositDetected)
	if err != nil {
		t.Fatalf("replayed transition errored: %v", err)
	}
	if applied {
		t.Fatal("replayed transition must not apply")
	}

	// Illegal edges are rejected before touching the row
	if _, err := svc.TransitionStatus(ctx, order.ID, models.OrderStatusDepositDetected, models.OrderStatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFindByDepositReferenceSkipsTerminalOrders(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewOrderService(gdb, testEscrowAddress, testKaspaWallet)
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, uuid.New(), CreateOrderRequest{
		FromChain:   "ETH",
		ToChain:     "KASPA",
		FromAmount:  1,
		ToAmount:    9000,
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "kaspa:qqdestination0000000000000",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	found, err := svc.FindByDepositReference(ctx, *order.DepositReference, "ETH")
	if err != nil {
		t.Fatalf("open order lookup failed: %v", err)
	}
	if found.ID != order.ID {
		t.Fatalf("expected order %s, got %s", order.ID, found.ID)
	}

	if err := gdb.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.OrderStatusFailed).Error; err != nil {
		t.Fatalf("failed to force terminal status: %v", err)
	}

	if _, err := svc.FindByDepositReference(ctx, *order.DepositReference, "ETH"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("terminal order must not match a deposit reference, got %v", err)
	}
}
