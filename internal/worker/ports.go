/**
 * @description
 * Ports the background workers need from the rest of the system.
 * The order ledger and settlement executor live in internal/services; the
 * workers depend on these narrow interfaces so the loops can be driven with
 * fakes in tests.
 */

package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/klassik-exchange/backend/internal/models"
)

// OrderLedger is the slice of the order service the workers use
type OrderLedger interface {
	FindByDepositReference(ctx context.Context, reference, chain string) (*models.Order, error)
	RecordDeposit(ctx context.Context, orderID uuid.UUID, txHash string) error
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) (bool, error)
	ListPendingDeposits(ctx context.Context) ([]models.Deposit, error)
	UpdateConfirmations(ctx context.Context, depositID uuid.UUID, confirmations int64) error
	ConfirmDeposit(ctx context.Context, depositID uuid.UUID) (bool, error)
}

// Settler finalizes an order once its deposit is confirmed
type Settler interface {
	ExecuteSwap(ctx context.Context, orderID uuid.UUID) error
}
