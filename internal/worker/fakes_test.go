package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/google/uuid"
	"github.com/klassik-exchange/backend/internal/chain"
	"github.com/klassik-exchange/backend/internal/models"
	"github.com/klassik-exchange/backend/internal/services"
)

// fakeChain implements chain.Client from fixed data
type fakeChain struct {
	head    uint64
	headErr error

	// txHash -> block number; absent means not mined yet
	txBlocks map[string]uint64

	// events returned by FilterDeposits, recorded ranges for assertions
	events   []chain.DepositEvent
	filtered [][2]uint64
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeChain) TransactionBlock(ctx context.Context, txHash string) (uint64, bool, error) {
	block, ok := f.txBlocks[txHash]
	return block, ok, nil
}

func (f *fakeChain) FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]chain.DepositEvent, error) {
	f.filtered = append(f.filtered, [2]uint64{fromBlock, toBlock})
	var out []chain.DepositEvent
	for _, ev := range f.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeChain) SubscribeDeposits(ctx context.Context, sink chan<- chain.DepositEvent) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

// fakeLedger is an in-memory OrderLedger
type fakeLedger struct {
	mu sync.Mutex

	// deposit reference -> order
	orders map[string]*models.Order
	// deposit id -> deposit
	deposits map[uuid.UUID]*models.Deposit

	recordedDeposits []string
	transitions      []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		orders:   make(map[string]*models.Order),
		deposits: make(map[uuid.UUID]*models.Deposit),
	}
}

func (l *fakeLedger) addOrder(reference string, status models.OrderStatus, fromAmount float64) *models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	order := &models.Order{
		ID:               uuid.New(),
		Kind:             models.OrderKindSwap,
		Status:           status,
		FromChain:        "ETH",
		ToChain:          "KASPA",
		FromAmount:       fromAmount,
		DepositReference: &reference,
	}
	deposit := &models.Deposit{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  models.DepositStatusPending,
	}
	order.Deposit = *deposit
	l.orders[reference] = order
	l.deposits[deposit.ID] = deposit
	return order
}

func (l *fakeLedger) FindByDepositReference(ctx context.Context, reference, chainName string) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[reference]
	if !ok || order.Status.IsTerminal() {
		return nil, services.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (l *fakeLedger) RecordDeposit(ctx context.Context, orderID uuid.UUID, txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recordedDeposits = append(l.recordedDeposits, txHash)
	for _, order := range l.orders {
		if order.ID == orderID {
			order.Deposit.TxHash = txHash
			if d, ok := l.deposits[order.Deposit.ID]; ok {
				d.TxHash = txHash
			}
			return nil
		}
	}
	return services.ErrNotFound
}

func (l *fakeLedger) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !models.CanTransition(from, to) {
		return false, services.ErrInvalidTransition
	}
	for _, order := range l.orders {
		if order.ID == orderID {
			if order.Status != from {
				return false, nil
			}
			order.Status = to
			l.transitions = append(l.transitions, string(from)+"->"+string(to))
			return true, nil
		}
	}
	return false, services.ErrNotFound
}

func (l *fakeLedger) ListPendingDeposits(ctx context.Context) ([]models.Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Deposit
	for _, d := range l.deposits {
		if d.Status == models.DepositStatusPending && d.TxHash != "" {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (l *fakeLedger) UpdateConfirmations(ctx context.Context, depositID uuid.UUID, confirmations int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.deposits[depositID]
	if !ok {
		return services.ErrNotFound
	}
	// Monotonic: never rewind
	if confirmations > d.Confirmations {
		d.Confirmations = confirmations
	}
	return nil
}

func (l *fakeLedger) ConfirmDeposit(ctx context.Context, depositID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.deposits[depositID]
	if !ok {
		return false, services.ErrNotFound
	}
	if d.Status != models.DepositStatusPending {
		return false, nil
	}
	d.Status = models.DepositStatusConfirmed
	return true, nil
}

func (l *fakeLedger) orderByID(orderID uuid.UUID) *models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, order := range l.orders {
		if order.ID == orderID {
			return order
		}
	}
	return nil
}

// fakeSettler records settlement requests
type fakeSettler struct {
	mu       sync.Mutex
	settled  []uuid.UUID
	failWith error
}

func (s *fakeSettler) ExecuteSwap(ctx context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.settled = append(s.settled, orderID)
	return nil
}

func (s *fakeSettler) settledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.settled)
}
