/**
 * @description
 * Order Ledger.
 * Sole owner of order rows and their deposit/swap sub-records. Every status
 * mutation goes through TransitionStatus, a compare-and-swap on the expected
 * current status; concurrent watcher/poller ticks racing on one order are
 * resolved by the losing CAS reporting "not applied" instead of an error.
 *
 * @dependencies
 * - gorm.io/gorm: persistence and transactions
 * - github.com/ethereum/go-ethereum/common: ETH address validation
 * - github.com/google/uuid: ids and deposit references
 * - github.com/jackc/pgconn: unique-violation mapping
 */

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
	"gorm.io/gorm"
)

// SupportedChains is the set of chains orders can swap between
var SupportedChains = map[string]bool{
	"ETH":   true,
	"KASPA": true,
}

// CreateOrderRequest carries a validated swap order request
type CreateOrderRequest struct {
	FromChain   string  `json:"fromChain"`
	ToChain     string  `json:"toChain"`
	FromAmount  float64 `json:"fromAmount"`
	ToAmount    float64 `json:"toAmount"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
}

// DepositInstructions tell the user where and how to send funds
type DepositInstructions struct {
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Amount    float64 `json:"amount"`
	Reference string `json:"reference"`
	Memo      string `json:"memo,omitempty"`
}

// ShopItem is one requested line item for a shop order
type ShopItem struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"qty"`
}

// OrderService is the Order Ledger
type OrderService struct {
	DB             *gorm.DB
	EscrowAddress  string // deposit target for ETH-source swaps
	KaspaHotWallet string // deposit target for KASPA-source swaps
}

func NewOrderService(db *gorm.DB, escrowAddress, kaspaHotWallet string) *OrderService {
	return &OrderService{
		DB:             db,
		EscrowAddress:  escrowAddress,
		KaspaHotWallet: kaspaHotWallet,
	}
}

// CreateOrder validates and persists a swap order together with its empty
// deposit placeholder in one transaction, and returns deposit instructions.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*models.Order, *DepositInstructions, error) {
	if err := s.validateOrderRequest(req); err != nil {
		return nil, nil, err
	}

	reference, err := newDepositReference(req.FromChain)
	if err != nil {
		return nil, nil, err
	}

	depositAddress := s.KaspaHotWallet
	if req.FromChain == "ETH" {
		depositAddress = s.EscrowAddress
	}

	order := &models.Order{
		UserID:           userID,
		Kind:             models.OrderKindSwap,
		Status:           models.OrderStatusCreated,
		FromChain:        req.FromChain,
		ToChain:          req.ToChain,
		FromAmount:       req.FromAmount,
		ToAmount:         req.ToAmount,
		FromAddress:      req.FromAddress,
		ToAddress:        req.ToAddress,
		DepositAddress:   depositAddress,
		DepositReference: &reference,
	}

	// A visible order must always have its deposit placeholder
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		deposit := &models.Deposit{
			OrderID: order.ID,
			Status:  models.DepositStatusPending,
		}
		return tx.Create(deposit).Error
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nil, fmt.Errorf("%w: deposit reference collision, please retry", ErrConflict)
		}
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	instructions := &DepositInstructions{
		Chain:     req.FromChain,
		Address:   depositAddress,
		Amount:    req.FromAmount,
		Reference: reference,
	}
	if req.FromChain == "ETH" {
		instructions.Memo = fmt.Sprintf("Use reference %s when calling deposit()", reference)
	}

	return order, instructions, nil
}

// GetOrder returns the order with its deposit and swap records, owner-scoped
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Deposit").
		Preload("Swaps").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order not found", ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// ListOrders returns a page of the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := s.DB.WithContext(ctx).
		Preload("Deposit").
		Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// FindByDepositReference resolves an on-chain deposit back to its open order.
// Terminal orders are excluded so settled orders never re-match a late event.
func (s *OrderService) FindByDepositReference(ctx context.Context, reference, chain string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Deposit").
		Where("deposit_reference = ? AND from_chain = ? AND status NOT IN ?", reference, chain, models.TerminalStatuses()).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find by deposit reference: %w", err)
	}
	return &order, nil
}

// GetOrderByID loads an order without owner scoping (internal use)
func (s *OrderService) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// TransitionStatus applies a compare-and-swap status update. It returns
// (false, nil) when the order was not in the expected status — callers treat a
// lost race as "already handled". Illegal edges fail with ErrInvalidTransition
// before touching the row.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordDeposit upserts the deposit row for an order when an on-chain event is
// observed: tx hash set, confirmations reset to 0, status pending.
func (s *OrderService) RecordDeposit(ctx context.Context, orderID uuid.UUID, txHash string) error {
	var deposit models.Deposit
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&deposit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		deposit = models.Deposit{
			OrderID: orderID,
			TxHash:  txHash,
			Status:  models.DepositStatusPending,
		}
		if err := s.DB.WithContext(ctx).Create(&deposit).Error; err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup deposit: %w", err)
	}

	updates := map[string]interface{}{
		"tx_hash":       txHash,
		"confirmations": 0,
		"status":        models.DepositStatusPending,
	}
	if err := s.DB.WithContext(ctx).Model(&deposit).Updates(updates).Error; err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	return nil
}

// ListPendingDeposits returns pending deposits whose parent order is still live
func (s *OrderService) ListPendingDeposits(ctx context.Context) ([]models.Deposit, error) {
	var deposits []models.Deposit
	err := s.DB.WithContext(ctx).
		Joins("JOIN orders ON orders.id = deposits.order_id").
		Where("deposits.status = ? AND deposits.tx_hash <> '' AND orders.status NOT IN ?",
			models.DepositStatusPending, models.TerminalStatuses()).
		Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("list pending deposits: %w", err)
	}
	return deposits, nil
}

// UpdateConfirmations persists a new confirmation count, never decreasing it.
// A transiently lagging chain-height read therefore cannot rewind progress.
func (s *OrderService) UpdateConfirmations(ctx context.Context, depositID uuid.UUID, confirmations int64) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND confirmations <= ?", depositID, confirmations).
		Update("confirmations", confirmations).Error
	if err != nil {
		return fmt.Errorf("update confirmations: %w", err)
	}
	return nil
}

// ConfirmDeposit CAS-flips a deposit from pending to confirmed
func (s *OrderService) ConfirmDeposit(ctx context.Context, depositID uuid.UUID) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND status = ?", depositID, models.DepositStatusPending).
		Update("status", models.DepositStatusConfirmed)
	if res.Error != nil {
		return false, fmt.Errorf("confirm deposit: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordSwapSuccess inserts the completed swap row and flips the order to
// completed in one transaction. The CAS guards against double settlement:
// ErrConflict means another writer already settled the order and the swap row
// was rolled back with the transaction.
func (s *OrderService) RecordSwapSuccess(ctx context.Context, orderID uuid.UUID, txHash string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swap := &models.Swap{
			OrderID: orderID,
			TxHash:  txHash,
			Status:  models.SwapStatusCompleted,
		}
		if err := tx.Create(swap).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusDepositConfirmed).
			Update("status", models.OrderStatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %s not in %s", ErrConflict, orderID, models.OrderStatusDepositConfirmed)
		}
		return nil
	})
}

// RecordSwapFailure writes the failed swap row and the terminal failed status
// in independent statements so the audit row survives even when the status flip
// races. Errors here are logged, not returned: the payout error that brought us
// here is what the caller needs to see.
func (s *OrderService) RecordSwapFailure(ctx context.Context, orderID uuid.UUID, cause error) {
	swap := &models.Swap{
		OrderID:      orderID,
		Status:       models.SwapStatusFailed,
		ErrorMessage: cause.Error(),
	}
	if err := s.DB.WithContext(ctx).Create(swap).Error; err != nil {
		logger.Error("Failed to record swap failure for order %s: %v", orderID, err)
	}

	applied, err := s.TransitionStatus(ctx, orderID, models.OrderStatusDepositConfirmed, models.OrderStatusFailed)
	if err != nil {
		logger.Error("Failed to mark order %s failed: %v", orderID, err)
	} else if !applied {
		logger.Error("Order %s was not in %s while recording settlement failure", orderID, models.OrderStatusDepositConfirmed)
	}
}

// CreateShopOrder builds a shop order from catalog items: product lookup,
// stock check and decrement, line item snapshot, all in one transaction.
func (s *OrderService) CreateShopOrder(ctx context.Context, userID uuid.UUID, items []ShopItem, buyerAddress string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items array required", ErrInvalidInput)
	}

	var order *models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total float64
		lineItems := make([]models.OrderItem, 0, len(items))

		for _, item := range items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil || item.Quantity <= 0 {
				return fmt.Errorf("%w: invalid item format", ErrInvalidInput)
			}

			var product models.Product
			if err := tx.Where("id = ? AND active = true", productID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %s not found or inactive", ErrNotFound, item.ProductID)
				}
				return err
			}

			if product.Stock < item.Quantity {
				return fmt.Errorf("%w: insufficient stock for %s", ErrConflict, product.Title)
			}

			if err := tx.Model(&product).Update("stock", gorm.Expr("stock - ?", item.Quantity)).Error; err != nil {
				return err
			}

			total += product.Price * float64(item.Quantity)
			lineItems = append(lineItems, models.OrderItem{
				ProductID:    product.ID,
				ProductTitle: product.Title,
				Quantity:     item.Quantity,
				Price:        product.Price,
				Currency:     product.Currency,
			})
		}

		order = &models.Order{
			UserID:      userID,
			Kind:        models.OrderKindShop,
			Status:      models.OrderStatusCreated,
			FromAddress: buyerAddress,
			ToAddress:   buyerAddress,
			TotalAmount: total,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		for i := range lineItems {
			lineItems[i].OrderID = order.ID
		}
		return tx.Create(&lineItems).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListActiveProducts returns the shop catalog
func (s *OrderService) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.DB.WithContext(ctx).Where("active = true").Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *OrderService) validateOrderRequest(req CreateOrderRequest) error {
	if !SupportedChains[req.FromChain] || !SupportedChains[req.ToChain] {
		return fmt.Errorf("%w: invalid chain, supported: ETH, KASPA", ErrInvalidInput)
	}
	if req.FromChain == req.ToChain {
		return fmt.Errorf("%w: cannot swap to same chain", ErrInvalidInput)
	}
	if req.FromAmount <= 0 || req.ToAmount <= 0 {
		return fmt.Errorf("%w: amounts must be positive", ErrInvalidInput)
	}
	if err := validateChainAddress(req.FromChain, req.FromAddress, "from_address"); err != nil {
		return err
	}
	return validateChainAddress(req.ToChain, req.ToAddress, "to_address")
}

func validateChainAddress(chain, address, field string) error {
	switch chain {
	case "ETH":
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: invalid Ethereum %s", ErrInvalidInput, field)
		}
	case "KASPA":
		if !strings.HasPrefix(address, "kaspa:") || len(address) < 10 {
			return fmt.Errorf("%w: invalid Kaspa %s", ErrInvalidInput, field)
		}
	}
	return nil
}

// newDepositReference allocates a fresh matching token. ETH-source orders get a
// bytes32 hex value (the escrow contract tags deposits with it); KASPA-source
// orders get a short hex memo.
func newDepositReference(fromChain string) (string, error) {
	size := 16
	if fromChain == "ETH" {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate deposit reference: %w", err)
	}
	if fromChain == "ETH" {
		return "0x" + hex.EncodeToString(buf), nil
	}
	return hex.EncodeToString(buf), nil
}
