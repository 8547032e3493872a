/**
 * @description
 * Order database model and status machine.
 * Maps to the 'orders' table in PostgreSQL.
 * An order is either a cross-chain swap (ETH <-> KASPA) or a shop purchase paid
 * through the payment gateway. Status moves only along the legal transition graph:
 *
 *   created -> deposit_detected -> deposit_confirmed -> completed | failed
 *   created -> paid | failed | expired | refunded
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderKind distinguishes swap orders from shop purchases
type OrderKind string

const (
	OrderKindSwap OrderKind = "swap"
	OrderKindShop OrderKind = "shop"
)

// OrderStatus defines the state of an order
type OrderStatus string

const (
	OrderStatusCreated          OrderStatus = "created"
	OrderStatusDepositDetected  OrderStatus = "deposit_detected"
	OrderStatusDepositConfirmed OrderStatus = "deposit_confirmed"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusFailed           OrderStatus = "failed"
	OrderStatusExpired          OrderStatus = "expired"
	OrderStatusRefunded         OrderStatus = "refunded"
)

// orderTransitions maps each status to the set of statuses reachable from it.
// Terminal statuses have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {
		OrderStatusDepositDetected,
		OrderStatusPaid,
		OrderStatusFailed,
		OrderStatusExpired,
		OrderStatusRefunded,
	},
	OrderStatusDepositDetected: {
		OrderStatusDepositConfirmed,
	},
	OrderStatusDepositConfirmed: {
		OrderStatusCompleted,
		OrderStatusFailed,
	},
}

// CanTransition reports whether moving an order from one status to another is legal.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// TerminalStatuses lists every status an order cannot leave.
func TerminalStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusCompleted,
		OrderStatusPaid,
		OrderStatusFailed,
		OrderStatusExpired,
		OrderStatusRefunded,
	}
}

// Order represents a swap or shop order placed by a user
type Order struct {
	ID     uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	UserID uuid.UUID   `gorm:"type:uuid;not null;index:idx_orders_user" json:"user_id"`
	Kind   OrderKind   `gorm:"column:kind;type:varchar(8);default:'swap'" json:"kind"`
	Status OrderStatus `gorm:"column:status;type:varchar(20);default:'created';index:idx_orders_status" json:"status"`

	FromChain   string  `gorm:"column:from_chain;type:varchar(16)" json:"from_chain"`
	ToChain     string  `gorm:"column:to_chain;type:varchar(16)" json:"to_chain"`
	FromAmount  float64 `gorm:"column:from_amount;type:decimal" json:"from_amount"`
	ToAmount    float64 `gorm:"column:to_amount;type:decimal" json:"to_amount"`
	FromAddress string  `gorm:"column:from_address" json:"from_address"`
	ToAddress   string  `gorm:"column:to_address" json:"to_address"`

	// Deposit instructions handed to the user at creation time. The reference is
	// unique across open orders and is how an on-chain deposit is matched back.
	// NULL for shop orders, which settle through the payment gateway instead;
	// a unique index tolerates repeated NULLs but not repeated empty strings.
	DepositAddress   string  `gorm:"column:deposit_address" json:"deposit_address"`
	DepositReference *string `gorm:"column:deposit_reference;uniqueIndex" json:"deposit_reference,omitempty"`

	// TotalAmount is only set for shop orders
	TotalAmount float64 `gorm:"column:total_amount;type:decimal" json:"total_amount,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Associations
	User    User    `gorm:"foreignKey:UserID" json:"-"`
	Deposit Deposit `gorm:"foreignKey:OrderID" json:"deposit,omitempty"`
	Swaps   []Swap  `gorm:"foreignKey:OrderID" json:"swaps,omitempty"`
}

// TableName overrides the table name used by Order to `orders`
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate ensures UUID is generated if not present
func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return
}
