/**
 * @description
 * Swap settlement record.
 * Maps to the 'swaps' table in PostgreSQL.
 * Append-only audit trail: one row per settlement attempt outcome, never updated.
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

// SwapStatus is the outcome of a settlement attempt
type SwapStatus string

const (
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusFailed    SwapStatus = "failed"
)

// Swap records the outcome of one cross-chain payout attempt for an order
type Swap struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`

	TxHash       string     `gorm:"column:tx_hash;type:varchar(66)" json:"tx_hash,omitempty"` // empty on failure
	Status       SwapStatus `gorm:"column:status;type:varchar(16)" json:"status"`
	ErrorMessage string     `gorm:"column:error_message" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Swap to `swaps`
func (Swap) TableName() string {
	return "swaps"
}

// BeforeCreate ensures UUID is generated if not present
func (s *Swap) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}
