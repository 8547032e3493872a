/**
 * @description
 * Deposit database model.
 * Maps to the 'deposits' table in PostgreSQL.
 * One deposit row per swap order, created as an empty placeholder at order
 * creation and filled in by the deposit watcher once an on-chain event matches
 * the order's deposit reference.
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

// DepositStatus tracks confirmation progress of an on-chain deposit
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
)

// Deposit represents the on-chain deposit backing a swap order
type Deposit struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`

	TxHash string `gorm:"column:tx_hash;type:varchar(66)" json:"tx_hash"`
	// Confirmations is monotonically non-decreasing while the deposit is pending
	Confirmations int64         `gorm:"column:confirmations;default:0" json:"confirmations"`
	Status        DepositStatus `gorm:"column:status;type:varchar(16);default:'pending';index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Deposit to `deposits`
func (Deposit) TableName() string {
	return "deposits"
}

// BeforeCreate ensures UUID is generated if not present
func (d *Deposit) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return
}
