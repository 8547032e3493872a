/**
 * @description
 * Payment database model for shop orders paid through the gateway.
 * Maps to the 'payments' table in PostgreSQL; one row per gateway invoice.
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

// Payment tracks a NOWPayments invoice attached to a shop order
type Payment struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`

	PaymentID     string  `gorm:"column:payment_id;uniqueIndex" json:"payment_id"` // gateway-side id
	InvoiceURL    string  `gorm:"column:invoice_url" json:"invoice_url"`
	PayAddress    string  `gorm:"column:pay_address" json:"pay_address"`
	PayAmount     float64 `gorm:"column:pay_amount;type:decimal" json:"pay_amount"`
	PayCurrency   string  `gorm:"column:pay_currency;type:varchar(16)" json:"pay_currency"`
	PriceAmount   float64 `gorm:"column:price_amount;type:decimal" json:"price_amount"`
	PriceCurrency string  `gorm:"column:price_currency;type:varchar(16)" json:"price_currency"`
	PaymentStatus string  `gorm:"column:payment_status;type:varchar(24);default:'waiting'" json:"payment_status"`
	ActuallyPaid  float64 `gorm:"column:actually_paid;type:decimal" json:"actually_paid"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Payment to `payments`
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate ensures UUID is generated if not present
func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
