/**
 * @description
 * Product and order item models for the shop flow.
 * Map to the 'products' and 'order_items' tables in PostgreSQL.
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

// Product is a shop catalog entry
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title    string    `gorm:"not null" json:"title"`
	Price    float64   `gorm:"type:decimal" json:"price"`
	Currency string    `gorm:"type:varchar(8);default:'usd'" json:"currency"`
	Stock    int       `gorm:"default:0" json:"stock"`
	Active   bool      `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Product to `products`
func (Product) TableName() string {
	return "products"
}

// BeforeCreate ensures UUID is generated if not present
func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// OrderItem is a line item on a shop order. Title and price are copied from the
// product at purchase time so later catalog edits don't rewrite history.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`

	ProductTitle string  `json:"product_title"`
	Quantity     int     `json:"quantity"`
	Price        float64 `gorm:"type:decimal" json:"price"`
	Currency     string  `gorm:"type:varchar(8)" json:"currency"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by OrderItem to `order_items`
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate ensures UUID is generated if not present
func (i *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}
