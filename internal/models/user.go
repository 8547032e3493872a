/**
 * @description
 * User database model.
 * Maps to the 'users' table in PostgreSQL.
 * Users are identified by their Ethereum wallet address; there are no passwords.
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

// User represents a registered wallet in the system
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Address  string    `gorm:"uniqueIndex;not null" json:"address"` // lowercase hex, immutable once set
	Username string    `gorm:"uniqueIndex;not null" json:"username"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by User to `users`
func (User) TableName() string {
	return "users"
}

// BeforeCreate ensures UUID is generated if not present (though DB usually handles this)
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
