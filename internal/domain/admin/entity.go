// internal/domain/admin/entity.go
package admin

import (
	"strings"
	"time"
)

// Admin is a back-office account. Admins live in their own table and never
// own a cart.
type Admin struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password    string     `gorm:"not null;size:255" json:"-"`
	Name        string     `gorm:"not null;size:100" json:"name"`
	Role        string     `gorm:"not null;size:20" json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (Admin) TableName() string {
	return "admins"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
