// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"
)

// User represents a shopper account. Email is unique among non-deleted users.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"not null;size:255;index" json:"email"`
	Password    string     `gorm:"not null;size:255" json:"-"` // Don't return in JSON
	Name        string     `gorm:"not null;size:100" json:"name"`
	Address     string     `gorm:"type:text" json:"address"`
	Phone       string     `gorm:"size:20" json:"phone"`
	IsDeleted   bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

func (u *User) MarkDeleted()        { u.IsDeleted = true }
func (u *User) IsDeletedFlag() bool { return u.IsDeleted }

// NormalizeEmail lowercases and trims an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ToResponse converts the entity to its public view
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Address: u.Address,
	}
}
