// internal/domain/user/admin_service.go
package user

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/pagination"
	"github.com/your-org/storefront-backend/internal/pkg/softdelete"
	"gorm.io/gorm"
)

// AdminService handles user management operations performed by admins
type AdminService struct {
	db     *gorm.DB
	config *config.Config
}

// NewAdminService creates a new admin user service
func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:     db,
		config: cfg,
	}
}

// UserListRequest represents user list query parameters
type UserListRequest struct {
	Page           int    `form:"page,default=1"`
	Limit          int    `form:"limit,default=20"`
	Search         string `form:"search"`
	IncludeDeleted bool   `form:"include_deleted"`
	SortBy         string `form:"sort_by,default=created_at"`
	SortOrder      string `form:"sort_order,default=desc"`
}

// UserListResponse represents user list with pagination
type UserListResponse struct {
	Users      []UserWithStats       `json:"users"`
	Pagination pagination.Pagination `json:"pagination"`
}

// UserWithStats represents user with order statistics
type UserWithStats struct {
	User
	OrderCount int64 `json:"order_count"`
	TotalSpent int64 `json:"total_spent"` // In cents, cancelled orders excluded
}

var userSortColumns = map[string]string{
	"created_at": "created_at",
	"email":      "email",
	"name":       "name",
}

// GetUsers lists users with optional search
func (s *AdminService) GetUsers(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit)

	query := s.filteredQuery(s.db.WithContext(ctx), req.Search, req.IncludeDeleted)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	column, ok := userSortColumns[req.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(req.SortOrder, "asc") {
		direction = "ASC"
	}

	var users []User
	err := query.Order(column + " " + direction).Order("id ASC").
		Offset(pagination.Offset(page, limit)).Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %w", err)
	}

	usersWithStats := make([]UserWithStats, 0, len(users))
	for _, u := range users {
		stats, err := s.getUserStats(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		stats.User = u
		usersWithStats = append(usersWithStats, *stats)
	}

	return &UserListResponse{
		Users:      usersWithStats,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// GetUser retrieves a single user by ID with stats. Deleted users are
// still visible to admins.
func (s *AdminService) GetUser(ctx context.Context, userID uint) (*UserWithStats, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	stats, err := s.getUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.User = u
	return stats, nil
}

// DeleteUser soft deletes a user. The email becomes available for a new signup.
func (s *AdminService) DeleteUser(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.Scopes(softdelete.Active).Where("id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user %d not found", userID)
			}
			return fmt.Errorf("failed to find user: %w", err)
		}
		return softdelete.Delete(tx, &u)
	})
}

// ExportUsers renders matching users as CSV and returns the data with a filename
func (s *AdminService) ExportUsers(ctx context.Context, search string, includeDeleted bool) ([]byte, string, error) {
	var users []User
	err := s.filteredQuery(s.db.WithContext(ctx), search, includeDeleted).
		Order("created_at DESC").Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, "", fmt.Errorf("failed to retrieve users for export: %w", err)
	}

	var csvData strings.Builder
	writer := csv.NewWriter(&csvData)

	headers := []string{"ID", "Email", "Name", "Phone", "Deleted", "Created At", "Last Login", "Order Count", "Total Spent"}
	if err := writer.Write(headers); err != nil {
		return nil, "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, u := range users {
		stats, err := s.getUserStats(ctx, u.ID)
		if err != nil {
			return nil, "", err
		}

		lastLogin := "Never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format("2006-01-02 15:04:05")
		}

		record := []string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Email,
			u.Name,
			u.Phone,
			strconv.FormatBool(u.IsDeleted),
			u.CreatedAt.Format("2006-01-02 15:04:05"),
			lastLogin,
			strconv.FormatInt(stats.OrderCount, 10),
			fmt.Sprintf("%.2f", float64(stats.TotalSpent)/100),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to write CSV: %w", err)
	}

	filename := fmt.Sprintf("users_export_%s.csv", time.Now().Format("2006-01-02_15-04-05"))
	return []byte(csvData.String()), filename, nil
}

func (s *AdminService) filteredQuery(db *gorm.DB, search string, includeDeleted bool) *gorm.DB {
	query := db.Model(&User{})
	if !includeDeleted {
		query = query.Scopes(softdelete.Active)
	}
	if search = strings.TrimSpace(search); search != "" {
		searchTerm := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ? OR phone LIKE ?",
			searchTerm, searchTerm, "%"+search+"%")
	}
	return query
}

// getUserStats gets order statistics for a user
func (s *AdminService) getUserStats(ctx context.Context, userID uint) (*UserWithStats, error) {
	var orderStats struct {
		OrderCount int64
		TotalSpent int64
	}

	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS order_count,
			COALESCE(SUM(total_amount), 0) AS total_spent
		FROM orders
		WHERE user_id = ? AND status <> ?
	`, userID, "CANCELLED").Scan(&orderStats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return &UserWithStats{
		OrderCount: orderStats.OrderCount,
		TotalSpent: orderStats.TotalSpent,
	}, nil
}
