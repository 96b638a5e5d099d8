// internal/domain/product/category_service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/softdelete"
	"gorm.io/gorm"
)

// CategoryService handles category business logic
type CategoryService struct {
	db     *gorm.DB
	config *config.Config
}

// NewCategoryService creates a new category service
func NewCategoryService(db *gorm.DB, cfg *config.Config) *CategoryService {
	return &CategoryService{
		db:     db,
		config: cfg,
	}
}

// CategoryCreateRequest represents category creation data
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// CategoryUpdateRequest represents category update data
type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// CategoryWithProductCount represents category with product count
type CategoryWithProductCount struct {
	Category
	ProductCount int64 `json:"product_count"`
}

// GetCategories retrieves all non-deleted categories with their active product counts
func (s *CategoryService) GetCategories(ctx context.Context) ([]CategoryWithProductCount, error) {
	var categories []CategoryWithProductCount
	err := s.db.WithContext(ctx).Model(&Category{}).
		Select(`categories.*, (
			SELECT COUNT(*) FROM product_categories pc
			JOIN products p ON p.id = pc.product_id
			WHERE pc.category_id = categories.id AND pc.is_deleted = ? AND p.is_deleted = ?
		) AS product_count`, false, false).
		Scopes(softdelete.ActiveIn("categories")).
		Order("categories.name ASC").
		Scan(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}
	return categories, nil
}

// GetCategory retrieves a single non-deleted category
func (s *CategoryService) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var category Category
	err := s.db.WithContext(ctx).Scopes(softdelete.Active).Where("id = ?", id).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("category %d not found", id)
		}
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}
	return &category, nil
}

// CreateCategory creates a category. A soft-deleted category with the same
// name is restored instead, since names stay unique across deleted rows.
func (s *CategoryService) CreateCategory(ctx context.Context, req *CategoryCreateRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.InvalidArgument("category name is required")
	}

	var category Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Category
		err := tx.Where("name = ?", name).First(&existing).Error
		switch {
		case err == nil && !existing.IsDeleted:
			return apperror.Conflict("category %q already exists", name)
		case err == nil:
			existing.IsDeleted = false
			existing.Description = req.Description
			if err := tx.Model(&existing).Select("is_deleted", "description").Updates(&existing).Error; err != nil {
				return fmt.Errorf("failed to restore category: %w", err)
			}
			category = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to check category name: %w", err)
		}

		category = Category{Name: name, Description: req.Description}
		if err := tx.Create(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("category %q already exists", name)
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory updates an existing category
func (s *CategoryService) UpdateCategory(ctx context.Context, id uint, req *CategoryUpdateRequest) (*Category, error) {
	db := s.db.WithContext(ctx)

	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.InvalidArgument("category name must not be empty")
		}
		var count int64
		if err := db.Model(&Category{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check category name: %w", err)
		}
		if count > 0 {
			return nil, apperror.Conflict("category %q already exists", name)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := db.Model(category).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update category: %w", err)
		}
	}

	return s.GetCategory(ctx, id)
}

// DeleteCategory soft deletes a category and every product link pointing at it
func (s *CategoryService) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category Category
		if err := tx.Scopes(softdelete.Active).Where("id = ?", id).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("category %d not found", id)
			}
			return fmt.Errorf("failed to find category: %w", err)
		}

		if err := softdelete.Delete(tx, &category); err != nil {
			return err
		}

		var links []ProductCategory
		if err := tx.Scopes(softdelete.Active).Where("category_id = ?", id).Find(&links).Error; err != nil {
			return fmt.Errorf("failed to load category links: %w", err)
		}
		return softdelete.DeleteAll(tx, links)
	})
}
