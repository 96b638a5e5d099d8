// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/pagination"
	"github.com/your-org/storefront-backend/internal/pkg/softdelete"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageStore persists uploaded product images and returns their public URL
type ImageStore interface {
	SaveDataURL(dataURL string) (string, error)
	Remove(url string) error
}

// Service handles product business logic
type Service struct {
	db     *gorm.DB
	images ImageStore
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new product service
func NewService(db *gorm.DB, images ImageStore, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		images: images,
		config: cfg,
		logger: logger,
	}
}

// ProductListRequest represents product list query parameters
type ProductListRequest struct {
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=20"`
	CategoryID uint   `form:"category_id"`
	Search     string `form:"search"`
	SortBy     string `form:"sort_by,default=id"`
	SortOrder  string `form:"sort_order,default=asc"`
}

// ImageInput is either a remote URL or a base64 data URL to be stored locally
type ImageInput struct {
	URL       string `json:"url"`
	Data      string `json:"data"`
	SortOrder *int   `json:"sort_order"`
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	SKU         string       `json:"sku" binding:"required,max=100"`
	Name        string       `json:"name" binding:"required,max=255"`
	Description string       `json:"description"`
	Price       int64        `json:"price" binding:"min=0"`
	Stock       int          `json:"stock" binding:"min=0"`
	IsPublished *bool        `json:"is_published"`
	CategoryIDs []uint       `json:"category_ids"`
	Images      []ImageInput `json:"images"`
}

// ProductUpdateRequest represents product update data. Nil CategoryIDs or
// Images leave those sets untouched; an empty list clears them.
type ProductUpdateRequest struct {
	Name        *string      `json:"name" binding:"omitempty,max=255"`
	Description *string      `json:"description"`
	Price       *int64       `json:"price" binding:"omitempty,min=0"`
	Stock       *int         `json:"stock" binding:"omitempty,min=0"`
	IsPublished *bool        `json:"is_published"`
	CategoryIDs []uint       `json:"category_ids"`
	Images      []ImageInput `json:"images"`
}

// ProductListResponse represents product list response with pagination
type ProductListResponse struct {
	Products   []Product             `json:"products"`
	Pagination pagination.Pagination `json:"pagination"`
}

// ListProducts returns non-deleted products. The public view hides unpublished ones.
func (s *Service) ListProducts(ctx context.Context, req *ProductListRequest, publicView bool) (*ProductListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit)
	db := s.db.WithContext(ctx)

	query := db.Model(&Product{}).Scopes(softdelete.ActiveIn("products"))
	if publicView {
		query = query.Where("products.is_published = ?", true)
	}
	if req.CategoryID > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = products.id AND pc.category_id = ? AND pc.is_deleted = ?)",
			req.CategoryID, false)
	}
	if req.Search != "" {
		search := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.sku) LIKE ?", search, search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	err := query.
		Preload("Images", activeImages).
		Order(s.buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(pagination.Offset(page, limit)).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	if err := attachCategories(db, products); err != nil {
		return nil, err
	}

	return &ProductListResponse{
		Products:   products,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// GetProduct retrieves a single non-deleted product by ID
func (s *Service) GetProduct(ctx context.Context, id uint, publicView bool) (*Product, error) {
	db := s.db.WithContext(ctx)

	var product Product
	query := db.Preload("Images", activeImages).Scopes(softdelete.Active).Where("id = ?", id)
	if publicView {
		query = query.Where("is_published = ?", true)
	}
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product %d not found", id)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	products := []Product{product}
	if err := attachCategories(db, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// CreateProduct creates a product together with its category links and images
func (s *Service) CreateProduct(ctx context.Context, req *ProductCreateRequest) (*Product, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" {
		return nil, apperror.InvalidArgument("sku and name are required")
	}
	if req.Price < 0 {
		return nil, apperror.InvalidArgument("price must not be negative")
	}
	if req.Stock < 0 {
		return nil, apperror.InvalidArgument("stock must not be negative")
	}

	images, err := s.storeImages(req.Images)
	if err != nil {
		return nil, err
	}

	product := Product{
		SKU:         sku,
		Name:        name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		IsPublished: req.IsPublished == nil || *req.IsPublished,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("sku = ?", sku).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check sku: %w", err)
		}
		if count > 0 {
			return apperror.Conflict("product with SKU %s already exists", sku)
		}

		if err := tx.Create(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("product with SKU %s already exists", sku)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		if err := replaceCategories(tx, product.ID, req.CategoryIDs); err != nil {
			return err
		}
		return insertImages(tx, product.ID, images)
	})
	if err != nil {
		s.discardFiles(images)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"product_id": product.ID, "sku": product.SKU}).Info("product created")
	return s.GetProduct(ctx, product.ID, false)
}

// UpdateProduct updates scalar fields and replaces the category and image sets when given
func (s *Service) UpdateProduct(ctx context.Context, id uint, req *ProductUpdateRequest) (*Product, error) {
	if req.Price != nil && *req.Price < 0 {
		return nil, apperror.InvalidArgument("price must not be negative")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, apperror.InvalidArgument("stock must not be negative")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperror.InvalidArgument("name must not be empty")
	}

	var images []ProductImage
	if req.Images != nil {
		var err error
		if images, err = s.storeImages(req.Images); err != nil {
			return nil, err
		}
	}

	var replaced []ProductImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(softdelete.Active).Where("id = ?", id).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("product %d not found", id)
			}
			return fmt.Errorf("failed to find product: %w", err)
		}

		updates := make(map[string]interface{})
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Price != nil {
			updates["price"] = *req.Price
		}
		if req.Stock != nil {
			updates["stock"] = *req.Stock
		}
		if req.IsPublished != nil {
			updates["is_published"] = *req.IsPublished
		}
		if len(updates) > 0 {
			if err := tx.Model(&product).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update product: %w", err)
			}
		}

		if req.CategoryIDs != nil {
			if err := replaceCategories(tx, id, req.CategoryIDs); err != nil {
				return err
			}
		}

		if req.Images != nil {
			if err := tx.Scopes(softdelete.Active).Where("product_id = ?", id).Find(&replaced).Error; err != nil {
				return fmt.Errorf("failed to load product images: %w", err)
			}
			if err := softdelete.DeleteAll(tx, replaced); err != nil {
				return err
			}
			return insertImages(tx, id, images)
		}
		return nil
	})
	if err != nil {
		s.discardFiles(images)
		return nil, err
	}

	s.discardFiles(unreferenced(replaced, images))
	return s.GetProduct(ctx, id, false)
}

// DeleteProduct soft deletes a product and cascades to its category links and images.
// Order items keep referencing the row.
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(softdelete.Active).Where("id = ?", id).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("product %d not found", id)
			}
			return fmt.Errorf("failed to find product: %w", err)
		}

		if err := softdelete.Delete(tx, &product); err != nil {
			return err
		}

		var links []ProductCategory
		if err := tx.Scopes(softdelete.Active).Where("product_id = ?", id).Find(&links).Error; err != nil {
			return fmt.Errorf("failed to load product categories: %w", err)
		}
		if err := softdelete.DeleteAll(tx, links); err != nil {
			return err
		}

		var images []ProductImage
		if err := tx.Scopes(softdelete.Active).Where("product_id = ?", id).Find(&images).Error; err != nil {
			return fmt.Errorf("failed to load product images: %w", err)
		}
		if err := softdelete.DeleteAll(tx, images); err != nil {
			return err
		}

		s.logger.WithField("product_id", id).Info("product deleted")
		return nil
	})
}

// storeImages writes data-URL images to storage. Order in the request is the
// default sort order.
func (s *Service) storeImages(inputs []ImageInput) ([]ProductImage, error) {
	images := make([]ProductImage, 0, len(inputs))
	for i, in := range inputs {
		sortOrder := i
		if in.SortOrder != nil {
			sortOrder = *in.SortOrder
		}

		url := strings.TrimSpace(in.URL)
		switch {
		case in.Data != "":
			stored, err := s.images.SaveDataURL(in.Data)
			if err != nil {
				s.discardFiles(images)
				return nil, apperror.Wrap(apperror.KindInvalidArgument, err, "image %d could not be stored", i)
			}
			url = stored
		case url == "":
			s.discardFiles(images)
			return nil, apperror.InvalidArgument("image %d needs a url or data", i)
		}

		images = append(images, ProductImage{URL: url, SortOrder: sortOrder})
	}
	return images, nil
}

// discardFiles removes locally stored files for images that will not be referenced
func (s *Service) discardFiles(images []ProductImage) {
	for _, img := range images {
		if err := s.images.Remove(img.URL); err != nil {
			s.logger.WithError(err).WithField("url", img.URL).Warn("failed to remove image file")
		}
	}
}

// unreferenced returns the retired images whose URL is not reused by current
func unreferenced(retired, current []ProductImage) []ProductImage {
	inUse := make(map[string]bool, len(current))
	for _, img := range current {
		inUse[img.URL] = true
	}

	var out []ProductImage
	for _, img := range retired {
		if !inUse[img.URL] {
			out = append(out, img)
		}
	}
	return out
}

// buildOrderClause builds ORDER BY clause for sorting
func (s *Service) buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"id":         true,
		"name":       true,
		"price":      true,
		"stock":      true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "id"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "asc"
	}

	return fmt.Sprintf("products.%s %s", sortBy, sortOrder)
}

func activeImages(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false).Order("sort_order ASC, id ASC")
}

func insertImages(tx *gorm.DB, productID uint, images []ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].ID = 0
		images[i].ProductID = productID
	}
	if err := tx.Create(&images).Error; err != nil {
		return fmt.Errorf("failed to create product images: %w", err)
	}
	return nil
}

// replaceCategories makes the active link set of a product equal to categoryIDs.
// Links are re-activated rather than duplicated.
func replaceCategories(tx *gorm.DB, productID uint, categoryIDs []uint) error {
	ids := uniqueIDs(categoryIDs)

	if len(ids) > 0 {
		var found int64
		err := tx.Model(&Category{}).Scopes(softdelete.Active).Where("id IN ?", ids).Count(&found).Error
		if err != nil {
			return fmt.Errorf("failed to check categories: %w", err)
		}
		if int(found) != len(ids) {
			return apperror.NotFound("one or more categories not found")
		}
	}

	var stale []ProductCategory
	query := tx.Scopes(softdelete.Active).Where("product_id = ?", productID)
	if len(ids) > 0 {
		query = query.Where("category_id NOT IN ?", ids)
	}
	if err := query.Find(&stale).Error; err != nil {
		return fmt.Errorf("failed to load product categories: %w", err)
	}
	if err := softdelete.DeleteAll(tx, stale); err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	links := make([]ProductCategory, len(ids))
	for i, id := range ids {
		links[i] = ProductCategory{ProductID: productID, CategoryID: id}
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "category_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_deleted", "updated_at"}),
	}).Create(&links).Error
	if err != nil {
		return fmt.Errorf("failed to link product categories: %w", err)
	}
	return nil
}

// attachCategories fills Categories on each product from active links
func attachCategories(db *gorm.DB, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	productIDs := make([]uint, len(products))
	for i := range products {
		productIDs[i] = products[i].ID
	}

	type row struct {
		ProductID uint
		Category
	}
	var rows []row
	err := db.Table("product_categories").
		Select("product_categories.product_id, categories.*").
		Joins("JOIN categories ON categories.id = product_categories.category_id").
		Where("product_categories.product_id IN ?", productIDs).
		Where("product_categories.is_deleted = ? AND categories.is_deleted = ?", false, false).
		Order("categories.name ASC").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load product categories: %w", err)
	}

	byProduct := make(map[uint][]Category, len(products))
	for _, r := range rows {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r.Category)
	}
	for i := range products {
		products[i].Categories = byProduct[products[i].ID]
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
