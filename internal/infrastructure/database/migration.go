// internal/infrastructure/database/migration.go
package database

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/admin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger *logrus.Logger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		// Principals
		&user.User{},
		&admin.Admin{},

		// Catalog
		&product.Category{},
		&product.Product{},
		&product.ProductImage{},
		&product.ProductCategory{},

		// Cart
		&cart.Cart{},
		&cart.CartItem{},

		// Orders
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("running database auto-migrations")

	for _, model := range Models() {
		m.logger.Debugf("migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates indexes that struct tags cannot express. Failures
// are logged and counted, never fatal.
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// Email is unique among live users only
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active ON users(email) WHERE is_deleted = false",

		"CREATE INDEX IF NOT EXISTS idx_products_published ON products(is_published, is_deleted)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_product_images_sort_order ON product_images(product_id, sort_order)",
		"CREATE INDEX IF NOT EXISTS idx_product_categories_category ON product_categories(category_id, is_deleted)",

		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).WithField("sql", indexSQL).Warn("failed to create index")
			failCount++
		} else {
			successCount++
		}
	}

	m.logger.WithFields(logrus.Fields{
		"created": successCount,
		"failed":  failCount,
	}).Info("additional indexes processed")
	return nil
}

// SeedInitialData inserts a development admin and starter categories
func (m *Migration) SeedInitialData() error {
	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedAdmin(); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	m.logger.Info("initial data seeded")
	return nil
}

func (m *Migration) seedCategories() error {
	categories := []product.Category{
		{Name: "Electronics", Description: "Electronic devices, gadgets, and accessories"},
		{Name: "Clothing", Description: "Fashion, apparel, and accessories"},
		{Name: "Books", Description: "Books, eBooks, and educational materials"},
		{Name: "Home & Garden", Description: "Home improvement, furniture, and garden supplies"},
	}

	for _, category := range categories {
		var existing product.Category
		err := m.db.Where("name = ?", category.Name).First(&existing).Error
		switch {
		case err == nil:
			m.logger.Debugf("category already exists: %s", category.Name)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := m.db.Create(&category).Error; err != nil {
				return err
			}
			m.logger.Infof("created category: %s", category.Name)
		default:
			return err
		}
	}
	return nil
}

func (m *Migration) seedAdmin() error {
	const email = "admin@example.com"

	var existing admin.Admin
	err := m.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		m.logger.WithField("admin_id", existing.ID).Debug("seed admin already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin12345"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	seed := admin.Admin{
		Email:    email,
		Password: string(hashedPassword),
		Name:     "Admin",
		Role:     string(auth.RoleAdmin),
	}
	if err := m.db.Create(&seed).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	m.logger.WithField("email", email).Info("created development admin (password: admin12345)")
	return nil
}
