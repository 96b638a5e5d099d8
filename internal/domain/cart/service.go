// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles cart business logic. Every method takes the acting user's
// ID explicitly.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	logger      *logrus.Logger
}

// NewService creates a new cart service. redisClient may be nil, in which
// case item counts are always read from the database.
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		logger:      logger,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// GetCart returns the user's cart with product details
func (s *Service) GetCart(ctx context.Context, userID uint) (*CartResponse, error) {
	var c Cart
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Preload("Items.Product.Images", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("sort_order ASC, id ASC")
		}).
		Where("user_id = ?", userID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("cart for user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	return toResponse(&c), nil
}

// AddItem adds quantity units of a product, merging with an existing line.
// The resulting line quantity may not exceed the product's stock.
func (s *Service) AddItem(ctx context.Context, userID, productID uint, quantity int) (*CartResponse, error) {
	if quantity <= 0 {
		return nil, apperror.InvalidArgument("quantity must be greater than zero")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockOrCreateCart(tx, userID)
		if err != nil {
			return err
		}

		p, err := lockAvailableProduct(tx, productID)
		if err != nil {
			return err
		}

		var item CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if quantity > p.Stock {
				return apperror.InsufficientStock(p.ID, p.Name, p.Stock, quantity)
			}
			item = CartItem{CartID: c.ID, ProductID: productID, Quantity: quantity}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to add cart item: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to find cart item: %w", err)
		default:
			prospective := item.Quantity + quantity
			if prospective > p.Stock {
				return apperror.InsufficientStock(p.ID, p.Name, p.Stock, prospective)
			}
			if err := tx.Model(&item).Update("quantity", prospective).Error; err != nil {
				return fmt.Errorf("failed to update cart item: %w", err)
			}
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateItemCount(ctx, userID)
	return s.GetCart(ctx, userID)
}

// UpdateItemQuantity overwrites the quantity of an existing line
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID uint, quantity int) (*CartResponse, error) {
	if quantity <= 0 {
		return nil, apperror.InvalidArgument("quantity must be greater than zero")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := LockCart(tx, userID)
		if err != nil {
			return err
		}

		var item CartItem
		if err := tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("product %d is not in the cart", productID)
			}
			return fmt.Errorf("failed to find cart item: %w", err)
		}

		p, err := lockAvailableProduct(tx, productID)
		if err != nil {
			return err
		}
		if quantity > p.Stock {
			return apperror.InsufficientStock(p.ID, p.Name, p.Stock, quantity)
		}

		if err := tx.Model(&item).Update("quantity", quantity).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateItemCount(ctx, userID)
	return s.GetCart(ctx, userID)
}

// RemoveItem deletes a line from the cart
func (s *Service) RemoveItem(ctx context.Context, userID, productID uint) (*CartResponse, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := LockCart(tx, userID)
		if err != nil {
			return err
		}

		result := tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).Delete(&CartItem{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove cart item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NotFound("product %d is not in the cart", productID)
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateItemCount(ctx, userID)
	return s.GetCart(ctx, userID)
}

// ItemCount returns the total quantity across all lines, zero when the user
// has no cart. Counts are cached in Redis under the user's current count
// version; mutations bump the version so a slow reader can only ever fill a
// key that is no longer read.
func (s *Service) ItemCount(ctx context.Context, userID uint) (int, error) {
	key, cacheable := s.itemCountKey(ctx, userID)

	if cacheable {
		cached, err := s.redisClient.Get(ctx, key).Result()
		switch {
		case err == nil:
			if n, convErr := strconv.Atoi(cached); convErr == nil {
				return n, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.WithError(err).WithField("user_id", userID).Warn("cart count cache read failed")
		}
	}

	var total int64
	err := s.db.WithContext(ctx).Model(&CartItem{}).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}

	if cacheable {
		if err := s.redisClient.Set(ctx, key, total, s.config.Redis.CartCountTTL).Err(); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("cart count cache write failed")
		}
	}

	return int(total), nil
}

// itemCountKey resolves the cache key for the user's current count version.
// It must be read before the count itself.
func (s *Service) itemCountKey(ctx context.Context, userID uint) (string, bool) {
	if s.redisClient == nil {
		return "", false
	}

	version, err := s.redisClient.Get(ctx, ItemCountVersionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart count version read failed")
		return "", false
	}
	return ItemCountKey(userID, version), true
}

// InvalidateItemCount moves the user to a new count version, orphaning any
// cached count. Failures are logged only; cached entries expire on their own.
func (s *Service) InvalidateItemCount(ctx context.Context, userID uint) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Incr(ctx, ItemCountVersionKey(userID)).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart count cache invalidation failed")
	}
}

// ItemCountVersionKey is the Redis key holding a user's cart count version
func ItemCountVersionKey(userID uint) string {
	return fmt.Sprintf("cart:count:%d:version", userID)
}

// ItemCountKey is the Redis key caching a user's cart item count at version
func ItemCountKey(userID uint, version int64) string {
	return fmt.Sprintf("cart:count:%d:v%d", userID, version)
}

// LockCart loads the user's cart row for update within tx
func LockCart(tx *gorm.DB, userID uint) (*Cart, error) {
	var c Cart
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("cart for user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return &c, nil
}

// lockOrCreateCart locks the user's cart, creating it first if a legacy
// account has none
func lockOrCreateCart(tx *gorm.DB, userID uint) (*Cart, error) {
	c, err := LockCart(tx, userID)
	if err == nil || !apperror.Is(err, apperror.KindNotFound) {
		return c, err
	}

	created := Cart{UserID: userID}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&created).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return LockCart(tx, userID)
}

func lockAvailableProduct(tx *gorm.DB, productID uint) (*product.Product, error) {
	var p product.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", productID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	if !p.Available() {
		return nil, apperror.NotFound("product %d not found", productID)
	}
	return &p, nil
}

// touch bumps the cart's updated_at so readers see the mutation time
func touch(tx *gorm.DB, c *Cart) error {
	if err := tx.Model(c).Update("updated_at", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

func toResponse(c *Cart) *CartResponse {
	resp := &CartResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     make([]CartItemResponse, 0, len(c.Items)),
		UpdatedAt: c.UpdatedAt,
	}

	for _, item := range c.Items {
		p := item.Product
		summary := ProductSummary{
			ID:        p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
			Available: p.Available(),
		}
		if len(p.Images) > 0 {
			summary.ImageURL = p.Images[0].URL
		}

		line := p.Price * int64(item.Quantity)
		resp.Items = append(resp.Items, CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			LineTotal: line,
			Product:   summary,
			AddedAt:   item.CreatedAt,
		})

		resp.Totals.TotalQuantity += item.Quantity
		resp.Totals.SubTotal += line
	}
	resp.Totals.ItemCount = len(resp.Items)

	return resp
}
