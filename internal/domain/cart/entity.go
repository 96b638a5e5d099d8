// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/your-org/storefront-backend/internal/domain/product"
)

// Cart is the single shopping cart of a user. It is created at signup and
// outlives every checkout.
type Cart struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// CartItem is one product line in a cart. Lines are deleted physically.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"product_id"`
	Quantity  int       `gorm:"not null;check:chk_cart_items_quantity,quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product product.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// ProductSummary is the product view embedded in cart lines
type ProductSummary struct {
	ID        uint   `json:"id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
	ImageURL  string `json:"image_url,omitempty"`
	Available bool   `json:"available"`
}

// CartItemResponse represents a cart line with product details
type CartItemResponse struct {
	ID        uint           `json:"id"`
	ProductID uint           `json:"product_id"`
	Quantity  int            `json:"quantity"`
	LineTotal int64          `json:"line_total"`
	Product   ProductSummary `json:"product"`
	AddedAt   time.Time      `json:"added_at"`
}

// CartTotals represents calculated cart totals at current prices
type CartTotals struct {
	ItemCount     int   `json:"item_count"`     // Number of distinct lines
	TotalQuantity int   `json:"total_quantity"` // Sum of all quantities
	SubTotal      int64 `json:"sub_total"`
}

// CartResponse represents a shopping cart with items and summary
type CartResponse struct {
	ID        uint               `json:"id"`
	UserID    uint               `json:"user_id"`
	Items     []CartItemResponse `json:"items"`
	Totals    CartTotals         `json:"totals"`
	UpdatedAt time.Time          `json:"updated_at"`
}
