// internal/domain/product/entity.go
package product

import (
	"time"
)

// Product represents a sellable catalog item. Price is in minor units.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SKU         string    `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name        string    `gorm:"not null;size:255" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       int64     `gorm:"not null;check:chk_products_price,price >= 0" json:"price"`
	Stock       int       `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	IsDeleted   bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Images     []ProductImage `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"images,omitempty"`
	Categories []Category     `gorm:"-" json:"categories,omitempty"`
}

// Category groups products. Names are unique across all rows.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	IsDeleted   bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductCategory links a product to a category. A link is soft deleted
// independently of either side.
type ProductCategory struct {
	ProductID  uint      `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	CategoryID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"category_id"`
	IsDeleted  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProductImage is a display image. SortOrder ascending is display order.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	URL       string    `gorm:"not null;size:500" json:"url"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	IsDeleted bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (ProductCategory) TableName() string {
	return "product_categories"
}

func (p *Product) MarkDeleted()         { p.IsDeleted = true }
func (p *Product) IsDeletedFlag() bool  { return p.IsDeleted }
func (c *Category) MarkDeleted()        { c.IsDeleted = true }
func (c *Category) IsDeletedFlag() bool { return c.IsDeleted }

func (pc *ProductCategory) MarkDeleted()        { pc.IsDeleted = true }
func (pc *ProductCategory) IsDeletedFlag() bool { return pc.IsDeleted }
func (pi *ProductImage) MarkDeleted()           { pi.IsDeleted = true }
func (pi *ProductImage) IsDeletedFlag() bool    { return pi.IsDeleted }

// Available reports whether shoppers may put the product in a cart
func (p *Product) Available() bool {
	return !p.IsDeleted && p.IsPublished
}
