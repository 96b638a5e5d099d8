// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"github.com/your-org/storefront-backend/internal/domain/product"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// transitions lists the statuses reachable from each status. Statuses
// without an entry are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// ParseStatus validates a client supplied status name
func ParseStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransitionTo reports whether the graph allows moving from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Order is an immutable purchase snapshot. Only Status changes after creation.
type Order struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UserID          uint        `gorm:"not null;index" json:"user_id"`
	TotalAmount     int64       `gorm:"not null" json:"total_amount"` // Minor units
	Status          OrderStatus `gorm:"not null;size:20;index" json:"status"`
	ShippingAddress string      `gorm:"type:text" json:"shipping_address"`
	CreatedAt       time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"status_history,omitempty"`
}

// OrderItem is a line of an order with the unit price frozen at checkout
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	SKU       string    `gorm:"not null;size:100" json:"sku"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Price     int64     `gorm:"not null" json:"price"` // Unit price in minor units
	CreatedAt time.Time `json:"created_at"`

	Product product.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	OrderID       uint        `gorm:"not null;index" json:"order_id"`
	FromStatus    OrderStatus `gorm:"size:20" json:"from_status,omitempty"`
	Status        OrderStatus `gorm:"not null;size:20" json:"status"`
	Comment       string      `gorm:"type:text" json:"comment"`
	ChangedBy     uint        `gorm:"index" json:"changed_by"` // User or admin ID
	ChangedByRole string      `gorm:"size:10" json:"changed_by_role"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// OrderNumber is the human facing reference printed on invoices
func (o *Order) OrderNumber() string {
	return fmt.Sprintf("ORD-%s-%05d", o.CreatedAt.Format("20060102"), o.ID)
}

// LineTotal returns quantity times the frozen unit price
func (i *OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}
