// internal/pkg/events/events.go
package events

import (
	"context"
	"time"
)

// Routing keys of the events the storefront emits
const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
)

// Publisher delivers domain events to interested consumers. Publishing is
// best effort and happens after the owning transaction commits.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

// OrderPlacedEvent is emitted once per successful checkout
type OrderPlacedEvent struct {
	OrderID     uint              `json:"order_id"`
	UserID      uint              `json:"user_id"`
	TotalAmount int64             `json:"total_amount"`
	Status      string            `json:"status"`
	Items       []OrderPlacedItem `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

// OrderPlacedItem is one purchased line
type OrderPlacedItem struct {
	ProductID uint  `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}

// OrderStatusChangedEvent is emitted when an admin moves an order along its lifecycle
type OrderStatusChangedEvent struct {
	OrderID   uint      `json:"order_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy uint      `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
