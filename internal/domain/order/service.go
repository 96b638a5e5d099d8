// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/events"
	"github.com/your-org/storefront-backend/internal/pkg/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("storefront/order")

// Service handles order business logic
type Service struct {
	db          *gorm.DB
	config      *config.Config
	cartService *cart.Service
	publisher   events.Publisher
	logger      *logrus.Logger
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, cartService *cart.Service, publisher events.Publisher, logger *logrus.Logger) *Service {
	return &Service{
		db:          db,
		config:      cfg,
		cartService: cartService,
		publisher:   publisher,
		logger:      logger,
	}
}

// CheckoutRequest represents checkout data. A blank shipping address falls
// back to the address on the user's profile.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"max=1000"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int    `form:"page,default=1"`
	Limit     int    `form:"limit,default=20"`
	Status    string `form:"status"`
	UserID    uint   `form:"user_id"`
	SortBy    string `form:"sort_by,default=created_at"`
	SortOrder string `form:"sort_order,default=desc"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment" binding:"max=1000"`
}

// Actor identifies who changes an order
type Actor struct {
	ID   uint
	Role string
}

// ProductSummary is the product view embedded in order lines
type ProductSummary struct {
	ID   uint   `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// OrderItemResponse represents an order line
type OrderItemResponse struct {
	ID        uint           `json:"id"`
	Quantity  int            `json:"quantity"`
	Price     int64          `json:"price"`
	LineTotal int64          `json:"line_total"`
	Product   ProductSummary `json:"product"`
}

// Customer is the buyer as shown to admins
type Customer struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderResponse represents an order with its lines
type OrderResponse struct {
	ID              uint                 `json:"id"`
	OrderNumber     string               `json:"order_number"`
	UserID          uint                 `json:"user_id"`
	TotalAmount     int64                `json:"total_amount"`
	Status          OrderStatus          `json:"status"`
	ShippingAddress string               `json:"shipping_address"`
	CreatedAt       time.Time            `json:"created_at"`
	Items           []OrderItemResponse  `json:"items"`
	Customer        *Customer            `json:"customer,omitempty"`
	StatusHistory   []OrderStatusHistory `json:"status_history,omitempty"`
}

// OrderListResponse represents orders with pagination
type OrderListResponse struct {
	Orders     []OrderResponse       `json:"orders"`
	Pagination pagination.Pagination `json:"pagination"`
}

// Checkout converts the user's cart into a PAID order. Stock is re-validated
// and decremented, and the cart is emptied, all in one transaction.
func (s *Service) Checkout(ctx context.Context, userID uint, req *CheckoutRequest) (*OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "order.Checkout", trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin checkout: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := s.placeOrder(tx, userID, req.ShippingAddress)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("order.id", int64(order.ID)),
		attribute.Int64("order.total_amount", order.TotalAmount),
		attribute.Int("order.items", len(order.Items)),
	)
	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"user_id":      userID,
		"total_amount": order.TotalAmount,
		"items":        len(order.Items),
	}).Info("order placed")

	s.cartService.InvalidateItemCount(ctx, userID)
	s.publish(ctx, events.OrderPlaced, placedEvent(order))

	return toResponse(order), nil
}

// placeOrder runs the checkout steps inside tx
func (s *Service) placeOrder(tx *gorm.DB, userID uint, shippingAddress string) (*Order, error) {
	c, err := cart.LockCart(tx, userID)
	if err != nil {
		return nil, err
	}

	var lines []cart.CartItem
	if err := tx.Where("cart_id = ?", c.ID).Order("product_id ASC").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(lines) == 0 {
		return nil, apperror.ErrEmptyCart
	}

	products, err := lockProducts(tx, lines)
	if err != nil {
		return nil, err
	}

	var total int64
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok || !p.Available() {
			name := fmt.Sprintf("#%d", line.ProductID)
			if ok {
				name = p.Name
			}
			return nil, apperror.NotFound("product %s is no longer available", name)
		}
		if line.Quantity > p.Stock {
			return nil, apperror.InsufficientStock(p.ID, p.Name, p.Stock, line.Quantity)
		}

		total += p.Price * int64(line.Quantity)
		items = append(items, OrderItem{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Price:     p.Price,
		})
	}

	address, err := resolveShippingAddress(tx, userID, shippingAddress)
	if err != nil {
		return nil, err
	}

	order := Order{
		UserID:          userID,
		TotalAmount:     total,
		Status:          OrderStatusPaid,
		ShippingAddress: address,
	}
	if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := tx.Omit("Product").Create(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}
	order.Items = items

	for _, item := range items {
		if err := decrementStock(tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Where("cart_id = ?", c.ID).Delete(&cart.CartItem{}).Error; err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	history := OrderStatusHistory{
		OrderID:       order.ID,
		Status:        OrderStatusPaid,
		Comment:       "Order placed",
		ChangedBy:     userID,
		ChangedByRole: "USER",
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to create status history: %w", err)
	}

	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (s *Service) ListOrders(ctx context.Context, userID uint, req *OrderListRequest) (*OrderListResponse, error) {
	scoped := *req
	scoped.UserID = userID
	scoped.SortBy = "created_at"
	scoped.SortOrder = "desc"
	return s.list(ctx, &scoped, false)
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*OrderResponse, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return toResponse(&order), nil
}

// ListAllOrders returns orders of every user for admins
func (s *Service) ListAllOrders(ctx context.Context, req *OrderListRequest) (*OrderListResponse, error) {
	return s.list(ctx, req, true)
}

// GetOrderForAdmin returns any order with its buyer and status history
func (s *Service) GetOrderForAdmin(ctx context.Context, orderID uint) (*OrderResponse, error) {
	db := s.db.WithContext(ctx)

	var order Order
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	resp := toResponse(&order)
	resp.StatusHistory = order.StatusHistory
	customers, err := loadCustomers(db, []uint{order.UserID})
	if err != nil {
		return nil, err
	}
	resp.Customer = customers[order.UserID]
	return resp, nil
}

// CountByStatus returns how many orders are in status
func (s *Service) CountByStatus(ctx context.Context, status string) (int64, error) {
	st, err := ParseStatus(strings.ToUpper(status))
	if err != nil {
		return 0, apperror.InvalidArgument("%v", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Order{}).Where("status = ?", st).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// UpdateStatus moves an order along the status graph. Cancelling puts the
// ordered quantities back into stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, req *UpdateStatusRequest, actor Actor) (*OrderResponse, error) {
	next, err := ParseStatus(strings.ToUpper(req.Status))
	if err != nil {
		return nil, apperror.InvalidArgument("%v", err)
	}

	var from OrderStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("order %d not found", orderID)
			}
			return fmt.Errorf("failed to find order: %w", err)
		}

		from = order.Status
		if !from.CanTransitionTo(next) {
			return apperror.InvalidTransition(string(from), string(next))
		}

		if next == OrderStatusCancelled {
			if err := restoreStock(tx, orderID); err != nil {
				return err
			}
		}

		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		history := OrderStatusHistory{
			OrderID:       orderID,
			FromStatus:    from,
			Status:        next,
			Comment:       req.Comment,
			ChangedBy:     actor.ID,
			ChangedByRole: actor.Role,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     from,
		"to":       next,
		"actor_id": actor.ID,
	}).Info("order status changed")

	s.publish(ctx, events.OrderStatusChanged, events.OrderStatusChangedEvent{
		OrderID:   orderID,
		From:      string(from),
		To:        string(next),
		ChangedBy: actor.ID,
		ChangedAt: time.Now().UTC(),
	})

	return s.GetOrderForAdmin(ctx, orderID)
}

func (s *Service) list(ctx context.Context, req *OrderListRequest, withCustomers bool) (*OrderListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit)
	db := s.db.WithContext(ctx)

	query := db.Model(&Order{})
	if req.Status != "" {
		st, err := ParseStatus(strings.ToUpper(req.Status))
		if err != nil {
			return nil, apperror.InvalidArgument("%v", err)
		}
		query = query.Where("status = ?", st)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order(s.buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(pagination.Offset(page, limit)).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	var customers map[uint]*Customer
	if withCustomers && len(orders) > 0 {
		ids := make([]uint, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.UserID)
		}
		if customers, err = loadCustomers(db, ids); err != nil {
			return nil, err
		}
	}

	resp := &OrderListResponse{
		Orders:     make([]OrderResponse, 0, len(orders)),
		Pagination: pagination.New(page, limit, total),
	}
	for i := range orders {
		r := toResponse(&orders[i])
		if customers != nil {
			r.Customer = customers[orders[i].UserID]
		}
		resp.Orders = append(resp.Orders, *r)
	}
	return resp, nil
}

func (s *Service) publish(ctx context.Context, routingKey string, payload interface{}) {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.WithError(err).WithField("routing_key", routingKey).Warn("failed to publish event")
	}
}

func (s *Service) buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"total_amount": true,
		"status":       true,
		"id":           true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id %s", sortBy, sortOrder, sortOrder)
}

// lockProducts locks every product referenced by lines in ascending ID order
// so concurrent checkouts acquire row locks in the same sequence
func lockProducts(tx *gorm.DB, lines []cart.CartItem) (map[uint]*product.Product, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var products []product.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	byID := make(map[uint]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

// decrementStock subtracts quantity only while enough stock remains
func decrementStock(tx *gorm.DB, productID uint, quantity int) error {
	result := tx.Model(&product.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to update product stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var p product.Product
		if err := tx.Select("id", "name", "stock").Where("id = ?", productID).First(&p).Error; err != nil {
			return fmt.Errorf("failed to reload product %d: %w", productID, err)
		}
		return apperror.InsufficientStock(p.ID, p.Name, p.Stock, quantity)
	}
	return nil
}

func restoreStock(tx *gorm.DB, orderID uint) error {
	var items []OrderItem
	if err := tx.Where("order_id = ?", orderID).Order("product_id ASC").Find(&items).Error; err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		err := tx.Model(&product.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to restore stock of product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func resolveShippingAddress(tx *gorm.DB, userID uint, requested string) (string, error) {
	if address := strings.TrimSpace(requested); address != "" {
		return address, nil
	}

	var profile struct {
		Address string
	}
	if err := tx.Table("users").Select("address").Where("id = ?", userID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NotFound("user %d not found", userID)
		}
		return "", fmt.Errorf("failed to load user address: %w", err)
	}
	if address := strings.TrimSpace(profile.Address); address != "" {
		return address, nil
	}
	return "", apperror.InvalidArgument("shipping address is required")
}

func loadCustomers(db *gorm.DB, userIDs []uint) (map[uint]*Customer, error) {
	var rows []Customer
	err := db.Table("users").
		Select("id", "name", "email", "phone").
		Where("id IN ?", userIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	out := make(map[uint]*Customer, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func placedEvent(o *Order) events.OrderPlacedEvent {
	evt := events.OrderPlacedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		Items:       make([]events.OrderPlacedItem, 0, len(o.Items)),
		PlacedAt:    o.CreatedAt,
	}
	for _, item := range o.Items {
		evt.Items = append(evt.Items, events.OrderPlacedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return evt
}

func toResponse(o *Order) *OrderResponse {
	resp := &OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber(),
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
	}
	for i := range o.Items {
		item := &o.Items[i]
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.LineTotal(),
			Product: ProductSummary{
				ID:   item.ProductID,
				SKU:  item.SKU,
				Name: item.Name,
			},
		})
	}
	return resp
}
