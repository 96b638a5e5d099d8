package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/events"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/testutil"
	"gorm.io/gorm"
)

type publishedEvent struct {
	routingKey string
	payload    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, payload: payload})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	db        *gorm.DB
	carts     *cart.Service
	orders    *Service
	publisher *recordingPublisher
	userID    uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&user.User{},
		&product.Category{}, &product.Product{}, &product.ProductImage{}, &product.ProductCategory{},
		&cart.Cart{}, &cart.CartItem{},
		&Order{}, &OrderItem{}, &OrderStatusHistory{},
	)
	cfg := testutil.Config()
	log := logger.Discard()

	u := user.User{Email: "jane@example.com", Password: "x", Name: "Jane Doe", Address: "12 Elm Street", Phone: "555-0100"}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&cart.Cart{UserID: u.ID}).Error)

	carts := cart.NewService(db, nil, cfg, log)
	publisher := &recordingPublisher{}
	return &fixture{
		db:        db,
		carts:     carts,
		orders:    NewService(db, cfg, carts, publisher, log),
		publisher: publisher,
		userID:    u.ID,
	}
}

func (f *fixture) product(t *testing.T, sku string, price int64, stock int) *product.Product {
	t.Helper()
	p := &product.Product{SKU: sku, Name: "Product " + sku, Price: price, Stock: stock, IsPublished: true}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) stock(t *testing.T, id uint) int {
	t.Helper()
	var p product.Product
	require.NoError(t, f.db.First(&p, id).Error)
	return p.Stock
}

func (f *fixture) add(t *testing.T, productID uint, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), f.userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) checkout(t *testing.T) *OrderResponse {
	t.Helper()
	o, err := f.orders.Checkout(context.Background(), f.userID, &CheckoutRequest{})
	require.NoError(t, err)
	return o
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)
	b := f.product(t, "B", 1500, 3)

	f.add(t, a.ID, 2)
	f.add(t, b.ID, 1)

	o, err := f.orders.Checkout(ctx, f.userID, &CheckoutRequest{ShippingAddress: "  1 Main Road  "})
	require.NoError(t, err)

	assert.Equal(t, int64(2500), o.TotalAmount)
	assert.Equal(t, OrderStatusPaid, o.Status)
	assert.Equal(t, "1 Main Road", o.ShippingAddress)
	require.Len(t, o.Items, 2)
	assert.Equal(t, a.ID, o.Items[0].Product.ID)
	assert.Equal(t, int64(500), o.Items[0].Price)
	assert.Equal(t, int64(1000), o.Items[0].LineTotal)
	assert.Equal(t, "B", o.Items[1].Product.SKU)
	assert.Regexp(t, `^ORD-\d{8}-\d{5}$`, o.OrderNumber)

	assert.Equal(t, 8, f.stock(t, a.ID))
	assert.Equal(t, 2, f.stock(t, b.ID))

	c, err := f.carts.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, c.Items, "checkout empties the cart")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.OrderPlaced, f.publisher.events[0].routingKey)
	placed, ok := f.publisher.events[0].payload.(events.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, o.ID, placed.OrderID)
	assert.Len(t, placed.Items, 2)
}

func TestCheckoutFreezesPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 1)
	o := f.checkout(t)

	require.NoError(t, f.db.Model(a).Update("price", 9999).Error)

	got, err := f.orders.GetOrder(ctx, f.userID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Items[0].Price)
	assert.Equal(t, int64(500), got.TotalAmount)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)
	b := f.product(t, "B", 1500, 3)

	f.add(t, a.ID, 2)
	f.add(t, b.ID, 1)
	require.NoError(t, f.db.Model(b).Update("stock", 0).Error)

	_, err := f.orders.Checkout(ctx, f.userID, &CheckoutRequest{})
	var stockErr *apperror.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 1, stockErr.Requested)

	var orders int64
	require.NoError(t, f.db.Model(&Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Equal(t, 10, f.stock(t, a.ID), "no partial decrement")

	c, err := f.carts.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2, "cart is left intact")
	assert.Empty(t, f.publisher.events)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Checkout(context.Background(), f.userID, &CheckoutRequest{})
	assert.True(t, apperror.Is(err, apperror.KindEmptyCart))
}

func TestCheckoutUnavailableProduct(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 1)
	require.NoError(t, f.db.Model(a).Update("is_deleted", true).Error)

	_, err := f.orders.Checkout(context.Background(), f.userID, &CheckoutRequest{})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestCheckoutShippingAddressFallback(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 500, 10)

	f.add(t, a.ID, 1)
	o := f.checkout(t)
	assert.Equal(t, "12 Elm Street", o.ShippingAddress)

	require.NoError(t, f.db.Model(&user.User{}).Where("id = ?", f.userID).Update("address", "").Error)
	f.add(t, a.ID, 1)
	_, err := f.orders.Checkout(context.Background(), f.userID, &CheckoutRequest{})
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))
}

func TestCheckoutPublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 1)

	o := f.checkout(t)
	assert.NotZero(t, o.ID)
}

func TestCheckoutResponseSurvivesFailedReload(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 2)

	err := f.db.Callback().Query().Before("gorm:query").Register("fail_order_reads", func(db *gorm.DB) {
		if db.Statement.Table == "orders" {
			db.AddError(errors.New("orders table unavailable"))
		}
	})
	require.NoError(t, err)

	o, err := f.orders.Checkout(context.Background(), f.userID, &CheckoutRequest{})
	require.NoError(t, err, "a committed order is reported as placed")
	assert.NotZero(t, o.ID)
	assert.NotEmpty(t, o.OrderNumber)
	assert.Equal(t, int64(1000), o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.NotZero(t, o.Items[0].ID)
	assert.Equal(t, 8, f.stock(t, a.ID))

	require.NoError(t, f.db.Callback().Query().Remove("fail_order_reads"))
	stored, err := f.orders.GetOrder(context.Background(), f.userID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, stored.OrderNumber)
	assert.Equal(t, o.Items, stored.Items)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := f.product(t, "LAMP", 500, 1)

	const shoppers = 4
	userIDs := make([]uint, shoppers)
	for i := range userIDs {
		u := user.User{Email: fmt.Sprintf("shopper%d@example.com", i), Password: "x", Name: "Shopper", Address: "1 Main Road"}
		require.NoError(t, f.db.Create(&u).Error)
		require.NoError(t, f.db.Create(&cart.Cart{UserID: u.ID}).Error)
		_, err := f.carts.AddItem(ctx, u.ID, lamp.ID, 1)
		require.NoError(t, err)
		userIDs[i] = u.ID
	}

	errs := make([]error, shoppers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range userIDs {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			<-start
			_, errs[i] = f.orders.Checkout(ctx, id, &CheckoutRequest{})
		}(i, id)
	}
	close(start)
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.True(t, apperror.Is(err, apperror.KindInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 0, f.stock(t, lamp.ID))

	var orders int64
	require.NoError(t, f.db.Model(&Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestDecrementStockRefusesToGoNegative(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "LAMP", 500, 2)

	err := decrementStock(f.db, lamp.ID, 3)
	var stockErr *apperror.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, lamp.ID, stockErr.ProductID)
	assert.Equal(t, "Product LAMP", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, f.stock(t, lamp.ID))

	require.NoError(t, decrementStock(f.db, lamp.ID, 2))
	assert.Equal(t, 0, f.stock(t, lamp.ID))
}

func TestGetOrderIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 1)
	o := f.checkout(t)

	_, err := f.orders.GetOrder(ctx, f.userID+1, o.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	list, err := f.orders.ListOrders(ctx, f.userID+1, &OrderListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)

	list, err = f.orders.ListOrders(ctx, f.userID, &OrderListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Nil(t, list.Orders[0].Customer)
}

func TestUpdateStatusFollowsGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := Actor{ID: 1, Role: "ADMIN"}
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 1)
	o := f.checkout(t)

	_, err := f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "DELIVERED"}, admin)
	assert.True(t, apperror.Is(err, apperror.KindInvalidTransition))

	updated, err := f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "shipped", Comment: "UPS"}, admin)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, updated.Status)

	updated, err = f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "DELIVERED"}, admin)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, updated.Status)
	require.NotNil(t, updated.Customer)
	assert.Equal(t, "jane@example.com", updated.Customer.Email)

	require.Len(t, updated.StatusHistory, 3)
	assert.Equal(t, OrderStatusPaid, updated.StatusHistory[0].Status)
	assert.Equal(t, "USER", updated.StatusHistory[0].ChangedByRole)
	assert.Equal(t, OrderStatusPaid, updated.StatusHistory[1].FromStatus)
	assert.Equal(t, "UPS", updated.StatusHistory[1].Comment)
	assert.Equal(t, "ADMIN", updated.StatusHistory[2].ChangedByRole)

	_, err = f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "CANCELLED"}, admin)
	assert.True(t, apperror.Is(err, apperror.KindInvalidTransition), "delivered is terminal")

	_, err = f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "REFUNDED"}, admin)
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))

	_, err = f.orders.UpdateStatus(ctx, 9999, &UpdateStatusRequest{Status: "SHIPPED"}, admin)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	var changed int
	for _, e := range f.publisher.events {
		if e.routingKey == events.OrderStatusChanged {
			changed++
		}
	}
	assert.Equal(t, 2, changed)
}

func TestCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)
	f.add(t, a.ID, 4)
	o := f.checkout(t)
	require.Equal(t, 6, f.stock(t, a.ID))

	updated, err := f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "CANCELLED"}, Actor{ID: 1, Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, updated.Status)
	assert.Equal(t, 10, f.stock(t, a.ID))

	_, err = f.orders.UpdateStatus(ctx, o.ID, &UpdateStatusRequest{Status: "CANCELLED"}, Actor{ID: 1, Role: "ADMIN"})
	assert.True(t, apperror.Is(err, apperror.KindInvalidTransition))
	assert.Equal(t, 10, f.stock(t, a.ID), "stock is restored only once")
}

func TestListAllOrdersAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 500, 10)

	f.add(t, a.ID, 1)
	first := f.checkout(t)
	f.add(t, a.ID, 2)
	f.checkout(t)

	_, err := f.orders.UpdateStatus(ctx, first.ID, &UpdateStatusRequest{Status: "SHIPPED"}, Actor{ID: 1, Role: "ADMIN"})
	require.NoError(t, err)

	all, err := f.orders.ListAllOrders(ctx, &OrderListRequest{SortBy: "total_amount", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, all.Orders, 2)
	assert.Equal(t, int64(500), all.Orders[0].TotalAmount)
	require.NotNil(t, all.Orders[0].Customer)
	assert.Equal(t, "Jane Doe", all.Orders[0].Customer.Name)

	paid, err := f.orders.ListAllOrders(ctx, &OrderListRequest{Status: "paid"})
	require.NoError(t, err)
	require.Len(t, paid.Orders, 1)
	assert.Equal(t, int64(1000), paid.Orders[0].TotalAmount)

	count, err := f.orders.CountByStatus(ctx, "shipped")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = f.orders.CountByStatus(ctx, "PENDING")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.orders.CountByStatus(ctx, "lost")
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))

	_, err = f.orders.ListAllOrders(ctx, &OrderListRequest{Status: "lost"})
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))
}
