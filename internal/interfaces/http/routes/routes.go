// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/admin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/infrastructure/storage"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/events"
	"github.com/your-org/storefront-backend/internal/pkg/pdf"
	"gorm.io/gorm"
)

// Services groups the domain services behind the HTTP handlers
type Services struct {
	User      *user.Service
	UserAdmin *user.AdminService
	Admin     *admin.Service
	Product   *product.Service
	Category  *product.CategoryService
	Cart      *cart.Service
	Order     *order.Service
	PDF       *pdf.Service
}

// NewServices wires every domain service. redisClient may be nil.
func NewServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher events.Publisher, logger *logrus.Logger) *Services {
	cartService := cart.NewService(db, redisClient, cfg, logger)
	return &Services{
		User:      user.NewService(db, cfg, logger),
		UserAdmin: user.NewAdminService(db, cfg),
		Admin:     admin.NewService(db, cfg, logger),
		Product:   product.NewService(db, storage.NewLocalStore(cfg), cfg, logger),
		Category:  product.NewCategoryService(db, cfg),
		Cart:      cartService,
		Order:     order.NewService(db, cfg, cartService, publisher, logger),
		PDF:       pdf.NewService(cfg),
	}
}

// SetupRoutes sets up all API routes
func SetupRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	SetupAuthRoutes(rg, svc, cfg)
	SetupCatalogRoutes(rg, svc)
	SetupCartRoutes(rg, svc, cfg)
	SetupOrderRoutes(rg, svc, cfg)
	SetupAdminRoutes(rg, svc, cfg)
}

// SetupAuthRoutes sets up authentication and profile routes
func SetupAuthRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(svc.User, svc.Admin)
	profileHandler := handlers.NewUserProfileHandler(svc.User)

	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.RefreshToken)
		authGroup.POST("/logout", middleware.AuthMiddleware(cfg), authHandler.Logout)
	}

	profile := rg.Group("/profile")
	profile.Use(middleware.AuthMiddleware(cfg), middleware.RequireRole(auth.RoleUser))
	{
		profile.GET("", profileHandler.GetProfile)
		profile.PUT("", profileHandler.UpdateProfile)
	}

	adminAuth := rg.Group("/admin/auth")
	{
		adminAuth.POST("/signup", authHandler.AdminSignup)
		adminAuth.POST("/login", authHandler.AdminLogin)
		adminAuth.POST("/refresh", authHandler.AdminRefreshToken)
	}
}

// SetupCatalogRoutes sets up public product and category routes
func SetupCatalogRoutes(rg *gin.RouterGroup, svc *Services) {
	productHandler := handlers.NewProductHandler(svc.Product)
	categoryHandler := handlers.NewCategoryHandler(svc.Category)

	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
	}

	categories := rg.Group("/categories")
	{
		categories.GET("", categoryHandler.GetCategories)
		categories.GET("/:id", categoryHandler.GetCategory)
	}
}

// SetupCartRoutes sets up cart routes
func SetupCartRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	cartHandler := handlers.NewCartHandler(svc.Cart)

	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.AuthMiddleware(cfg), middleware.RequireRole(auth.RoleUser))
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.GET("/count", cartHandler.GetCartCount)
		cartGroup.POST("/items", cartHandler.AddToCart)
		cartGroup.PUT("/items/:productId", cartHandler.UpdateCartItem)
		cartGroup.DELETE("/items/:productId", cartHandler.RemoveFromCart)
	}
}

// SetupOrderRoutes sets up checkout and order history routes
func SetupOrderRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	orderHandler := handlers.NewOrderHandler(svc.Order)
	invoiceHandler := handlers.NewInvoiceHandler(svc.Order, svc.PDF)

	checkout := []gin.HandlerFunc{orderHandler.Checkout}
	if cfg.Flow.Enabled {
		checkout = append([]gin.HandlerFunc{middleware.FlowControl(cfg.Flow.ResourceName)}, checkout...)
	}

	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg), middleware.RequireRole(auth.RoleUser))
	{
		orders.GET("", orderHandler.GetOrders)
		orders.POST("/checkout", checkout...)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/invoice", invoiceHandler.GenerateInvoice)
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	productHandler := handlers.NewProductHandler(svc.Product)
	categoryHandler := handlers.NewCategoryHandler(svc.Category)
	orderHandler := handlers.NewOrderHandler(svc.Order)
	invoiceHandler := handlers.NewInvoiceHandler(svc.Order, svc.PDF)
	userAdminHandler := handlers.NewUserAdminHandler(svc.UserAdmin)

	adminGroup := rg.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg), middleware.RequireRole(auth.RoleAdmin))

	products := adminGroup.Group("/products")
	{
		products.GET("", productHandler.AdminGetProducts)
		products.POST("", productHandler.AdminCreateProduct)
		products.GET("/:id", productHandler.AdminGetProduct)
		products.PUT("/:id", productHandler.AdminUpdateProduct)
		products.DELETE("/:id", productHandler.AdminDeleteProduct)
	}

	categories := adminGroup.Group("/categories")
	{
		categories.GET("", categoryHandler.GetCategories)
		categories.POST("", categoryHandler.AdminCreateCategory)
		categories.GET("/:id", categoryHandler.GetCategory)
		categories.PUT("/:id", categoryHandler.AdminUpdateCategory)
		categories.DELETE("/:id", categoryHandler.AdminDeleteCategory)
	}

	orders := adminGroup.Group("/orders")
	{
		orders.GET("", orderHandler.AdminGetOrders)
		orders.GET("/count/:status", orderHandler.AdminCountOrders)
		orders.GET("/:id", orderHandler.AdminGetOrder)
		orders.GET("/:id/invoice", invoiceHandler.AdminGenerateInvoice)
		orders.PUT("/:id/status", orderHandler.AdminUpdateOrderStatus)
	}

	users := adminGroup.Group("/users")
	{
		users.GET("", userAdminHandler.GetUsers)
		users.GET("/export", userAdminHandler.ExportUsers)
		users.GET("/:id", userAdminHandler.GetUser)
		users.DELETE("/:id", userAdminHandler.DeleteUser)
	}
}
