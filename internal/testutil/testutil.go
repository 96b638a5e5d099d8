// Package testutil builds configuration and databases for package tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config returns a valid configuration with cheap bcrypt and short TTLs
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "storefront-test",
			Version:     "test",
			Environment: "test",
		},
		Server: config.ServerConfig{
			Port:           "0",
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Database: config.DatabaseConfig{
			Driver: "postgres",
			Host:   "localhost",
			Name:   "storefront_test",
			User:   "test",
		},
		Redis: config.RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			CartCountTTL: time.Minute,
		},
		JWT: config.JWTConfig{
			Secret:               "test-secret-that-is-at-least-32-characters",
			Issuer:               "storefront-test",
			AccessTokenExpiry:    15 * time.Minute,
			RefreshTokenExpiry:   time.Hour,
			RefreshTokenRotation: true,
		},
		Security: config.SecurityConfig{
			BcryptCost:         4,
			RateLimitPerMinute: 0,
			AllowAdminSignup:   true,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Storage: config.StorageConfig{
			LocalPath:     "./uploads",
			PublicPrefix:  "/uploads",
			MaxImageBytes: 1 << 20,
		},
		Messaging: config.MessagingConfig{Exchange: "storefront.events"},
		Tracing:   config.TracingConfig{ServiceName: "storefront-test"},
		Flow:      config.FlowConfig{CheckoutQPS: 100, ResourceName: "checkout"},
		Invoice: config.InvoiceConfig{
			CompanyName:    "Storefront Inc.",
			CompanyAddress: "1 Market Street",
			CompanyEmail:   "billing@storefront.test",
			Currency:       "USD",
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

// NewDB opens a private in-memory sqlite database and migrates models into it.
// A single connection is kept so the shared-cache database lives for the test.
func NewDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db
}
