// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/infrastructure/database"
	redisconn "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-backend/internal/infrastructure/messaging/rabbitmq"
	"github.com/your-org/storefront-backend/internal/interfaces/http"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/interfaces/http/routes"
	"github.com/your-org/storefront-backend/internal/pkg/events"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("starting")

	shutdownTracer, err := tracer.Init(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := database.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Health(context.Background()); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}

	// Redis backs the cart count cache and rate limiting; both degrade without it
	var redisClient *redis.Client
	if rc, err := redisconn.NewConnection(cfg, log); err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache and rate limiting")
	} else {
		defer rc.Close()
		redisClient = rc.GetClient()
	}

	migration := database.NewMigration(db.GetDB(), log)
	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("Index creation failed")
	}
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.WithError(err).Warn("Data seeding failed")
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Messaging.RabbitMQURL != "" {
		p, err := rabbitmq.NewPublisher(cfg, log)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, order events will not be published")
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	if cfg.Flow.Enabled {
		if err := middleware.InitFlowControl(cfg); err != nil {
			log.Fatalf("Failed to initialize flow control: %v", err)
		}
	}

	services := routes.NewServices(cfg, db.GetDB(), redisClient, publisher, log)
	server := http.NewServer(cfg, db.GetDB(), redisClient, services, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := shutdownTracer(ctx); err != nil {
		log.WithError(err).Warn("tracer shutdown failed")
	}

	log.Info("server shutdown completed")
}
