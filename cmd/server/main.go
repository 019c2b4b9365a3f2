package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/adapters/http/routes"
	"coop-ledger/internal/adapters/persistence/memory"
	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/config"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/pubsub"
	"coop-ledger/internal/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"

	_ "coop-ledger/docs" // Swagger docs
)

// @title Coop Ledger API
// @version 1.0
// @description Savings and loan ledger for a member cooperative
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open ledger store: %v", err)
	}
	defer config.CloseDatabase()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.NewSeeder(store, cfg.Seed).Run(ctx); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	// Change notifications: SSE subscribers read the hub, AMQP gets a copy
	hub := pubsub.NewHub(pubsub.DefaultBuffer)
	defer hub.Close()

	producer := rabbitmq.Connect(cfg.Events.AMQPURL, cfg.Events.Exchange)
	defer producer.Close()
	rabbitmq.Forward(ctx, hub, producer)

	signer := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTokenMins, cfg.JWT.RefreshTokenDays)

	svc := routes.Services{
		Auth:    services.NewAuthService(store.Users, store.RefreshTokens, signer),
		Users:   services.NewUserService(store.Users, hub),
		Rates:   services.NewRateService(store.Rates, hub),
		Savings: services.NewSavingsService(store.Savings, store.Users, hub),
		Loans:   services.NewLoanService(store.Loans, store.Users, store.Rates, hub),
		Reports: services.NewReportService(store.Savings, store.Loans),
	}

	cronService := services.NewCronService(services.CronSchedules{
		OverdueScan:    cfg.Jobs.OverdueScan,
		ReportSnapshot: cfg.Jobs.ReportSnapshot,
		Location:       cfg.Jobs.Location,
	}, store.Loans, svc.Reports, svc.Auth, hub)
	if err := cronService.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron jobs: %v", err)
	}
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Coop Ledger API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(app, cfg)
	routes.Setup(app, cfg, signer, hub, svc)

	// Graceful shutdown
	go gracefulShutdown(app, cancel)

	log.Printf("🚀 Server starting on port %s [MODE: %s, STORE: %s]", cfg.Port, cfg.AppMode, cfg.StoreDriver)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// openStore picks the ledger backend
func openStore(cfg *config.Config) (*repositories.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Println("⚠️ Using in-memory store, data is lost on restart")
		return memory.New().Store(), nil
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}
	log.Println("✅ Database migration completed")
	return repositories.NewStore(db), nil
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	cancel()
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
