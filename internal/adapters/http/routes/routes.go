package routes

import (
	"time"

	"coop-ledger/internal/adapters/http/handlers"
	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/config"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Services are the application services the HTTP layer exposes
type Services struct {
	Auth    *services.AuthService
	Users   *services.UserService
	Rates   *services.RateService
	Savings *services.SavingsService
	Loans   *services.LoanService
	Reports *services.ReportService
}

// Setup configures all routes for the application
func Setup(app *fiber.App, cfg *config.Config, signer *jwt.Signer, hub *pubsub.Hub, svc Services) {
	healthHandler := handlers.NewHealthHandler(hub.Subscribers)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users, cfg)
	userHandler := handlers.NewUserHandler(svc.Users)
	rateHandler := handlers.NewRateHandler(svc.Rates)
	savingsHandler := handlers.NewSavingsHandler(svc.Savings)
	loanHandler := handlers.NewLoanHandler(svc.Loans)
	reportHandler := handlers.NewReportHandler(svc.Reports)
	streamHandler := handlers.NewStreamHandler(hub)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(signer)
	noStore := middleware.NoStore()

	setupAuthRoutes(apiV1.Group("/auth", noStore), authHandler, auth)
	setupUserRoutes(apiV1.Group("/users", auth, noStore), userHandler)
	setupRateRoutes(apiV1.Group("/rates", auth), rateHandler)
	setupSavingsRoutes(apiV1.Group("/savings", auth, noStore), savingsHandler)
	setupLoanRoutes(apiV1.Group("/loans", auth, noStore), loanHandler)
	setupReportRoutes(apiV1.Group("/reports", auth, noStore), reportHandler)

	apiV1.Get("/stream", auth, noStore, streamHandler.Stream)
}

func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, auth fiber.Handler) {
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	router.Get("/me", auth, handler.Me)
	router.Post("/logout-all", auth, handler.LogoutAll)
	router.Put("/password", auth, handler.ChangePassword)
}

// setupUserRoutes configures user management routes. Users may read themselves; everything else is admin.
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/:id", handler.GetUser)

	admin := router.Group("", middleware.AdminOnly())
	admin.Get("/", handler.ListUsers)
	admin.Post("/", handler.CreateUser)
	admin.Put("/:id", handler.UpdateUser)
	admin.Delete("/:id", handler.DeleteUser)
}

func setupRateRoutes(router fiber.Router, handler *handlers.RateHandler) {
	router.Get("/", middleware.PrivateCache(time.Minute), handler.ListRates)

	admin := router.Group("", middleware.AdminOnly())
	admin.Post("/", handler.CreateRate)
	admin.Put("/:id", handler.UpdateRate)
	admin.Delete("/:id", handler.DeleteRate)
}

// setupSavingsRoutes: static paths are registered before /:id
func setupSavingsRoutes(router fiber.Router, handler *handlers.SavingsHandler) {
	router.Get("/my", handler.GetMySavings)
	router.Post("/deposit", handler.Deposit)
	router.Post("/withdraw", handler.Withdraw)
	router.Get("/", middleware.StaffOnly(), handler.ListSavings)

	router.Get("/:id", handler.GetSavings)
	router.Get("/:id/entries", handler.GetHistory)
	router.Delete("/:id", middleware.AdminOnly(), handler.DeleteSavings)
	router.Delete("/:id/entries/:entry_id", middleware.AdminOnly(), handler.DeleteEntry)
}

func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	router.Get("/my", handler.GetMyLoans)
	router.Post("/", handler.ApplyLoan)
	router.Get("/", middleware.StaffOnly(), handler.ListLoans)

	router.Get("/:id", handler.GetLoan)
	router.Put("/:id/status", middleware.StaffOnly(), handler.UpdateLoanStatus)
	router.Put("/:id/installments/:installment_id/status", middleware.StaffOnly(), handler.UpdateInstallmentStatus)
	router.Delete("/:id", middleware.AdminOnly(), handler.DeleteLoan)
}

func setupReportRoutes(router fiber.Router, handler *handlers.ReportHandler) {
	router.Get("/summary", middleware.StaffOnly(), handler.GetSummary)
	router.Get("/summary.csv", middleware.StaffOnly(), handler.ExportSummary)
	router.Get("/member/:id", handler.GetMemberSummary)
}
