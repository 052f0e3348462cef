package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wager-engine/internal/auth"
	"wager-engine/internal/config"
	"wager-engine/internal/database"
	"wager-engine/internal/events"
	"wager-engine/internal/handlers"
	"wager-engine/internal/jobs"
	"wager-engine/internal/ledger"
	"wager-engine/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Event publisher with an audit-log subscriber
	publisher := events.NewPublisher()
	go events.LogEvents(publisher.Subscribe(256))

	// Shared lock table so placement, cancellation and settlement serialize
	// on the same per-pool locks
	locks := services.NewLockTable()
	ledgerClient := ledger.NewGormClient()

	// Initialize services
	marketService := services.NewMarketService(db)
	wagerService := services.NewWagerService(db, ledgerClient, &cfg.Engine, locks, publisher)
	resolutionService := services.NewResolutionService(db, ledgerClient, &cfg.Engine, locks, publisher)

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(marketService, resolutionService, cfg.Engine.PlatformFeeRate)
	wagerHandler := handlers.NewWagerHandler(wagerService)
	accountHandler := handlers.NewAccountHandler(db, ledgerClient)

	// Start settlement retry job so interrupted settlements always finish
	retrier := jobs.NewSettlementRetrier(resolutionService, cfg.Engine.RetryInterval)
	go retrier.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public market routes
	router.GET("/api/markets", marketHandler.GetMarkets)
	router.GET("/api/markets/:id", marketHandler.GetMarketByID)
	router.GET("/api/markets/:id/preview", marketHandler.GetMultiplierPreview)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Market endpoints
		api.POST("/markets", marketHandler.CreateMarket)

		// Bet endpoints
		api.POST("/bets", wagerHandler.PlaceBet)
		api.GET("/bets", wagerHandler.GetMyBets)
		api.GET("/bets/:id", wagerHandler.GetBet)
		api.POST("/bets/:id/cancel", wagerHandler.CancelBet)

		// Balance endpoints
		api.GET("/balances", accountHandler.GetBalances)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(auth.AdminMiddleware())
	{
		admin.POST("/markets/:id/resolve", marketHandler.ResolveMarket)
		admin.POST("/markets/:id/void", marketHandler.VoidMarket)
		admin.GET("/markets/:id/bets", wagerHandler.GetMarketBets)
		admin.POST("/deposits", accountHandler.Deposit)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	retrier.Stop()
	publisher.Close()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
