package main

import (
	"log"

	"tahadi/config"
	"tahadi/handlers"
	"tahadi/middleware"
	"tahadi/models"
	"tahadi/routes"
	"tahadi/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.StockQuestion{},
		&models.QuestionUsage{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	categoryService := services.NewCategoryService(db)
	stockService := services.NewStockService(db)
	supplyService := services.NewSupplyService(stockService, redisClient, cfg)
	ledger := services.NewRedisLedger(redisClient, cfg.LedgerMaxEntries)
	geminiService := services.NewGeminiService(cfg)
	authoringService := services.NewAuthoringService(geminiService, ledger, cfg)

	// Seed the category catalog on first boot
	if err := categoryService.SeedDefaults(); err != nil {
		log.Fatal("Failed to seed categories:", err)
	}

	// Initialize progress hub
	hub := services.NewProgressHub()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, stockService)
	boardHandler := handlers.NewBoardHandler(supplyService, categoryService, hub)
	authoringHandler := handlers.NewAuthoringHandler(authoringService, stockService, categoryService, hub)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, categoryHandler, boardHandler, authoringHandler, hub, cfg.JWTSecret)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
