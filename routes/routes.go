package routes

import (
	"log"
	"net/http"

	"tahadi/handlers"
	"tahadi/middleware"
	"tahadi/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	categoryHandler *handlers.CategoryHandler,
	boardHandler *handlers.BoardHandler,
	authoringHandler *handlers.AuthoringHandler,
	hub *services.ProgressHub,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Category catalog and stock availability
			categories := protected.Group("/categories")
			{
				categories.GET("", categoryHandler.ListCategories)
				categories.GET("/remaining", categoryHandler.GetRemainingRounds)
			}

			// Board supply and play
			board := protected.Group("/board")
			{
				board.POST("", boardHandler.BuildBoard)
				board.GET("/:jobID", boardHandler.GetBoard)
				board.POST("/:jobID/answer", boardHandler.AnswerQuestion)
			}

			// Question authoring (admin path)
			protected.POST("/authoring/generate", authoringHandler.Generate)
		}
	}

	// WebSocket endpoint for supply/authoring progress events
	router.GET("/ws/jobs/:jobID", func(c *gin.Context) {
		jobID := c.Param("jobID")
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for job %s: %v", jobID, err)
			return
		}

		hub.Subscribe(jobID, conn)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
