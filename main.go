package main

import (
	"log"
	"net/http"

	"github.com/campusfind/campusfind-api/config"
	"github.com/campusfind/campusfind-api/controllers"
	"github.com/campusfind/campusfind-api/middleware"
	"github.com/campusfind/campusfind-api/models"
	"github.com/campusfind/campusfind-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Basic logging
	log.Println("Starting CampusFind API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.Item{},
		&models.Message{},
		&models.MessageImage{},
		&models.Report{},
		&models.ReportedMessage{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Initialize services
	s3Service, err := services.InitS3Service()
	if err != nil {
		log.Fatalf("Failed to initialize S3 service: %v", err)
	}
	imageService := services.InitImageService(s3Service)
	directory := services.InitUserDirectory(db)
	items := services.InitItemDirectory(db)
	ledger := services.InitModerationLedger(db)
	gate := services.InitNotificationGate(services.NewSMTPMailer(cfg))
	services.InitMessageService(db, directory, items, ledger, imageService, gate)

	// Initialize Gin router
	router := setupRouter(cfg)

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter configures all routes and middleware
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Authenticated routes
		auth := v1.Group("")
		auth.Use(middleware.EnsureValidToken(cfg))
		{
			auth.POST("/users", controllers.CreateUser)
			auth.PUT("/users/me/preferences", controllers.UpdatePreferences)
			auth.PUT("/users/me/blocks/:userId", controllers.BlockUser)
			auth.DELETE("/users/me/blocks/:userId", controllers.UnblockUser)

			auth.POST("/messages", controllers.SendMessage)
			auth.DELETE("/messages/:id", controllers.DeleteMessage)
			auth.GET("/conversations", controllers.ListConversations)
			auth.POST("/conversations/:userId/messages", controllers.StartConversation)
			auth.GET("/conversations/:userId/messages", controllers.GetConversationMessages)
			auth.DELETE("/conversations/:userId", controllers.ClearConversation)

			auth.POST("/reports", controllers.CreateReport)
			auth.GET("/reports", controllers.ListReports)
			auth.PUT("/reports/:id", controllers.ReviewReport)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "CampusFind API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
