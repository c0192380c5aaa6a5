package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dbifleet/go-tire-fleet-system/shared/config"
	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/provision"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize Redis for token sessions and the setup gate
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Setup gate, read side only. Navigation decisions depend on it.
	gate, err := provision.NewGate(utils.GetRedisClient())
	if err != nil {
		log.Fatal("Failed to initialize provisioning gate:", err)
	}
	defer gate.Close()

	// Initialize authentication middleware
	authMiddleware, err := middleware.NewAuthMiddleware(
		os.Getenv("AWS_REGION"),
		os.Getenv("COGNITO_USER_POOL_ID"),
	)
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", nil)
	})

	// Authentication routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", handleLogin(db, gate))
		auth.POST("/register", handleRegister(db))
		auth.POST("/refresh", handleRefreshToken())
		auth.GET("/verify", authMiddleware.RequireAuth(), handleVerifyToken())
		auth.POST("/navigate", authMiddleware.RequireAuth(), handleNavigate(gate))
		auth.POST("/logout", authMiddleware.RequireAuth(), handleLogout())
		auth.GET("/sessions", authMiddleware.RequireAuth(), handleGetSessions())
		auth.DELETE("/sessions/:session_id", authMiddleware.RequireAuth(), handleRevokeSession())
		auth.POST("/confirm-email", authMiddleware.RequireAuth(),
			authMiddleware.RequireRole(models.RoleSuperAdmin), handleConfirmEmail())
	}

	// Collaborator management
	users := router.Group("/users")
	users.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin))
	{
		users.GET("/", handleGetUsers(db))
		users.GET("/:id", handleGetUser(db))
		users.PUT("/:id", handleUpdateUser(db))
		users.DELETE("/:id", handleDeleteUser(db))
	}

	// Start server
	port := os.Getenv("AUTH_SERVICE_PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("Auth service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start auth service:", err)
	}
}
