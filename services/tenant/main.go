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

	// Initialize Redis for session management and the setup gate
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.Plan{}, &models.Tenant{}, &models.User{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Provisioning gate shared with the gateway via redis
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
		utils.OKResponse(c, "Tenant service is healthy", nil)
	})

	platformOnly := authMiddleware.RequireRole(models.RoleSuperAdmin)

	// Subscription plan management (platform operator only)
	plans := router.Group("/plans")
	plans.Use(authMiddleware.RequireAuth())
	{
		plans.POST("/", platformOnly, handleCreatePlan(db))
		plans.GET("/", handleListPlans(db))
		plans.GET("/:id", handleGetPlan(db))
		plans.PUT("/:id", platformOnly, handleUpdatePlan(db))
		plans.DELETE("/:id", platformOnly, handleDeletePlan(db))
	}

	// Tenant account management
	tenants := router.Group("/tenants")
	tenants.Use(authMiddleware.RequireAuth())
	{
		tenants.POST("/", platformOnly, handleCreateTenant(db))
		tenants.GET("/", platformOnly, handleListTenants(db))

		tenants.GET("/:id", authMiddleware.RequireTenantAccess(), handleGetTenant(db))
		tenants.PUT("/:id", authMiddleware.RequireTenantManager(), handleUpdateTenant(db))
		tenants.PUT("/:id/status", platformOnly, handleUpdateTenantStatus(db))
		tenants.DELETE("/:id", platformOnly, handleDeleteTenant(db))

		// Onboarding
		tenants.POST("/:id/setup/complete", authMiddleware.RequireTenantManager(), handleCompleteSetup(db, gate))

		tenants.GET("/:id/users", authMiddleware.RequireTenantManager(), handleGetTenantUsers(db))
	}

	// Start server
	port := os.Getenv("TENANT_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Tenant service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start tenant service:", err)
	}
}
