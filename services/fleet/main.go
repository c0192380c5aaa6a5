package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dbifleet/go-tire-fleet-system/shared/config"
	"github.com/dbifleet/go-tire-fleet-system/shared/events"
	"github.com/dbifleet/go-tire-fleet-system/shared/lifecycle"
	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize Redis for token caching
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.Vehicle{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Kafka producer for mount/dismount events
	producer, err := events.NewProducer(os.Getenv("KAFKA_BROKER"))
	if err != nil {
		log.Fatal("Failed to initialize Kafka producer:", err)
	}
	defer producer.Close()

	// Wear threshold unused here: this engine only runs install/release,
	// which never consult it.
	engine := lifecycle.NewEngine(db, producer, 0)

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
		utils.OKResponse(c, "Fleet service is healthy", nil)
	})

	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)
	operational := authMiddleware.RequireRole(models.RoleAdmin, models.RoleMechanic)

	vehicles := router.Group("/vehicles")
	vehicles.Use(authMiddleware.RequireAuth())
	{
		vehicles.POST("/", adminOnly, handleCreateVehicle(db))
		vehicles.GET("/", handleListVehicles(db))
		vehicles.GET("/:id", handleGetVehicle(db))
		vehicles.PUT("/:id", adminOnly, handleUpdateVehicle(db))
		vehicles.DELETE("/:id", adminOnly, handleDeleteVehicle(db))

		// Slot management
		vehicles.GET("/:id/positions", handleGetPositions(db, engine))
		vehicles.POST("/:id/assign", operational, handleAssignTire(engine))
		vehicles.POST("/:id/odometer", operational, handleUpdateOdometer(db))
	}

	tires := router.Group("/tires")
	tires.Use(authMiddleware.RequireAuth())
	{
		tires.POST("/:id/release", operational, handleReleaseTire(engine))
	}

	// Start server
	port := os.Getenv("FLEET_SERVICE_PORT")
	if port == "" {
		port = "8004"
	}

	logrus.Infof("Fleet service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start fleet service:", err)
	}
}
