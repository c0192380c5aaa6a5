package main

import (
	"log"
	"os"
	"strconv"

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

// defaultWearThresholdMM gates retread eligibility when TIRE_WEAR_THRESHOLD_MM
// is not configured. Brazilian regulation floors truck tread at 1.6 mm;
// fleets send casings out well before that.
const defaultWearThresholdMM = 3.0

func wearThreshold() float64 {
	raw := os.Getenv("TIRE_WEAR_THRESHOLD_MM")
	if raw == "" {
		return defaultWearThresholdMM
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		logrus.Warnf("Invalid TIRE_WEAR_THRESHOLD_MM %q, using default %.1f", raw, defaultWearThresholdMM)
		return defaultWearThresholdMM
	}
	return value
}

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

	if err := db.AutoMigrate(&models.Tire{}, &models.TireHistoryEntry{}, &models.MaintenanceRecord{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Kafka producer for lifecycle events
	producer, err := events.NewProducer(os.Getenv("KAFKA_BROKER"))
	if err != nil {
		log.Fatal("Failed to initialize Kafka producer:", err)
	}
	defer producer.Close()

	// Initialize the lifecycle engine
	engine := lifecycle.NewEngine(db, producer, wearThreshold())
	logrus.Infof("Tire lifecycle engine ready, wear threshold %.1f mm", engine.WearThreshold())

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
		utils.OKResponse(c, "Tire service is healthy", nil)
	})

	operational := authMiddleware.RequireRole(models.RoleAdmin, models.RoleMechanic)

	tires := router.Group("/tires")
	tires.Use(authMiddleware.RequireAuth())
	{
		tires.POST("/", authMiddleware.RequireRole(models.RoleAdmin), handleCreateTire(db))
		tires.GET("/", handleListTires(db))
		tires.GET("/:id", handleGetTire(db))
		tires.PUT("/:id", authMiddleware.RequireRole(models.RoleAdmin), handleUpdateTire(db))
		tires.GET("/:id/history", handleGetTireHistory(db))

		// Lifecycle transitions
		tires.POST("/:id/wear", operational, handleUpdateWear(engine))
		tires.POST("/:id/retread/send", operational, handleSendToRetread(engine))
		tires.POST("/:id/retread/return", operational, handleReturnFromRetread(engine))
		tires.POST("/:id/scrap", operational, handleScrapTire(engine))

		// Maintenance log (append-only)
		tires.POST("/:id/maintenance", operational, handleCreateMaintenanceRecord(db))
		tires.GET("/:id/maintenance", handleListTireMaintenance(db))
	}

	maintenance := router.Group("/maintenance")
	maintenance.Use(authMiddleware.RequireAuth())
	{
		maintenance.GET("/", handleListMaintenance(db))
	}

	// Start server
	port := os.Getenv("TIRE_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Tire service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start tire service:", err)
	}
}
