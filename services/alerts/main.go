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

	if err := db.AutoMigrate(&models.Alert{}, &FailedAlertDelivery{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Kafka consumer for tire events
	consumer, err := NewAlertConsumer(os.Getenv("KAFKA_BROKER"), db)
	if err != nil {
		log.Fatal("Failed to initialize Kafka consumer:", err)
	}
	defer consumer.Close()

	// Webhook delivery client
	webhookClient := NewWebhookClient(os.Getenv("ALERT_WEBHOOK_ENDPOINT"))

	go consumer.Consume(webhookClient)

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
		utils.OKResponse(c, "Alerts service is healthy", nil)
	})

	alerts := router.Group("/alerts")
	alerts.Use(authMiddleware.RequireAuth())
	{
		alerts.GET("/", handleListAlerts(db))
		alerts.POST("/:id/ack", handleAcknowledgeAlert(db))
	}

	// Delivery observability
	delivery := router.Group("/delivery")
	delivery.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin))
	{
		delivery.GET("/status", handleGetDeliveryStatus(webhookClient))
		delivery.POST("/reconnect", handleReconnectWebhook(webhookClient))
	}

	// Start server
	port := os.Getenv("ALERTS_SERVICE_PORT")
	if port == "" {
		port = "8005"
	}

	logrus.Infof("Alerts service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start alerts service:", err)
	}
}
