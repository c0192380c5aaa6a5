package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

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

	// Redis backs both the token cache and the setup gate
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	gate, err := provision.NewGate(utils.GetRedisClient())
	if err != nil {
		log.Fatal("Failed to initialize provisioning gate:", err)
	}
	defer gate.Close()

	// Get AWS configuration
	awsRegion := os.Getenv("AWS_REGION")
	cognitoUserPoolID := os.Getenv("COGNITO_USER_POOL_ID")

	if awsRegion == "" || cognitoUserPoolID == "" {
		log.Fatal("AWS_REGION and COGNITO_USER_POOL_ID must be set")
	}

	// Initialize authentication middleware
	authMiddleware, err := middleware.NewAuthMiddleware(awsRegion, cognitoUserPoolID)
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize service clients
	serviceClients := &ServiceClients{
		AuthService:   NewServiceClient(os.Getenv("AUTH_SERVICE_URL")),
		TenantService: NewServiceClient(os.Getenv("TENANT_SERVICE_URL")),
		FleetService:  NewServiceClient(os.Getenv("FLEET_SERVICE_URL")),
		TireService:   NewServiceClient(os.Getenv("TIRE_SERVICE_URL")),
		AlertsService: NewServiceClient(os.Getenv("ALERTS_SERVICE_URL")),
	}

	// Initialize Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})

	// Downstream service health overview
	router.GET("/status", authMiddleware.RequireAuth(), func(c *gin.Context) {
		utils.OKResponse(c, "Service status retrieved", serviceClients.GetServiceStatus())
	})

	// Authentication routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", serviceClients.AuthService.ProxyRequest)
		auth.POST("/register", serviceClients.AuthService.ProxyRequest)
		auth.POST("/refresh", serviceClients.AuthService.ProxyRequest)
		auth.GET("/verify", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.POST("/navigate", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.POST("/logout", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.GET("/sessions", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.DELETE("/sessions/:session_id", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
	}

	// Collaborator management
	users := router.Group("/users")
	users.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin))
	{
		users.GET("/", serviceClients.AuthService.ProxyRequest)
		users.GET("/:id", serviceClients.AuthService.ProxyRequest)
		users.PUT("/:id", serviceClients.AuthService.ProxyRequest)
		users.DELETE("/:id", serviceClients.AuthService.ProxyRequest)
	}

	platformOnly := authMiddleware.RequireRole(models.RoleSuperAdmin)

	// Subscription plans (platform operator console)
	plans := router.Group("/plans")
	plans.Use(authMiddleware.RequireAuth())
	{
		plans.POST("/", platformOnly, serviceClients.TenantService.ProxyRequest)
		plans.GET("/", serviceClients.TenantService.ProxyRequest)
		plans.GET("/:id", serviceClients.TenantService.ProxyRequest)
		plans.PUT("/:id", platformOnly, serviceClients.TenantService.ProxyRequest)
		plans.DELETE("/:id", platformOnly, serviceClients.TenantService.ProxyRequest)
	}

	// Tenant management routes
	tenants := router.Group("/tenants")
	tenants.Use(authMiddleware.RequireAuth())
	{
		tenants.POST("/", platformOnly, serviceClients.TenantService.ProxyRequest)
		tenants.GET("/", platformOnly, serviceClients.TenantService.ProxyRequest)
		tenants.PUT("/:id/status", platformOnly, serviceClients.TenantService.ProxyRequest)
		tenants.DELETE("/:id", platformOnly, serviceClients.TenantService.ProxyRequest)

		tenants.GET("/:id", authMiddleware.RequireTenantAccess(), serviceClients.TenantService.ProxyRequest)
		tenants.PUT("/:id", authMiddleware.RequireTenantManager(), serviceClients.TenantService.ProxyRequest)
		tenants.POST("/:id/setup/complete", authMiddleware.RequireTenantManager(), serviceClients.TenantService.ProxyRequest)
		tenants.GET("/:id/users", authMiddleware.RequireTenantManager(), serviceClients.TenantService.ProxyRequest)
	}

	// Operational routes stay locked until the tenant finishes onboarding.
	// The gate only constrains fleet managers; mechanics and auditors of a
	// provisioned tenant pass through.
	setupGate := authMiddleware.RequireSetupComplete(gate)

	vehicles := router.Group("/vehicles")
	vehicles.Use(authMiddleware.RequireAuth(), setupGate)
	{
		vehicles.POST("/", serviceClients.FleetService.ProxyRequest)
		vehicles.GET("/", serviceClients.FleetService.ProxyRequest)
		vehicles.GET("/:id", serviceClients.FleetService.ProxyRequest)
		vehicles.PUT("/:id", serviceClients.FleetService.ProxyRequest)
		vehicles.DELETE("/:id", serviceClients.FleetService.ProxyRequest)
		vehicles.GET("/:id/positions", serviceClients.FleetService.ProxyRequest)
		vehicles.POST("/:id/assign", serviceClients.FleetService.ProxyRequest)
		vehicles.POST("/:id/odometer", serviceClients.FleetService.ProxyRequest)
	}

	tires := router.Group("/tires")
	tires.Use(authMiddleware.RequireAuth(), setupGate)
	{
		tires.POST("/", serviceClients.TireService.ProxyRequest)
		tires.GET("/", serviceClients.TireService.ProxyRequest)
		tires.GET("/:id", serviceClients.TireService.ProxyRequest)
		tires.PUT("/:id", serviceClients.TireService.ProxyRequest)
		tires.GET("/:id/history", serviceClients.TireService.ProxyRequest)
		tires.POST("/:id/wear", serviceClients.TireService.ProxyRequest)
		tires.POST("/:id/retread/send", serviceClients.TireService.ProxyRequest)
		tires.POST("/:id/retread/return", serviceClients.TireService.ProxyRequest)
		tires.POST("/:id/scrap", serviceClients.TireService.ProxyRequest)
		tires.POST("/:id/release", serviceClients.FleetService.ProxyRequest)
		tires.POST("/:id/maintenance", serviceClients.TireService.ProxyRequest)
		tires.GET("/:id/maintenance", serviceClients.TireService.ProxyRequest)
	}

	// Reports feed the ADMIN and AUDITOR screens
	reports := router.Group("/maintenance")
	reports.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(models.RoleAdmin, models.RoleAuditor), setupGate)
	{
		reports.GET("/", serviceClients.TireService.ProxyRequest)
	}

	// Alerts stay reachable before setup completes; they are part of the
	// onboarding surface.
	alerts := router.Group("/alerts")
	alerts.Use(authMiddleware.RequireAuth())
	{
		alerts.GET("/", serviceClients.AlertsService.ProxyRequest)
		alerts.POST("/:id/ack", serviceClients.AlertsService.ProxyRequest)
	}

	// Start server
	port := os.Getenv("API_GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API Gateway:", err)
	}
}
