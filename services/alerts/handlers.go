package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

// handleListAlerts lists the tenant's alerts, newest first
func handleListAlerts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := middleware.GetTenantIDFromContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant information not found")
			return
		}

		q := db.Where("tenant_id = ?", tenantID)
		if c.Query("unacknowledged") == "true" {
			q = q.Where("acknowledged = ?", false)
		}
		if severity := c.Query("severity"); severity != "" {
			q = q.Where("severity = ?", severity)
		}

		var alerts []models.Alert
		if err := q.Order("created_at DESC").Limit(200).Find(&alerts).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch alerts")
			return
		}

		utils.OKResponse(c, "Alerts retrieved successfully", alerts)
	}
}

// handleAcknowledgeAlert marks an alert as seen
func handleAcknowledgeAlert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := middleware.GetTenantIDFromContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant information not found")
			return
		}

		var alert models.Alert
		if err := db.Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&alert).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Alert not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch alert")
			}
			return
		}

		if !alert.Acknowledged {
			if err := db.Model(&alert).Update("acknowledged", true).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to acknowledge alert")
				return
			}
			alert.Acknowledged = true
		}

		utils.OKResponse(c, "Alert acknowledged", alert)
	}
}

// handleGetDeliveryStatus reports webhook connectivity
func handleGetDeliveryStatus(client *WebhookClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Delivery status retrieved successfully", client.GetStatus())
	}
}

// handleReconnectWebhook re-probes the webhook endpoint
func handleReconnectWebhook(client *WebhookClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := client.Reconnect(); err != nil {
			utils.InternalServerErrorResponse(c, "Failed to reconnect: "+err.Error())
			return
		}

		utils.OKResponse(c, "Webhook endpoint reachable", nil)
	}
}
