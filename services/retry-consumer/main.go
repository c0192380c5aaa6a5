package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gorm.io/gorm"

	"github.com/dbifleet/go-tire-fleet-system/shared/config"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// FailedAlertDelivery mirrors the table written by the alerts consumer.
type FailedAlertDelivery struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EventID      string     `gorm:"not null" json:"event_id"`
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	AlertID      *uuid.UUID `gorm:"type:uuid" json:"alert_id,omitempty"`
	Payload      []byte     `gorm:"type:jsonb;not null" json:"payload"`
	ErrorMessage string     `gorm:"not null" json:"error_message"`
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	Status       string     `gorm:"default:'pending';index" json:"status"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func (FailedAlertDelivery) TableName() string {
	return "failed_alert_deliveries"
}

// RetryConsumer works the failed webhook delivery queue
type RetryConsumer struct {
	db            *gorm.DB
	webhookURL    string
	httpClient    *http.Client
	maxRetries    int
	batchSize     int
	checkInterval time.Duration
}

// NewRetryConsumer creates a retry consumer
func NewRetryConsumer() (*RetryConsumer, error) {
	db, err := config.ConnectDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&FailedAlertDelivery{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	webhookURL := os.Getenv("ALERT_WEBHOOK_ENDPOINT")
	if webhookURL == "" {
		webhookURL = "http://httpbin.org/post"
	}

	return &RetryConsumer{
		db:         db,
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:    8,
		batchSize:     100,
		checkInterval: 30 * time.Second,
	}, nil
}

// ProcessFailedDeliveries polls the queue and retries due entries
func (rc *RetryConsumer) ProcessFailedDeliveries() {
	log.Println("Starting retry consumer...")

	for {
		var failedDeliveries []FailedAlertDelivery
		err := rc.db.Where("status = ? AND next_retry_at <= ?", "pending", time.Now()).
			Order("created_at").
			Limit(rc.batchSize).
			Find(&failedDeliveries).Error

		if err != nil {
			log.Printf("Error fetching failed deliveries: %v", err)
			time.Sleep(rc.checkInterval)
			continue
		}

		if len(failedDeliveries) == 0 {
			time.Sleep(rc.checkInterval)
			continue
		}

		log.Printf("Processing %d failed deliveries for retry", len(failedDeliveries))

		for _, failed := range failedDeliveries {
			if err := rc.retryDelivery(failed); err != nil {
				log.Printf("Failed to retry delivery %s: %v", failed.ID, err)
			}
		}

		time.Sleep(rc.checkInterval)
	}
}

// retryDelivery retries one parked webhook delivery. Deliveries whose alert
// has been acknowledged in the meantime are dropped; the reader already saw
// the information.
func (rc *RetryConsumer) retryDelivery(failed FailedAlertDelivery) error {
	if failed.AlertID != nil {
		var acknowledged bool
		err := rc.db.Model(&models.Alert{}).
			Select("acknowledged").
			Where("id = ?", failed.AlertID).
			Scan(&acknowledged).Error

		if err != nil {
			log.Printf("Alert %s not found while retrying delivery: %v", failed.AlertID, err)
			return rc.markPermanentlyFailed(failed, "Alert no longer exists")
		}
		if acknowledged {
			return rc.markPermanentlyFailed(failed, "Alert acknowledged before delivery")
		}
	}

	var event models.TireEvent
	if err := json.Unmarshal(failed.Payload, &event); err != nil {
		return rc.markPermanentlyFailed(failed, "Unreadable payload: "+err.Error())
	}

	if err := rc.sendToWebhook(event); err != nil {
		return rc.updateRetryStatus(failed, err)
	}

	return rc.markResolved(failed)
}

// sendToWebhook posts the tire event to the webhook endpoint
func (rc *RetryConsumer) sendToWebhook(event models.TireEvent) error {
	payload := map[string]interface{}{
		"event_type": event.EventType,
		"data":       event,
		"timestamp":  time.Now(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal tire event: %w", err)
	}

	req, err := http.NewRequest("POST", rc.webhookURL+"/tire-events", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", event.TenantID.String())
	req.Header.Set("X-Tire-ID", event.TireID.String())

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver tire event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// updateRetryStatus bumps the retry count and schedules the next attempt
func (rc *RetryConsumer) updateRetryStatus(failed FailedAlertDelivery, err error) error {
	failed.RetryCount++
	failed.UpdatedAt = time.Now()

	if failed.RetryCount >= rc.maxRetries {
		failed.Status = "permanently_failed"
		now := time.Now()
		failed.ResolvedAt = &now
		failed.ErrorMessage = fmt.Sprintf("Max retries reached: %s", err.Error())
	} else {
		// Exponential backoff: 1m, 2m, 4m, 8m, ...
		baseDelay := 1 * time.Minute
		delay := baseDelay * time.Duration(1<<(failed.RetryCount-1))
		nextRetryAt := time.Now().Add(delay)
		failed.NextRetryAt = &nextRetryAt
		failed.ErrorMessage = err.Error()
	}

	return rc.db.Save(&failed).Error
}

// markResolved marks a delivery as done
func (rc *RetryConsumer) markResolved(failed FailedAlertDelivery) error {
	now := time.Now()
	failed.Status = "resolved"
	failed.UpdatedAt = now
	failed.ResolvedAt = &now

	return rc.db.Save(&failed).Error
}

// markPermanentlyFailed retires a delivery without further attempts
func (rc *RetryConsumer) markPermanentlyFailed(failed FailedAlertDelivery, reason string) error {
	now := time.Now()
	failed.Status = "permanently_failed"
	failed.UpdatedAt = now
	failed.ResolvedAt = &now
	failed.ErrorMessage = reason

	return rc.db.Save(&failed).Error
}

// GetRetryStats returns queue statistics
func (rc *RetryConsumer) GetRetryStats() map[string]interface{} {
	var stats struct {
		Pending           int64 `json:"pending"`
		Resolved          int64 `json:"resolved"`
		PermanentlyFailed int64 `json:"permanently_failed"`
	}

	rc.db.Model(&FailedAlertDelivery{}).Where("status = ?", "pending").Count(&stats.Pending)
	rc.db.Model(&FailedAlertDelivery{}).Where("status = ?", "resolved").Count(&stats.Resolved)
	rc.db.Model(&FailedAlertDelivery{}).Where("status = ?", "permanently_failed").Count(&stats.PermanentlyFailed)

	return map[string]interface{}{
		"retry_stats": stats,
		"config": map[string]interface{}{
			"max_retries":    rc.maxRetries,
			"batch_size":     rc.batchSize,
			"check_interval": rc.checkInterval.String(),
		},
	}
}

func main() {
	// Initialize retry consumer
	retryConsumer, err := NewRetryConsumer()
	if err != nil {
		log.Fatal("Failed to create retry consumer:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "retry-consumer",
		})
	})

	// Retry statistics endpoint
	router.GET("/stats", func(c *gin.Context) {
		stats := retryConsumer.GetRetryStats()
		c.JSON(200, gin.H{
			"success": true,
			"data":    stats,
		})
	})

	// Start retry consumer in background
	go retryConsumer.ProcessFailedDeliveries()

	// Start HTTP server
	port := os.Getenv("RETRY_CONSUMER_PORT")
	if port == "" {
		port = "8085"
	}

	logrus.Infof("Retry Consumer starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start Retry Consumer:", err)
	}
}
