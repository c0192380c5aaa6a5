package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dbifleet/go-tire-fleet-system/shared/events"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// FailedAlertDelivery is one webhook delivery that did not go through,
// parked for the retry consumer.
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

// AlertConsumer turns tire lifecycle events into persisted alerts and
// forwards them to the tenant's webhook.
type AlertConsumer struct {
	reader *kafka.Reader
	db     *gorm.DB
}

// NewAlertConsumer creates a consumer on the tire events topic
func NewAlertConsumer(broker string, db *gorm.DB) (*AlertConsumer, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          events.TireEventsTopic,
		GroupID:        "alerts-service",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &AlertConsumer{
		reader: reader,
		db:     db,
	}, nil
}

// severityFor ranks how urgently an event needs the fleet manager's eyes.
func severityFor(eventType string) models.AlertSeverity {
	switch eventType {
	case models.EventRetreadThreshold, models.EventTireScrapped:
		return models.AlertSeverityHigh
	case models.EventTireSentToRetread:
		return models.AlertSeverityMedium
	default:
		return models.AlertSeverityLow
	}
}

// Consume runs the read loop until the reader is closed
func (ac *AlertConsumer) Consume(client *WebhookClient) {
	logrus.Info("Starting tire events consumer...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		msg, err := ac.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			// Timeouts are expected while the topic is idle
			if err == context.DeadlineExceeded {
				continue
			}
			logrus.Errorf("Error reading tire event: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var event models.TireEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logrus.Errorf("Error unmarshaling tire event: %v", err)
			continue
		}

		alert := models.Alert{
			ID:        uuid.New(),
			TenantID:  event.TenantID,
			TireID:    event.TireID,
			EventType: event.EventType,
			Severity:  severityFor(event.EventType),
			Message:   event.Message,
		}
		if err := ac.db.Create(&alert).Error; err != nil {
			logrus.Errorf("Error persisting alert for event %s: %v", event.ID, err)
		}

		if err := client.SendTireEvent(event); err != nil {
			logrus.Errorf("Error forwarding tire event %s to webhook: %v", event.ID, err)
			if dlqErr := ac.storeFailedDelivery(event, alert.ID, err); dlqErr != nil {
				logrus.Errorf("Failed to park delivery for retry: %v", dlqErr)
			}
		} else {
			logrus.Infof("Delivered tire event %s for tenant %s", event.EventType, event.TenantID)
		}
	}
}

// storeFailedDelivery parks a failed webhook delivery for the retry consumer
func (ac *AlertConsumer) storeFailedDelivery(event models.TireEvent, alertID uuid.UUID, cause error) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	nextRetryAt := time.Now().Add(1 * time.Minute)
	failed := FailedAlertDelivery{
		ID:           uuid.New(),
		EventID:      event.ID,
		TenantID:     event.TenantID,
		AlertID:      &alertID,
		Payload:      payload,
		ErrorMessage: cause.Error(),
		Status:       "pending",
		NextRetryAt:  &nextRetryAt,
	}
	return ac.db.Create(&failed).Error
}

// Close closes the Kafka reader
func (ac *AlertConsumer) Close() error {
	if err := ac.reader.Close(); err != nil {
		return fmt.Errorf("failed to close tire events reader: %w", err)
	}
	return nil
}
