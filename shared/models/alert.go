package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertSeverity ranks how urgently an alert needs attention.
type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "LOW"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
)

// Alert is a persisted notification derived from a tire lifecycle event,
// backing the alerts screen. Created by the alerts consumer.
type Alert struct {
	ID           uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID     `json:"tenant_id" gorm:"type:uuid;not null;index"`
	TireID       uuid.UUID     `json:"tire_id" gorm:"type:uuid;index"`
	EventType    string        `json:"event_type" gorm:"type:varchar(40);not null"`
	Severity     AlertSeverity `json:"severity" gorm:"type:varchar(8);not null;default:'LOW'"`
	Message      string        `json:"message" gorm:"not null"`
	Acknowledged bool          `json:"acknowledged" gorm:"not null;default:false"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// TireEvent is the well-formed event record emitted by the lifecycle engine
// for the external alerting collaborator. The engine's only obligation is to
// produce it; delivery belongs to the kafka plumbing and the alerts service.
type TireEvent struct {
	ID         string     `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	TireID     uuid.UUID  `json:"tire_id"`
	EventType  string     `json:"event_type"`
	FromStatus TireStatus `json:"from_status,omitempty"`
	ToStatus   TireStatus `json:"to_status,omitempty"`
	VehicleID  *uuid.UUID `json:"vehicle_id,omitempty"`
	Position   string     `json:"position,omitempty"`
	Depth      float64    `json:"depth,omitempty"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Tire event types published on the tire-events topic.
const (
	EventTireInstalled       = "tire_installed"
	EventTireReleased        = "tire_released"
	EventTireSentToRetread   = "tire_sent_to_retread"
	EventTireRetreadReturned = "tire_retread_returned"
	EventTireScrapped        = "tire_scrapped"
	EventRetreadThreshold    = "retread_threshold_reached"
)
