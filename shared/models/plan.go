package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanFrequency is the billing cycle of a subscription plan.
type PlanFrequency string

const (
	PlanFrequencyMonthly PlanFrequency = "MONTHLY"
	PlanFrequencyYearly  PlanFrequency = "YEARLY"
)

// Plan represents a subscription plan managed by the platform operator.
// AssetLimit caps how many vehicles a subscribing tenant may register.
type Plan struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string        `json:"name" gorm:"not null;uniqueIndex"`
	Price       float64       `json:"price" gorm:"not null;default:0"`
	Frequency   PlanFrequency `json:"frequency" gorm:"type:varchar(10);not null;default:'MONTHLY'"`
	AssetLimit  int           `json:"asset_limit" gorm:"not null;default:0"`
	Active      bool          `json:"active" gorm:"default:true"`
	Description string        `json:"description"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

func (Plan) TableName() string {
	return "plans"
}
