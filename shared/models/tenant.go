package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus is the subscription lifecycle state of a tenant account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "Active"
	TenantStatusPaused    TenantStatus = "Paused"
	TenantStatusCancelled TenantStatus = "Cancelled"
	TenantStatusExpired   TenantStatus = "Expired"
)

// Tenant represents an isolated customer account with its own fleet,
// collaborators and subscription plan.
type Tenant struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"not null"`
	FantasyName string    `json:"fantasy_name"`
	Document    string    `json:"document" gorm:"uniqueIndex"` // CNPJ / CPF

	// Contact
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`

	// Subscription
	PlanID        *uuid.UUID   `json:"plan_id,omitempty" gorm:"type:uuid;index"`
	Status        TenantStatus `json:"status" gorm:"type:varchar(20);not null;default:'Active'"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	AssetLimit    int          `json:"asset_limit" gorm:"not null;default:0"`
	CurrentAssets int          `json:"current_assets" gorm:"not null;default:0"`

	// Onboarding
	SetupComplete bool `json:"setup_complete" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Relationships
	Plan  *Plan  `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Users []User `json:"users,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// IsOperational reports whether the tenant may mutate operational entities
// (vehicles, tires, maintenance). Every non-Active status is read-only.
func (t *Tenant) IsOperational() bool {
	return t.Status == TenantStatusActive
}

// HasCapacity reports whether the tenant may register n more assets without
// exceeding its plan limit.
func (t *Tenant) HasCapacity(n int) bool {
	return t.CurrentAssets+n <= t.AssetLimit
}

// GuardOperationalWrite returns the domain error blocking an operational
// create for this tenant, or nil when the write may proceed. Callers must
// hold the tenant row lock so CurrentAssets cannot move underneath them.
func (t *Tenant) GuardOperationalWrite(newAssets int) error {
	if !t.IsOperational() {
		return ErrTenantReadOnly
	}
	if newAssets > 0 && !t.HasCapacity(newAssets) {
		return ErrAssetLimitExceeded
	}
	return nil
}
