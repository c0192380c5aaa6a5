package models

import (
	"time"

	"github.com/google/uuid"
)

// MaintenanceType classifies a maintenance event.
type MaintenanceType string

const (
	MaintenanceTypeInspection MaintenanceType = "INSPECTION"
	MaintenanceTypePressure   MaintenanceType = "PRESSURE"
	MaintenanceTypeRotation   MaintenanceType = "ROTATION"
	MaintenanceTypeRepair     MaintenanceType = "REPAIR"
	MaintenanceTypeRetread    MaintenanceType = "RETREAD"
	MaintenanceTypeMount      MaintenanceType = "MOUNT"
	MaintenanceTypeDismount   MaintenanceType = "DISMOUNT"
	MaintenanceTypeAlignment  MaintenanceType = "ALIGNMENT"
)

// IsValid reports whether t is one of the known maintenance types.
func (t MaintenanceType) IsValid() bool {
	switch t {
	case MaintenanceTypeInspection, MaintenanceTypePressure, MaintenanceTypeRotation,
		MaintenanceTypeRepair, MaintenanceTypeRetread, MaintenanceTypeMount,
		MaintenanceTypeDismount, MaintenanceTypeAlignment:
		return true
	}
	return false
}

// MaintenanceRecord is an immutable historical entry documenting work done on
// a tire, optionally while mounted on a vehicle. Records are append-only:
// the API exposes create and list, never update or delete.
type MaintenanceRecord struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	TireID      uuid.UUID       `json:"tire_id" gorm:"type:uuid;not null;index"`
	VehicleID   *uuid.UUID      `json:"vehicle_id,omitempty" gorm:"type:uuid;index"`
	Date        time.Time       `json:"date" gorm:"not null"`
	Type        MaintenanceType `json:"type" gorm:"type:varchar(12);not null"`
	Cost        float64         `json:"cost" gorm:"not null;default:0"`
	Odometer    int64           `json:"odometer"`
	Description string          `json:"description"`
	PerformedBy string          `json:"performed_by" gorm:"not null"`
	Position    string          `json:"position,omitempty" gorm:"type:varchar(8)"`
	CreatedAt   time.Time       `json:"created_at"`

	Tire    *Tire    `json:"tire,omitempty" gorm:"foreignKey:TireID"`
	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
}

func (MaintenanceRecord) TableName() string {
	return "maintenance_records"
}
