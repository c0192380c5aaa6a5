package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleCategory classifies the vehicle chassis.
type VehicleCategory string

const (
	VehicleCategoryTruck   VehicleCategory = "TRUCK"
	VehicleCategoryTrailer VehicleCategory = "TRAILER"
	VehicleCategoryBus     VehicleCategory = "BUS"
)

// VehicleStatus is the operational availability of a vehicle.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "ACTIVE"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
	VehicleStatusInactive    VehicleStatus = "INACTIVE"
)

// AxleRole determines valid tire positions and wear expectations for an axle.
type AxleRole string

const (
	AxleRoleSteer   AxleRole = "STEER"
	AxleRoleDrive   AxleRole = "DRIVE"
	AxleRoleAux     AxleRole = "AUX"
	AxleRoleTrailer AxleRole = "TRAILER"
)

// AxleDef describes one axle of a vehicle. A dual axle carries two tires per
// side (inner/outer), a single axle one.
type AxleDef struct {
	Role   AxleRole `json:"role"`
	IsDual bool     `json:"is_dual"`
}

// Vehicle represents one fleet unit. Its axle definitions fully determine the
// set of valid tire positions.
type Vehicle struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Plate     string          `json:"plate" gorm:"type:varchar(16);not null;uniqueIndex"`
	Category  VehicleCategory `json:"category" gorm:"type:varchar(10);not null"`
	Type      string          `json:"type"` // Toco, Truck, etc.
	Model     string          `json:"model"`
	Brand     string          `json:"brand"`
	Implement string          `json:"implement,omitempty"` // Tank, Box, Sider
	Odometer  int64           `json:"odometer" gorm:"not null;default:0"`
	Status    VehicleStatus   `json:"status" gorm:"type:varchar(12);not null;default:'ACTIVE'"`
	Axles     []AxleDef       `json:"axles" gorm:"serializer:json"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// PositionCodes derives the full ordered slot set from the axle definitions.
// Codes are "<axle><side>" for single axles and "<axle><side><slot>" for dual
// axles, e.g. axle 1 single -> 1L, 1R; axle 2 dual -> 2LO, 2LI, 2RO, 2RI
// (L/R = left/right, O/I = outer/inner).
func (v *Vehicle) PositionCodes() []string {
	var codes []string
	for i, axle := range v.Axles {
		n := i + 1
		if axle.IsDual {
			codes = append(codes,
				fmt.Sprintf("%dLO", n),
				fmt.Sprintf("%dLI", n),
				fmt.Sprintf("%dRO", n),
				fmt.Sprintf("%dRI", n),
			)
		} else {
			codes = append(codes,
				fmt.Sprintf("%dL", n),
				fmt.Sprintf("%dR", n),
			)
		}
	}
	return codes
}

// SlotCount returns how many tires the vehicle can carry.
func (v *Vehicle) SlotCount() int {
	count := 0
	for _, axle := range v.Axles {
		if axle.IsDual {
			count += 4
		} else {
			count += 2
		}
	}
	return count
}

// HasPosition reports whether code belongs to the vehicle's derived slot set.
func (v *Vehicle) HasPosition(code string) bool {
	for _, c := range v.PositionCodes() {
		if c == code {
			return true
		}
	}
	return false
}
