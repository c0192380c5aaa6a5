package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TireStatus is the lifecycle state of a tire casing.
type TireStatus string

const (
	TireStatusStock           TireStatus = "STOCK"
	TireStatusInstalled       TireStatus = "INSTALLED"
	TireStatusAwaitingRetread TireStatus = "AWAITING_RETREAD"
	TireStatusScrap           TireStatus = "SCRAP" // terminal
)

// TireCondition describes the casing independently of where it currently is.
type TireCondition string

const (
	TireConditionNew       TireCondition = "NEW"
	TireConditionUsed      TireCondition = "USED"
	TireConditionRetreaded TireCondition = "RETREADED"
)

// TreadType is the tread pattern applied on a retread.
type TreadType string

const (
	TreadTypeLisa       TreadType = "LISA"
	TreadTypeMista      TreadType = "MISTA"
	TreadTypeBorrachudo TreadType = "BORRACHUDO"
)

// LocationStock is the free-text location of a tire that sits in the warehouse.
const LocationStock = "Stock"

// Tire represents a tire tracked as a long-lived asset across retread cycles.
type Tire struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_tires_tenant_serial"`
	SerialNumber string    `json:"serial_number" gorm:"type:varchar(64);not null;uniqueIndex:idx_tires_tenant_serial"`

	// Life 0 catalog data, immutable after registration
	Brand string `json:"brand" gorm:"not null"`
	Model string `json:"model"`
	Size  string `json:"size" gorm:"not null"`

	// Current life data
	Status    TireStatus    `json:"status" gorm:"type:varchar(20);not null;default:'STOCK';index"`
	Condition TireCondition `json:"condition" gorm:"type:varchar(12);not null;default:'NEW'"`
	LifeCount int           `json:"life_count" gorm:"not null;default:0"`

	// Retread data, only populated while AWAITING_RETREAD or once RETREADED
	TreadBrand        string     `json:"tread_brand,omitempty"`
	TreadModel        string     `json:"tread_model,omitempty"`
	TreadType         TreadType  `json:"tread_type,omitempty" gorm:"type:varchar(12)"`
	Retreader         string     `json:"retreader,omitempty"`
	RetreadSendDate   *time.Time `json:"retread_send_date,omitempty"`
	RetreadReturnDate *time.Time `json:"retread_return_date,omitempty"`
	RetreadCost       *float64   `json:"retread_cost,omitempty"`

	// Usage data
	CurrentDepth       float64 `json:"current_depth" gorm:"not null"`  // mm
	OriginalDepth      float64 `json:"original_depth" gorm:"not null"` // mm
	CurrentPressure    float64 `json:"current_pressure"`               // PSI
	AccumulatedMileage int64   `json:"accumulated_mileage" gorm:"not null;default:0"`

	// Location. VehicleID/Position form a weak link into the vehicle's slot
	// set: deleting the vehicle nulls them, never the other way around.
	Location        string     `json:"location" gorm:"not null;default:'Stock'"`
	VehicleID       *uuid.UUID `json:"vehicle_id,omitempty" gorm:"type:uuid;index:idx_tires_vehicle_position"`
	Position        string     `json:"position,omitempty" gorm:"type:varchar(8);index:idx_tires_vehicle_position"`
	InstallOdometer int64      `json:"install_odometer"` // vehicle odometer at mount time

	// Financial
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	PurchaseCost float64    `json:"purchase_cost"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Relationships
	Tenant  *Tenant  `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	History []TireHistoryEntry  `json:"history,omitempty" gorm:"foreignKey:TireID"`
	Records []MaintenanceRecord `json:"records,omitempty" gorm:"foreignKey:TireID"`
}

func (Tire) TableName() string {
	return "tires"
}

// IsScrapped reports whether the tire has reached its terminal state.
func (t *Tire) IsScrapped() bool {
	return t.Status == TireStatusScrap
}

// IsInstalled reports whether the tire currently occupies a vehicle slot.
func (t *Tire) IsInstalled() bool {
	return t.Status == TireStatusInstalled && t.VehicleID != nil
}

// SettleMileage folds the odometer delta since installation into the
// accumulated total. A rolled-back odometer contributes nothing.
func (t *Tire) SettleMileage(odometer int64) {
	if delta := odometer - t.InstallOdometer; delta > 0 {
		t.AccumulatedMileage += delta
	}
}

// ClearVehicleLink detaches the tire from its vehicle slot.
func (t *Tire) ClearVehicleLink(location string) {
	t.VehicleID = nil
	t.Position = ""
	t.InstallOdometer = 0
	t.Location = location
}

// TireHistoryEntry is one immutable line of a tire's transition log. Entries
// are append-only; nothing in the system updates or deletes them.
type TireHistoryEntry struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;index"`
	TireID     uuid.UUID  `json:"tire_id" gorm:"type:uuid;not null;index"`
	FromStatus TireStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus   TireStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	Actor      string     `json:"actor" gorm:"not null"`
	Note       string     `json:"note"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (TireHistoryEntry) TableName() string {
	return "tire_history"
}
