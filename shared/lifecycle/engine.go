package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// EventPublisher delivers well-formed tire events to the alerting pipeline.
// The engine only builds the record; delivery failures never roll back a
// committed transition.
type EventPublisher interface {
	PublishTireEvent(event models.TireEvent) error
}

// Engine owns the tire lifecycle state machine. Every transition runs in one
// database transaction holding a NOWAIT row lock on the tire (and the vehicle
// for slot operations), so at most one transition per tire is in flight and a
// losing caller gets ErrConflict instead of a torn intermediate state.
// Transitions re-check the tenant's subscription status inside the same
// transaction; non-Active tenants are read-only.
type Engine struct {
	db              *gorm.DB
	publisher       EventPublisher
	wearThresholdMM float64
}

// NewEngine creates a lifecycle engine. wearThresholdMM gates retread
// eligibility and threshold alerts; publisher may be nil when event emission
// is not wired (tests).
func NewEngine(db *gorm.DB, publisher EventPublisher, wearThresholdMM float64) *Engine {
	return &Engine{
		db:              db,
		publisher:       publisher,
		wearThresholdMM: wearThresholdMM,
	}
}

// WearThreshold returns the configured wear threshold in mm.
func (e *Engine) WearThreshold() float64 {
	return e.wearThresholdMM
}

// guardTenant blocks transitions for tenants whose subscription is not
// Active. Runs inside the transition transaction so a concurrent status
// flip cannot race the write.
func guardTenant(tx *gorm.DB, tenantID uuid.UUID) error {
	var tenant models.Tenant
	if err := tx.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return err
	}
	if !tenant.IsOperational() {
		return models.ErrTenantReadOnly
	}
	return nil
}

// lockTire loads the tenant's tire under FOR UPDATE NOWAIT.
func (e *Engine) lockTire(tx *gorm.DB, tenantID, tireID uuid.UUID) (*models.Tire, error) {
	var tire models.Tire
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("id = ? AND tenant_id = ?", tireID, tenantID).
		First(&tire).Error
	if err != nil {
		return nil, lockErr(err)
	}
	return &tire, nil
}

// lockVehicle loads the tenant's vehicle under FOR UPDATE NOWAIT.
func (e *Engine) lockVehicle(tx *gorm.DB, tenantID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("id = ? AND tenant_id = ?", vehicleID, tenantID).
		First(&vehicle).Error
	if err != nil {
		return nil, lockErr(err)
	}
	return &vehicle, nil
}

// lockErr maps a failed NOWAIT acquisition to ErrConflict; anything else
// passes through (including gorm.ErrRecordNotFound).
func lockErr(err error) error {
	// Postgres signals a lost NOWAIT race with SQLSTATE 55P03.
	if strings.Contains(err.Error(), "55P03") || strings.Contains(err.Error(), "could not obtain lock") {
		return models.ErrConflict
	}
	return err
}

// appendHistory writes the immutable transition log line inside the same
// transaction as the transition itself.
func appendHistory(tx *gorm.DB, t *models.Tire, from, to models.TireStatus, actor, note string) error {
	entry := models.TireHistoryEntry{
		ID:         uuid.New(),
		TenantID:   t.TenantID,
		TireID:     t.ID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
	}
	return tx.Create(&entry).Error
}

// publish hands the event to the alerting pipeline. Failures are logged, not
// propagated: the transition already committed.
func (e *Engine) publish(event models.TireEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishTireEvent(event); err != nil {
		logrus.Warnf("Failed to publish tire event %s for tire %s: %v", event.EventType, event.TireID, err)
	}
}

func (e *Engine) buildEvent(t *models.Tire, eventType string, from models.TireStatus, message string) models.TireEvent {
	return models.TireEvent{
		ID:         uuid.New().String(),
		TenantID:   t.TenantID,
		TireID:     t.ID,
		EventType:  eventType,
		FromStatus: from,
		ToStatus:   t.Status,
		VehicleID:  t.VehicleID,
		Position:   t.Position,
		Depth:      t.CurrentDepth,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// Install mounts a stock tire on a free, valid vehicle slot. The transition
// and the slot reservation are atomic: both rows are locked, occupancy is
// checked under the lock, and the tire row is the single source of slot truth.
func (e *Engine) Install(ctx context.Context, tenantID, tireID, vehicleID uuid.UUID, position, actor string) (*models.Tire, error) {
	var tire *models.Tire
	var from models.TireStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}
		vehicle, err := e.lockVehicle(tx, tenantID, vehicleID)
		if err != nil {
			return err
		}
		if !vehicle.HasPosition(position) {
			return models.ErrInvalidPosition
		}

		var occupied int64
		err = tx.Model(&models.Tire{}).
			Where("vehicle_id = ? AND position = ? AND status = ?", vehicleID, position, models.TireStatusInstalled).
			Count(&occupied).Error
		if err != nil {
			return err
		}
		if occupied > 0 {
			return models.ErrPositionOccupied
		}

		from = tire.Status
		if err := applyInstall(tire, vehicle, position); err != nil {
			return err
		}
		if err := tx.Save(tire).Error; err != nil {
			return err
		}
		note := fmt.Sprintf("Mounted on %s at %s", vehicle.Plate, position)
		return appendHistory(tx, tire, from, tire.Status, actor, note)
	})
	if err != nil {
		return nil, err
	}

	e.publish(e.buildEvent(tire, models.EventTireInstalled, from,
		fmt.Sprintf("Tire %s installed at position %s", tire.SerialNumber, position)))
	return tire, nil
}

// Release dismounts an installed tire back to stock, settling its mileage.
func (e *Engine) Release(ctx context.Context, tenantID, tireID uuid.UUID, actor string) (*models.Tire, error) {
	var tire *models.Tire
	var from models.TireStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}
		if tire.VehicleID == nil {
			return models.ErrInvalidTransition
		}
		vehicle, err := e.lockVehicle(tx, tenantID, *tire.VehicleID)
		if err != nil {
			return err
		}

		from = tire.Status
		prevPosition := tire.Position
		if err := applyRelease(tire, vehicle); err != nil {
			return err
		}
		if err := tx.Save(tire).Error; err != nil {
			return err
		}
		note := fmt.Sprintf("Dismounted from %s position %s", vehicle.Plate, prevPosition)
		return appendHistory(tx, tire, from, tire.Status, actor, note)
	})
	if err != nil {
		return nil, err
	}

	e.publish(e.buildEvent(tire, models.EventTireReleased, from,
		fmt.Sprintf("Tire %s returned to stock", tire.SerialNumber)))
	return tire, nil
}

// SendToRetread ships a worn or damaged tire to a retreader. Installed tires
// are dismounted as part of the same transaction.
func (e *Engine) SendToRetread(ctx context.Context, tenantID, tireID uuid.UUID, retreader string, damaged bool, actor string) (*models.Tire, error) {
	var tire *models.Tire
	var from models.TireStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}

		var vehicle *models.Vehicle
		if tire.VehicleID != nil {
			vehicle, err = e.lockVehicle(tx, tenantID, *tire.VehicleID)
			if err != nil {
				return err
			}
		}

		from = tire.Status
		if err := applySendToRetread(tire, vehicle, retreader, damaged, e.wearThresholdMM, time.Now()); err != nil {
			return err
		}
		if err := tx.Save(tire).Error; err != nil {
			return err
		}
		return appendHistory(tx, tire, from, tire.Status, actor, fmt.Sprintf("Sent to retreader %s", retreader))
	})
	if err != nil {
		return nil, err
	}

	e.publish(e.buildEvent(tire, models.EventTireSentToRetread, from,
		fmt.Sprintf("Tire %s sent to retreader %s", tire.SerialNumber, retreader)))
	return tire, nil
}

// ReturnFromRetread completes the retread cycle: the tire comes back to stock
// with a new tread, one more life and a reset depth.
func (e *Engine) ReturnFromRetread(ctx context.Context, tenantID, tireID uuid.UUID, in RetreadReturnInput, actor string) (*models.Tire, error) {
	var tire *models.Tire
	var from models.TireStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}

		from = tire.Status
		if err := applyRetreadReturn(tire, in); err != nil {
			return err
		}
		if err := tx.Save(tire).Error; err != nil {
			return err
		}
		note := fmt.Sprintf("Retread returned, life %d, tread %s %s", tire.LifeCount, in.TreadBrand, in.TreadType)
		return appendHistory(tx, tire, from, tire.Status, actor, note)
	})
	if err != nil {
		return nil, err
	}

	e.publish(e.buildEvent(tire, models.EventTireRetreadReturned, from,
		fmt.Sprintf("Tire %s back from retread, life %d", tire.SerialNumber, tire.LifeCount)))
	return tire, nil
}

// Scrap retires a casing for good. Legal from any non-terminal state; the
// reason is mandatory and lands in the history log.
func (e *Engine) Scrap(ctx context.Context, tenantID, tireID uuid.UUID, reason, actor string) (*models.Tire, error) {
	var tire *models.Tire
	var from models.TireStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}

		var vehicle *models.Vehicle
		if tire.VehicleID != nil {
			vehicle, err = e.lockVehicle(tx, tenantID, *tire.VehicleID)
			if err != nil {
				return err
			}
		}

		from = tire.Status
		if err := applyScrap(tire, vehicle, reason); err != nil {
			return err
		}
		if err := tx.Save(tire).Error; err != nil {
			return err
		}
		return appendHistory(tx, tire, from, tire.Status, actor, "Scrapped: "+reason)
	})
	if err != nil {
		return nil, err
	}

	e.publish(e.buildEvent(tire, models.EventTireScrapped, from,
		fmt.Sprintf("Tire %s scrapped: %s", tire.SerialNumber, reason)))
	return tire, nil
}

// UpdateWear records an inspection's depth/pressure readings. Not a status
// transition, but it shares the per-tire lock and raises the threshold alert
// when the tread crosses below the configured limit.
func (e *Engine) UpdateWear(ctx context.Context, tenantID, tireID uuid.UUID, depthMM, pressurePSI float64, actor string) (*models.Tire, error) {
	var tire *models.Tire
	crossed := false

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardTenant(tx, tenantID); err != nil {
			return err
		}
		var err error
		tire, err = e.lockTire(tx, tenantID, tireID)
		if err != nil {
			return err
		}
		if tire.IsScrapped() {
			return models.ErrInvalidTransition
		}
		if depthMM <= 0 || depthMM > tire.OriginalDepth {
			return fmt.Errorf("depth must be positive and cannot exceed original depth %.1f mm", tire.OriginalDepth)
		}

		crossed = tire.CurrentDepth >= e.wearThresholdMM && depthMM < e.wearThresholdMM
		tire.CurrentDepth = depthMM
		if pressurePSI > 0 {
			tire.CurrentPressure = pressurePSI
		}
		return tx.Save(tire).Error
	})
	if err != nil {
		return nil, err
	}

	if crossed {
		e.publish(e.buildEvent(tire, models.EventRetreadThreshold, tire.Status,
			fmt.Sprintf("Tire %s tread at %.1f mm, below retread threshold %.1f mm", tire.SerialNumber, tire.CurrentDepth, e.wearThresholdMM)))
	}
	return tire, nil
}

// AvailablePositions derives the unfilled position codes of a vehicle: the
// axle-derived slot set minus the positions of currently installed tires.
func (e *Engine) AvailablePositions(ctx context.Context, tenantID, vehicleID uuid.UUID) ([]string, error) {
	db := e.db.WithContext(ctx)

	var vehicle models.Vehicle
	if err := db.Where("id = ? AND tenant_id = ?", vehicleID, tenantID).First(&vehicle).Error; err != nil {
		return nil, err
	}

	var occupied []string
	err := db.Model(&models.Tire{}).
		Where("vehicle_id = ? AND status = ?", vehicleID, models.TireStatusInstalled).
		Pluck("position", &occupied).Error
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(occupied))
	for _, p := range occupied {
		taken[p] = true
	}

	free := make([]string, 0, vehicle.SlotCount())
	for _, code := range vehicle.PositionCodes() {
		if !taken[code] {
			free = append(free, code)
		}
	}
	return free, nil
}
