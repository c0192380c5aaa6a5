package lifecycle

import (
	"time"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// allowedTransitions is the directed graph of legal tire status flows.
// SCRAP is absorbing: nothing leaves it.
var allowedTransitions = map[models.TireStatus][]models.TireStatus{
	models.TireStatusStock:           {models.TireStatusInstalled, models.TireStatusAwaitingRetread, models.TireStatusScrap},
	models.TireStatusInstalled:       {models.TireStatusStock, models.TireStatusAwaitingRetread, models.TireStatusScrap},
	models.TireStatusAwaitingRetread: {models.TireStatusStock, models.TireStatusScrap},
	models.TireStatusScrap:           {},
}

// CanTransition reports whether from -> to is a legal status flow.
func CanTransition(from, to models.TireStatus) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// RetreadReturnInput carries the fields a retreader must supply when a casing
// comes back. All of them are required for the AWAITING_RETREAD -> STOCK flow.
type RetreadReturnInput struct {
	TreadBrand   string
	TreadModel   string
	TreadType    models.TreadType
	Cost         float64
	NominalDepth float64 // tread depth in mm the casing comes back with
	ReturnDate   time.Time
}

// Validate checks the input for completeness.
func (in RetreadReturnInput) Validate() error {
	if in.TreadBrand == "" || in.TreadType == "" || in.Cost <= 0 || in.NominalDepth <= 0 || in.ReturnDate.IsZero() {
		return models.ErrIncompleteData
	}
	switch in.TreadType {
	case models.TreadTypeLisa, models.TreadTypeMista, models.TreadTypeBorrachudo:
	default:
		return models.ErrIncompleteData
	}
	return nil
}

// applyInstall mounts the tire on a vehicle slot. Occupancy of the slot is the
// engine's responsibility; this only mutates the tire.
func applyInstall(t *models.Tire, v *models.Vehicle, position string) error {
	if !CanTransition(t.Status, models.TireStatusInstalled) {
		return models.ErrInvalidTransition
	}
	if !v.HasPosition(position) {
		return models.ErrInvalidPosition
	}
	t.Status = models.TireStatusInstalled
	t.VehicleID = &v.ID
	t.Position = position
	t.Location = v.Plate
	t.InstallOdometer = v.Odometer
	if t.Condition == models.TireConditionNew {
		t.Condition = models.TireConditionUsed
	}
	return nil
}

// applyRelease dismounts the tire back to stock, folding the odometer delta
// since installation into the accumulated mileage.
func applyRelease(t *models.Tire, v *models.Vehicle) error {
	if !CanTransition(t.Status, models.TireStatusStock) || t.Status != models.TireStatusInstalled {
		return models.ErrInvalidTransition
	}
	accumulateMileage(t, v)
	t.ClearVehicleLink(models.LocationStock)
	t.Status = models.TireStatusStock
	return nil
}

// applySendToRetread moves the tire to the retreader. Eligibility requires the
// tread to be worn below the threshold or an explicit damage flag. When the
// tire is installed, v must be the carrying vehicle so mileage is settled.
func applySendToRetread(t *models.Tire, v *models.Vehicle, retreader string, damaged bool, wearThresholdMM float64, now time.Time) error {
	if !CanTransition(t.Status, models.TireStatusAwaitingRetread) {
		return models.ErrInvalidTransition
	}
	if !damaged && t.CurrentDepth >= wearThresholdMM {
		return models.ErrInvalidTransition
	}
	if retreader == "" {
		return models.ErrIncompleteData
	}
	if t.Status == models.TireStatusInstalled {
		accumulateMileage(t, v)
	}
	t.ClearVehicleLink(retreader)
	t.Status = models.TireStatusAwaitingRetread
	t.Retreader = retreader
	sendDate := now
	t.RetreadSendDate = &sendDate
	t.RetreadReturnDate = nil
	t.RetreadCost = nil
	return nil
}

// applyRetreadReturn completes a retread cycle: the only flow that increments
// the life count. The casing returns to stock with the tread's nominal depth
// as its new original depth.
func applyRetreadReturn(t *models.Tire, in RetreadReturnInput) error {
	if !CanTransition(t.Status, models.TireStatusStock) || t.Status != models.TireStatusAwaitingRetread {
		return models.ErrInvalidTransition
	}
	if err := in.Validate(); err != nil {
		return err
	}
	t.Status = models.TireStatusStock
	t.Condition = models.TireConditionRetreaded
	t.LifeCount++
	t.TreadBrand = in.TreadBrand
	t.TreadModel = in.TreadModel
	t.TreadType = in.TreadType
	t.RetreadCost = &in.Cost
	returnDate := in.ReturnDate
	t.RetreadReturnDate = &returnDate
	t.CurrentDepth = in.NominalDepth
	t.OriginalDepth = in.NominalDepth
	t.Location = models.LocationStock
	return nil
}

// applyScrap retires the casing for good. Legal from every non-terminal state.
func applyScrap(t *models.Tire, v *models.Vehicle, reason string) error {
	if !CanTransition(t.Status, models.TireStatusScrap) {
		return models.ErrInvalidTransition
	}
	if reason == "" {
		return models.ErrIncompleteData
	}
	if t.Status == models.TireStatusInstalled {
		accumulateMileage(t, v)
	}
	t.ClearVehicleLink("Scrap")
	t.Status = models.TireStatusScrap
	return nil
}

// accumulateMileage settles the odometer delta since installation into the
// tire's total. A nil vehicle contributes nothing.
func accumulateMileage(t *models.Tire, v *models.Vehicle) {
	if v == nil {
		return
	}
	t.SettleMileage(v.Odometer)
}
