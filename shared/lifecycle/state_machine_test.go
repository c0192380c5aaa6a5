package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

func newStockTire() *models.Tire {
	return &models.Tire{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		SerialNumber:  "FT-0001",
		Brand:         "Michelin",
		Size:          "295/80R22.5",
		Status:        models.TireStatusStock,
		Condition:     models.TireConditionNew,
		CurrentDepth:  16,
		OriginalDepth: 16,
		Location:      models.LocationStock,
	}
}

func newTruck() *models.Vehicle {
	return &models.Vehicle{
		ID:       uuid.New(),
		Plate:    "ABC1D23",
		Category: models.VehicleCategoryTruck,
		Odometer: 120000,
		Axles: []models.AxleDef{
			{Role: models.AxleRoleSteer, IsDual: false},
			{Role: models.AxleRoleDrive, IsDual: true},
		},
	}
}

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.TireStatusStock, models.TireStatusInstalled))
	assert.True(t, CanTransition(models.TireStatusInstalled, models.TireStatusStock))
	assert.True(t, CanTransition(models.TireStatusStock, models.TireStatusAwaitingRetread))
	assert.True(t, CanTransition(models.TireStatusInstalled, models.TireStatusAwaitingRetread))
	assert.True(t, CanTransition(models.TireStatusAwaitingRetread, models.TireStatusStock))

	assert.False(t, CanTransition(models.TireStatusAwaitingRetread, models.TireStatusInstalled))
	assert.False(t, CanTransition(models.TireStatusStock, models.TireStatusStock))
}

func TestScrapIsAbsorbing(t *testing.T) {
	// SCRAP is reachable from every non-terminal state...
	for _, from := range []models.TireStatus{
		models.TireStatusStock, models.TireStatusInstalled, models.TireStatusAwaitingRetread,
	} {
		assert.True(t, CanTransition(from, models.TireStatusScrap), string(from))
	}

	// ...and nothing leaves it.
	for _, to := range []models.TireStatus{
		models.TireStatusStock, models.TireStatusInstalled,
		models.TireStatusAwaitingRetread, models.TireStatusScrap,
	} {
		assert.False(t, CanTransition(models.TireStatusScrap, to), string(to))
	}

	tire := newStockTire()
	require.NoError(t, applyScrap(tire, nil, "sidewall rupture"))
	assert.Equal(t, models.TireStatusScrap, tire.Status)

	// Every further transition attempt fails with ErrInvalidTransition.
	assert.ErrorIs(t, applyInstall(tire, newTruck(), "1L"), models.ErrInvalidTransition)
	assert.ErrorIs(t, applySendToRetread(tire, nil, "Recapadora X", true, 3, time.Now()), models.ErrInvalidTransition)
	assert.ErrorIs(t, applyRetreadReturn(tire, validReturnInput()), models.ErrInvalidTransition)
	assert.ErrorIs(t, applyScrap(tire, nil, "again"), models.ErrInvalidTransition)
}

func TestScrapRequiresReason(t *testing.T) {
	tire := newStockTire()
	assert.ErrorIs(t, applyScrap(tire, nil, ""), models.ErrIncompleteData)
	assert.Equal(t, models.TireStatusStock, tire.Status)
}

func TestInstallSetsLink(t *testing.T) {
	tire := newStockTire()
	truck := newTruck()

	require.NoError(t, applyInstall(tire, truck, "2LO"))
	assert.Equal(t, models.TireStatusInstalled, tire.Status)
	require.NotNil(t, tire.VehicleID)
	assert.Equal(t, truck.ID, *tire.VehicleID)
	assert.Equal(t, "2LO", tire.Position)
	assert.Equal(t, truck.Plate, tire.Location)
	assert.Equal(t, truck.Odometer, tire.InstallOdometer)
	assert.Equal(t, models.TireConditionUsed, tire.Condition)
}

func TestInstallRejectsUnknownPosition(t *testing.T) {
	tire := newStockTire()
	truck := newTruck() // axle 1 single, axle 2 dual

	assert.ErrorIs(t, applyInstall(tire, truck, "1LO"), models.ErrInvalidPosition)
	assert.ErrorIs(t, applyInstall(tire, truck, "3L"), models.ErrInvalidPosition)
	assert.Equal(t, models.TireStatusStock, tire.Status)
}

func TestReleaseAccumulatesMileage(t *testing.T) {
	tire := newStockTire()
	truck := newTruck()
	require.NoError(t, applyInstall(tire, truck, "1L"))

	truck.Odometer += 35000
	require.NoError(t, applyRelease(tire, truck))

	assert.Equal(t, models.TireStatusStock, tire.Status)
	assert.Nil(t, tire.VehicleID)
	assert.Empty(t, tire.Position)
	assert.Equal(t, models.LocationStock, tire.Location)
	assert.Equal(t, int64(35000), tire.AccumulatedMileage)
}

func TestReleaseRequiresInstalled(t *testing.T) {
	assert.ErrorIs(t, applyRelease(newStockTire(), newTruck()), models.ErrInvalidTransition)
}

func TestSendToRetreadEligibility(t *testing.T) {
	const threshold = 3.0

	// Healthy tread, no damage: not eligible.
	tire := newStockTire()
	assert.ErrorIs(t, applySendToRetread(tire, nil, "Recapadora X", false, threshold, time.Now()), models.ErrInvalidTransition)

	// Worn below threshold: eligible.
	tire.CurrentDepth = 2.5
	require.NoError(t, applySendToRetread(tire, nil, "Recapadora X", false, threshold, time.Now()))
	assert.Equal(t, models.TireStatusAwaitingRetread, tire.Status)
	assert.Equal(t, "Recapadora X", tire.Retreader)
	assert.NotNil(t, tire.RetreadSendDate)

	// Healthy tread but damaged: eligible.
	damaged := newStockTire()
	require.NoError(t, applySendToRetread(damaged, nil, "Recapadora X", true, threshold, time.Now()))
	assert.Equal(t, models.TireStatusAwaitingRetread, damaged.Status)
}

func TestSendToRetreadFromInstalledClearsLink(t *testing.T) {
	tire := newStockTire()
	truck := newTruck()
	require.NoError(t, applyInstall(tire, truck, "2RI"))

	truck.Odometer += 10000
	require.NoError(t, applySendToRetread(tire, truck, "Recapadora X", true, 3, time.Now()))

	assert.Nil(t, tire.VehicleID)
	assert.Empty(t, tire.Position)
	assert.Equal(t, "Recapadora X", tire.Location)
	assert.Equal(t, int64(10000), tire.AccumulatedMileage)
}

func validReturnInput() RetreadReturnInput {
	return RetreadReturnInput{
		TreadBrand:   "Vipal",
		TreadModel:   "VT-220",
		TreadType:    models.TreadTypeBorrachudo,
		Cost:         850,
		NominalDepth: 14,
		ReturnDate:   time.Now(),
	}
}

func TestRetreadRoundTrip(t *testing.T) {
	tire := newStockTire()
	tire.CurrentDepth = 1.8

	require.NoError(t, applySendToRetread(tire, nil, "Recapadora X", false, 3, time.Now()))
	require.NoError(t, applyRetreadReturn(tire, validReturnInput()))

	// The round trip increments the life count by exactly one and resets
	// the tread.
	assert.Equal(t, models.TireStatusStock, tire.Status)
	assert.Equal(t, models.TireConditionRetreaded, tire.Condition)
	assert.Equal(t, 1, tire.LifeCount)
	assert.Equal(t, 14.0, tire.CurrentDepth)
	assert.Equal(t, 14.0, tire.OriginalDepth)
	require.NotNil(t, tire.RetreadCost)
	assert.Equal(t, 850.0, *tire.RetreadCost)
	assert.NotNil(t, tire.RetreadReturnDate)

	// A second cycle reaches life 2.
	tire.CurrentDepth = 2.0
	require.NoError(t, applySendToRetread(tire, nil, "Recapadora X", false, 3, time.Now()))
	require.NoError(t, applyRetreadReturn(tire, validReturnInput()))
	assert.Equal(t, 2, tire.LifeCount)
}

func TestRetreadReturnRequiresAllFields(t *testing.T) {
	cases := map[string]func(*RetreadReturnInput){
		"missing brand": func(in *RetreadReturnInput) { in.TreadBrand = "" },
		"missing type":  func(in *RetreadReturnInput) { in.TreadType = "" },
		"unknown type":  func(in *RetreadReturnInput) { in.TreadType = "KNOBBY" },
		"zero cost":     func(in *RetreadReturnInput) { in.Cost = 0 },
		"zero depth":    func(in *RetreadReturnInput) { in.NominalDepth = 0 },
		"zero date":     func(in *RetreadReturnInput) { in.ReturnDate = time.Time{} },
	}
	for name, mutate := range cases {
		tire := newStockTire()
		tire.CurrentDepth = 1.5
		require.NoError(t, applySendToRetread(tire, nil, "Recapadora X", false, 3, time.Now()), name)

		in := validReturnInput()
		mutate(&in)
		assert.ErrorIs(t, applyRetreadReturn(tire, in), models.ErrIncompleteData, name)
		assert.Equal(t, models.TireStatusAwaitingRetread, tire.Status, name)
		assert.Equal(t, 0, tire.LifeCount, name)
	}
}

func TestRetreadReturnOnlyFromAwaiting(t *testing.T) {
	assert.ErrorIs(t, applyRetreadReturn(newStockTire(), validReturnInput()), models.ErrInvalidTransition)
}
