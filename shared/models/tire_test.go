package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettleMileage(t *testing.T) {
	tire := &Tire{InstallOdometer: 100000, AccumulatedMileage: 5000}
	tire.SettleMileage(112000)
	assert.Equal(t, int64(17000), tire.AccumulatedMileage)
}

func TestSettleMileageIgnoresRolledBackOdometer(t *testing.T) {
	tire := &Tire{InstallOdometer: 100000, AccumulatedMileage: 5000}
	tire.SettleMileage(99000)
	assert.Equal(t, int64(5000), tire.AccumulatedMileage)
}

func TestClearVehicleLinkKeepsMileage(t *testing.T) {
	tire := &Tire{
		Status:             TireStatusInstalled,
		Position:           "2LO",
		InstallOdometer:    80000,
		AccumulatedMileage: 12000,
	}
	tire.SettleMileage(95000)
	tire.ClearVehicleLink(LocationStock)

	assert.Nil(t, tire.VehicleID)
	assert.Empty(t, tire.Position)
	assert.Equal(t, int64(27000), tire.AccumulatedMileage)
	assert.Equal(t, LocationStock, tire.Location)
}
