package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionCodesTruck(t *testing.T) {
	// Classic 6x2: single steer axle, dual drive axle.
	v := &Vehicle{Axles: []AxleDef{
		{Role: AxleRoleSteer, IsDual: false},
		{Role: AxleRoleDrive, IsDual: true},
	}}

	assert.Equal(t, []string{"1L", "1R", "2LO", "2LI", "2RO", "2RI"}, v.PositionCodes())
	assert.Equal(t, 6, v.SlotCount())
	assert.True(t, v.HasPosition("2LO"))
	assert.False(t, v.HasPosition("1LO"))
	assert.False(t, v.HasPosition("3L"))
}

func TestPositionCodesTrailer(t *testing.T) {
	// Three dual trailer axles: 12 slots.
	v := &Vehicle{Axles: []AxleDef{
		{Role: AxleRoleTrailer, IsDual: true},
		{Role: AxleRoleTrailer, IsDual: true},
		{Role: AxleRoleTrailer, IsDual: true},
	}}

	codes := v.PositionCodes()
	assert.Len(t, codes, 12)
	assert.Equal(t, v.SlotCount(), len(codes))
	assert.Contains(t, codes, "3RI")
}

func TestPositionCodesCountMatchesAxleMix(t *testing.T) {
	// A dual axle contributes 4 slots, a single axle 2.
	v := &Vehicle{Axles: []AxleDef{
		{Role: AxleRoleSteer, IsDual: false},
		{Role: AxleRoleAux, IsDual: false},
		{Role: AxleRoleDrive, IsDual: true},
	}}
	assert.Equal(t, 2+2+4, v.SlotCount())
	assert.Len(t, v.PositionCodes(), v.SlotCount())
}

func TestPositionCodesNoAxles(t *testing.T) {
	v := &Vehicle{}
	assert.Empty(t, v.PositionCodes())
	assert.Equal(t, 0, v.SlotCount())
	assert.False(t, v.HasPosition("1L"))
}
