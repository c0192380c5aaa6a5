package models

import "errors"

// Domain errors shared by the lifecycle engine, fleet assignment and tenant services.
// All of them are recoverable: handlers translate them into validation-style API
// responses, never into process failures.
var (
	// ErrInvalidTransition is returned when a tire status change is not legal from the current state
	ErrInvalidTransition = errors.New("invalid tire status transition")
	// ErrInvalidPosition is returned when a position code is not part of the vehicle's slot set
	ErrInvalidPosition = errors.New("position is not valid for this vehicle")
	// ErrPositionOccupied is returned when the target position already holds a tire
	ErrPositionOccupied = errors.New("position is already occupied")
	// ErrAssetLimitExceeded is returned when a tenant is at its plan's asset limit
	ErrAssetLimitExceeded = errors.New("tenant asset limit exceeded")
	// ErrConflict is returned when a concurrent mutation lost the race for a row lock
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrIncompleteData is returned when a transition is missing required fields
	ErrIncompleteData = errors.New("required fields missing for this transition")
	// ErrTenantReadOnly is returned when a non-Active tenant attempts an operational mutation
	ErrTenantReadOnly = errors.New("tenant subscription is not active, operational data is read-only")
)
