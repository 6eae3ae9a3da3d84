package domain

import "errors"

var (
	ErrStateNotFound       = errors.New("hearth state not found")
	ErrCooldownActive      = errors.New("contributor cooldown active")
	ErrCapacityReached     = errors.New("intensity already at maximum")
	ErrInvalidDuration     = errors.New("protection duration must be positive")
	ErrInvalidContributor  = errors.New("contributor id is required")
	ErrNoUnit              = errors.New("contributor has no spendable unit")
	ErrPersistence         = errors.New("persistence failure")
	ErrModifierUnavailable = errors.New("decay modifier unavailable")
)
