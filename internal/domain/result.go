package domain

import (
	"fmt"
	"time"
)

// Reason is the machine-readable cause of a rejected operation.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonCooldownActive     Reason = "cooldown_active"
	ReasonCapacityReached    Reason = "capacity_reached"
	ReasonInvalidDuration    Reason = "invalid_duration"
	ReasonInvalidContributor Reason = "invalid_contributor"
	ReasonNoUnit             Reason = "no_unit"
	ReasonUnavailable        Reason = "unavailable"
)

// Err maps a reason to its sentinel error, or nil for ReasonNone. Unknown
// reasons match no sentinel.
func (r Reason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonCooldownActive:
		return ErrCooldownActive
	case ReasonCapacityReached:
		return ErrCapacityReached
	case ReasonInvalidDuration:
		return ErrInvalidDuration
	case ReasonInvalidContributor:
		return ErrInvalidContributor
	case ReasonNoUnit:
		return ErrNoUnit
	case ReasonUnavailable:
		return ErrPersistence
	default:
		return fmt.Errorf("unknown rejection reason %q", string(r))
	}
}

// Result is returned by every mutating engine operation. Rejections are
// Result values with OK=false, never errors.
type Result struct {
	OK                  bool      `json:"ok"`
	Reason              Reason    `json:"reason,omitempty"`
	Message             string    `json:"message"`
	PreviousIntensity   float64   `json:"previous_intensity"`
	NewIntensity        float64   `json:"new_intensity"`
	Band                Band      `json:"band"`
	BandChanged         bool      `json:"band_changed"`
	ActiveContributions int       `json:"active_contributions"`
	RetryAt             time.Time `json:"retry_at,omitzero"`
	ProtectionEndsAt    time.Time `json:"protection_ends_at,omitzero"`
}

// Rejected reports whether the result carries a rejection reason.
func (r Result) Rejected() bool {
	return !r.OK && r.Reason != ReasonNone
}

type ProtectionStatus struct {
	Active       bool                    `json:"active"`
	EndsAt       time.Time               `json:"ends_at,omitzero"`
	ActivatedBy  string                  `json:"activated_by,omitempty"`
	Remaining    time.Duration           `json:"remaining"`
	Contributors []ProtectionContributor `json:"contributors,omitempty"`
}

// StatusView is a value snapshot of the engine for presentation and reward collaborators.
type StatusView struct {
	Intensity               float64          `json:"intensity"`
	Band                    Band             `json:"band"`
	BandLabel               string           `json:"band_label"`
	Emoji                   string           `json:"emoji"`
	Color                   int              `json:"color"`
	Multiplier              float64          `json:"multiplier"`
	ActiveContributionCount int              `json:"active_contribution_count"`
	NextExpiryAt            time.Time        `json:"next_expiry_at,omitzero"`
	NextDecayAt             time.Time        `json:"next_decay_at"`
	LastUpdate              time.Time        `json:"last_update"`
	Protection              ProtectionStatus `json:"protection"`
	DailyCount              int              `json:"daily_count"`
	LifetimeCount           int              `json:"lifetime_count"`
	LastContribution        *Contribution    `json:"last_contribution,omitempty"`
}
