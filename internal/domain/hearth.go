package domain

import (
	"math"
	"slices"
	"time"
)

const (
	MinIntensity = 0.0
	MaxIntensity = 100.0
)

// Contribution is one unit of sustenance added by one contributor.
type Contribution struct {
	ID            string    `json:"id"`
	ContributorID string    `json:"contributor_id"`
	Label         string    `json:"label"`
	AddedAt       time.Time `json:"added_at"`
}

// ProtectionContributor records one activation that opened or extended a protection window.
type ProtectionContributor struct {
	ContributorID string        `json:"contributor_id"`
	Label         string        `json:"label"`
	Duration      time.Duration `json:"duration"`
}

// ProtectionWindow suppresses decay while active. EndsAt is zero when inactive.
type ProtectionWindow struct {
	Active       bool                    `json:"active"`
	EndsAt       time.Time               `json:"ends_at,omitzero"`
	ActivatedBy  string                  `json:"activated_by,omitempty"`
	Contributors []ProtectionContributor `json:"contributors,omitempty"`
}

type Counters struct {
	DailyCount       int           `json:"daily_count"`
	LifetimeCount    int           `json:"lifetime_count"`
	LastContribution *Contribution `json:"last_contribution,omitempty"`
}

// IntensityState is the durable aggregate: one record per resource pool.
// ActiveContributions is kept in insertion order.
type IntensityState struct {
	Intensity           float64          `json:"intensity"`
	LastUpdate          time.Time        `json:"last_update"`
	ActiveContributions []Contribution   `json:"active_contributions"`
	Protection          ProtectionWindow `json:"protection"`
	Counters            Counters         `json:"counters"`
}

// NewIntensityState returns the state of a freshly lit pool.
func NewIntensityState(intensity float64, now time.Time) IntensityState {
	return IntensityState{
		Intensity:           ClampIntensity(intensity),
		LastUpdate:          now,
		ActiveContributions: []Contribution{},
	}
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s IntensityState) Clone() IntensityState {
	out := s
	out.ActiveContributions = slices.Clone(s.ActiveContributions)
	if out.ActiveContributions == nil {
		out.ActiveContributions = []Contribution{}
	}
	out.Protection.Contributors = slices.Clone(s.Protection.Contributors)
	if s.Counters.LastContribution != nil {
		last := *s.Counters.LastContribution
		out.Counters.LastContribution = &last
	}
	return out
}

// ClampIntensity bounds v to [MinIntensity, MaxIntensity]. NaN maps to MinIntensity.
func ClampIntensity(v float64) float64 {
	if math.IsNaN(v) {
		return MinIntensity
	}
	return min(MaxIntensity, max(MinIntensity, v))
}
