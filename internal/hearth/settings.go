package hearth

import (
	"fmt"
	"time"
)

// Settings holds the tunable constants of the engine.
type Settings struct {
	// LogBonus is the fixed intensity bonus added per contribution.
	LogBonus float64
	// LogLifetime bounds how long a contribution stays in the active ledger.
	LogLifetime time.Duration
	// UserCooldown is the minimum interval between two contributions of one contributor.
	UserCooldown time.Duration
	// DecayInterval is the length of one decay period.
	DecayInterval time.Duration
	// BaseDecayRate is the intensity lost per period at modifier 1.0.
	BaseDecayRate float64
	// InitialIntensity seeds a pool that has no stored state.
	InitialIntensity float64

	ModifierTimeout time.Duration
	SaveTimeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		LogBonus:         8,
		LogLifetime:      12 * time.Hour,
		UserCooldown:     6 * time.Hour,
		DecayInterval:    30 * time.Minute,
		BaseDecayRate:    1.5,
		InitialIntensity: 60,
		ModifierTimeout:  3 * time.Second,
		SaveTimeout:      5 * time.Second,
	}
}

func (s Settings) Validate() error {
	switch {
	case s.LogBonus < 0:
		return fmt.Errorf("log bonus must be >= 0, got %v", s.LogBonus)
	case s.LogLifetime <= 0:
		return fmt.Errorf("log lifetime must be positive, got %s", s.LogLifetime)
	case s.UserCooldown < 0:
		return fmt.Errorf("user cooldown must be >= 0, got %s", s.UserCooldown)
	case s.DecayInterval <= 0:
		return fmt.Errorf("decay interval must be positive, got %s", s.DecayInterval)
	case s.BaseDecayRate < 0:
		return fmt.Errorf("base decay rate must be >= 0, got %v", s.BaseDecayRate)
	case s.InitialIntensity < 0 || s.InitialIntensity > 100:
		return fmt.Errorf("initial intensity must be within [0,100], got %v", s.InitialIntensity)
	case s.ModifierTimeout <= 0:
		return fmt.Errorf("modifier timeout must be positive, got %s", s.ModifierTimeout)
	case s.SaveTimeout <= 0:
		return fmt.Errorf("save timeout must be positive, got %s", s.SaveTimeout)
	}
	return nil
}
