package weather

// Decay multipliers by outdoor temperature. Cold weather burns fuel faster.
const (
	extremeColdBelow = -25.0
	intenseColdBelow = -15.0
	mildAbove        = 0.0

	extremeColdMultiplier = 1.3
	intenseColdMultiplier = 1.15
	mildMultiplier        = 0.8
	neutralMultiplier     = 1.0
)

// DecayMultiplier maps a temperature in °C to a decay multiplier.
func DecayMultiplier(tempC float64) float64 {
	switch {
	case tempC < extremeColdBelow:
		return extremeColdMultiplier
	case tempC < intenseColdBelow:
		return intenseColdMultiplier
	case tempC > mildAbove:
		return mildMultiplier
	default:
		return neutralMultiplier
	}
}
