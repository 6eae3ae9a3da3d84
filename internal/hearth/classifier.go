package hearth

import "github.com/pscheid92/hearth/internal/domain"

// Upper bounds (inclusive) of each band below BandIntense.
const (
	extinguishedMax = 5.0
	lowMax          = 30.0
	mediumMax       = 60.0
	highMax         = 85.0
)

type bandInfo struct {
	label      string
	emoji      string
	color      int
	multiplier float64
}

var bands = map[domain.Band]bandInfo{
	domain.BandExtinguished: {label: "Extinguished", emoji: "🪵", color: 0x95A5A6, multiplier: 1.0},
	domain.BandLow:          {label: "Embers", emoji: "💨", color: 0xE67E22, multiplier: 1.1},
	domain.BandMedium:       {label: "Steady", emoji: "♨️", color: 0xF39C12, multiplier: 1.2},
	domain.BandHigh:         {label: "Vigorous", emoji: "💥", color: 0xE74C3C, multiplier: 1.35},
	domain.BandIntense:      {label: "Blazing", emoji: "🔥", color: 0xFF4500, multiplier: 1.5},
}

// Classify maps an intensity to its band. Total over all floats.
func Classify(intensity float64) domain.Band {
	switch {
	case !(intensity > extinguishedMax): // also catches NaN
		return domain.BandExtinguished
	case intensity <= lowMax:
		return domain.BandLow
	case intensity <= mediumMax:
		return domain.BandMedium
	case intensity <= highMax:
		return domain.BandHigh
	default:
		return domain.BandIntense
	}
}

// Multiplier returns the reward multiplier of a band, monotonically increasing with the band.
func Multiplier(band domain.Band) float64 {
	if info, ok := bands[band]; ok {
		return info.multiplier
	}
	return bands[domain.BandExtinguished].multiplier
}

// BandLabel returns the display name of a band.
func BandLabel(band domain.Band) string {
	return bands[band].label
}

func BandEmoji(band domain.Band) string {
	return bands[band].emoji
}

func BandColor(band domain.Band) int {
	return bands[band].color
}
