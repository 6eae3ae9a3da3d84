package domain

import "fmt"

// Band is a named classification of intensity ranges.
type Band int

const (
	BandExtinguished Band = iota
	BandLow
	BandMedium
	BandHigh
	BandIntense
)

var bandNames = map[Band]string{
	BandExtinguished: "extinguished",
	BandLow:          "low",
	BandMedium:       "medium",
	BandHigh:         "high",
	BandIntense:      "intense",
}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return "unknown"
}

func (b Band) MarshalText() ([]byte, error) {
	if _, ok := bandNames[b]; !ok {
		return nil, fmt.Errorf("invalid band %d", int(b))
	}
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	band, ok := ParseBand(string(text))
	if !ok {
		return fmt.Errorf("unknown band %q", string(text))
	}
	*b = band
	return nil
}

// ParseBand converts a band name back to a Band.
func ParseBand(s string) (Band, bool) {
	for band, name := range bandNames {
		if name == s {
			return band, true
		}
	}
	return BandExtinguished, false
}
