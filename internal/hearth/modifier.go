package hearth

import "context"

// StaticModifier is a ModifierProvider that always returns the same multiplier.
type StaticModifier float64

// NeutralModifier leaves the base decay rate untouched.
const NeutralModifier StaticModifier = 1.0

func (m StaticModifier) CurrentDecayMultiplier(context.Context) (float64, error) {
	return float64(m), nil
}
