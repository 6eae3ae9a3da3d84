package app

import (
	"context"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.ContributionSource = UnlimitedInventory{}

// UnlimitedInventory gives every contributor an endless supply of units.
// Used when no inventory backend is configured.
type UnlimitedInventory struct{}

func (UnlimitedInventory) HasUnit(context.Context, string) (bool, error) {
	return true, nil
}

func (UnlimitedInventory) ConsumeUnit(context.Context, string) error {
	return nil
}
