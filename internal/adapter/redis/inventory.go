package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.ContributionSource = (*Inventory)(nil)

// consumeUnitScript decrements a contributor's unit count only if positive.
// Returns the remaining count, or -1 when there was nothing to consume.
var consumeUnitScript = goredis.NewScript(`
local n = tonumber(redis.call('HGET', KEYS[1], ARGV[1])) or 0
if n <= 0 then
  return -1
end
if n == 1 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  return 0
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
`)

// Inventory tracks spendable contribution units per contributor.
type Inventory struct {
	rdb  inventoryClient
	keys keyspace
}

type inventoryClient interface {
	goredis.Cmdable
	goredis.Scripter
}

func NewInventory(rdb inventoryClient, pool string) *Inventory {
	return &Inventory{rdb: rdb, keys: keyspace(pool)}
}

func (i *Inventory) HasUnit(ctx context.Context, contributorID string) (bool, error) {
	n, err := i.Units(ctx, contributorID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (i *Inventory) ConsumeUnit(ctx context.Context, contributorID string) error {
	left, err := consumeUnitScript.Run(ctx, i.rdb, []string{i.keys.inventory()}, contributorID).Int64()
	if err != nil {
		return fmt.Errorf("consume unit script failed: %w", err)
	}
	if left < 0 {
		return domain.ErrNoUnit
	}
	return nil
}

// Grant adds n units to a contributor's inventory and returns the new count.
func (i *Inventory) Grant(ctx context.Context, contributorID string, n int64) (int64, error) {
	total, err := i.rdb.HIncrBy(ctx, i.keys.inventory(), contributorID, n).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to grant units: %w", err)
	}
	return total, nil
}

func (i *Inventory) Units(ctx context.Context, contributorID string) (int64, error) {
	n, err := i.rdb.HGet(ctx, i.keys.inventory(), contributorID).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read inventory: %w", err)
	}
	return n, nil
}
