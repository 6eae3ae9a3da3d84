package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.StateRepository = (*StateRepo)(nil)

// StateRepo stores the aggregate as one JSON string. A single SET keeps
// writes atomic for concurrent readers.
type StateRepo struct {
	rdb  goredis.Cmdable
	keys keyspace
}

func NewStateRepo(rdb goredis.Cmdable, pool string) *StateRepo {
	return &StateRepo{rdb: rdb, keys: keyspace(pool)}
}

func (r *StateRepo) Load(ctx context.Context) (domain.IntensityState, error) {
	data, err := r.rdb.Get(ctx, r.keys.state()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.IntensityState{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.IntensityState{}, fmt.Errorf("failed to read state: %w", err)
	}

	var state domain.IntensityState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.IntensityState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

func (r *StateRepo) Save(ctx context.Context, state domain.IntensityState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := r.rdb.Set(ctx, r.keys.state(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
