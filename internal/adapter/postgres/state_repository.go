package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.StateRepository = (*StateRepo)(nil)

// StateRepo keeps one JSONB row per pool. Save is a single upsert.
type StateRepo struct {
	pool *pgxpool.Pool
	name string
}

func NewStateRepo(pool *pgxpool.Pool, name string) *StateRepo {
	return &StateRepo{pool: pool, name: name}
}

func (r *StateRepo) Load(ctx context.Context) (domain.IntensityState, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT state FROM hearth_state WHERE pool = $1`, r.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IntensityState{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.IntensityState{}, fmt.Errorf("failed to read state: %w", err)
	}

	var state domain.IntensityState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.IntensityState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

func (r *StateRepo) Save(ctx context.Context, state domain.IntensityState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO hearth_state (pool, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		r.name, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
