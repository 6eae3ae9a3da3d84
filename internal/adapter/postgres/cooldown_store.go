package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.CooldownStore = (*CooldownStore)(nil)

type CooldownStore struct {
	pool *pgxpool.Pool
	name string
}

func NewCooldownStore(pool *pgxpool.Pool, name string) *CooldownStore {
	return &CooldownStore{pool: pool, name: name}
}

func (s *CooldownStore) LoadCooldowns(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT contributor_id, last_contribution_at FROM hearth_cooldowns WHERE pool = $1`, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query cooldowns: %w", err)
	}

	out := make(map[string]time.Time)
	var (
		id string
		at time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &at}, func() error {
		out[id] = at.UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cooldowns: %w", err)
	}
	return out, nil
}

func (s *CooldownStore) RecordCooldown(ctx context.Context, contributorID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hearth_cooldowns (pool, contributor_id, last_contribution_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool, contributor_id) DO UPDATE SET last_contribution_at = EXCLUDED.last_contribution_at`,
		s.name, contributorID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record cooldown: %w", err)
	}
	return nil
}

func (s *CooldownStore) DeleteCooldowns(ctx context.Context, contributorIDs []string) error {
	if len(contributorIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM hearth_cooldowns WHERE pool = $1 AND contributor_id = ANY($2)`, s.name, contributorIDs)
	if err != nil {
		return fmt.Errorf("failed to delete cooldowns: %w", err)
	}
	return nil
}
