package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.CooldownStore = (*CooldownStore)(nil)

// CooldownStore keeps last-contribution timestamps in one hash, field per
// contributor, value in unix milliseconds.
type CooldownStore struct {
	rdb  goredis.Cmdable
	keys keyspace
}

func NewCooldownStore(rdb goredis.Cmdable, pool string) *CooldownStore {
	return &CooldownStore{rdb: rdb, keys: keyspace(pool)}
}

func (s *CooldownStore) LoadCooldowns(ctx context.Context) (map[string]time.Time, error) {
	raw, err := s.rdb.HGetAll(ctx, s.keys.cooldowns()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cooldowns: %w", err)
	}

	out := make(map[string]time.Time, len(raw))
	for id, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed cooldown entry", "contributor_id", id, "value", v)
			continue
		}
		out[id] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

func (s *CooldownStore) RecordCooldown(ctx context.Context, contributorID string, at time.Time) error {
	if err := s.rdb.HSet(ctx, s.keys.cooldowns(), contributorID, at.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("failed to record cooldown: %w", err)
	}
	return nil
}

func (s *CooldownStore) DeleteCooldowns(ctx context.Context, contributorIDs []string) error {
	if len(contributorIDs) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, s.keys.cooldowns(), contributorIDs...).Err(); err != nil {
		return fmt.Errorf("failed to delete cooldowns: %w", err)
	}
	return nil
}
