package hearth

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/hearth/internal/domain"
)

// CooldownGuard enforces the per-contributor minimum interval between
// contributions. It owns the cooldown records; the Engine serializes access.
type CooldownGuard struct {
	store   domain.CooldownStore
	window  time.Duration
	entries map[string]time.Time
}

func NewCooldownGuard(store domain.CooldownStore, window time.Duration) *CooldownGuard {
	return &CooldownGuard{
		store:   store,
		window:  window,
		entries: make(map[string]time.Time),
	}
}

// Load replaces the in-memory records with the persisted ones.
func (g *CooldownGuard) Load(ctx context.Context) error {
	entries, err := g.store.LoadCooldowns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cooldowns: %w", err)
	}
	g.entries = make(map[string]time.Time, len(entries))
	for id, at := range entries {
		g.entries[id] = at
	}
	return nil
}

// CanContribute is a pure function of the last recorded timestamp. When not
// allowed, retryAt is the first instant at which the contributor may contribute again.
func (g *CooldownGuard) CanContribute(contributorID string, now time.Time) (ok bool, retryAt time.Time) {
	last, exists := g.entries[contributorID]
	if !exists {
		return true, time.Time{}
	}
	retryAt = last.Add(g.window)
	if !now.Before(retryAt) {
		return true, time.Time{}
	}
	return false, retryAt
}

// RecordContribution marks a successful contribution. The in-memory record is
// updated even when persisting it fails.
func (g *CooldownGuard) RecordContribution(ctx context.Context, contributorID string, now time.Time) error {
	g.entries[contributorID] = now
	if err := g.store.RecordCooldown(ctx, contributorID, now); err != nil {
		return fmt.Errorf("failed to persist cooldown for %s: %w", contributorID, err)
	}
	return nil
}

// Prune drops records whose cooldown has fully elapsed. Returns the number removed.
func (g *CooldownGuard) Prune(ctx context.Context, now time.Time) (int, error) {
	var stale []string
	for id, last := range g.entries {
		if now.Sub(last) > g.window {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := g.store.DeleteCooldowns(ctx, stale); err != nil {
		return 0, fmt.Errorf("failed to delete %d cooldowns: %w", len(stale), err)
	}
	for _, id := range stale {
		delete(g.entries, id)
	}
	return len(stale), nil
}

func (g *CooldownGuard) Len() int {
	return len(g.entries)
}
