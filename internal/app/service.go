package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hearth/internal/domain"
	"github.com/pscheid92/hearth/internal/hearth"
)

const publishTimeout = 2 * time.Second

// ErrUnsupported is returned by ops operations the configured backends cannot serve.
var ErrUnsupported = errors.New("operation not supported by the configured backend")

// seasonResetter is implemented by *hearth.Engine.
type seasonResetter interface {
	ResetSeason(ctx context.Context, now time.Time) domain.StatusView
}

// unitGranter is implemented by the Redis inventory.
type unitGranter interface {
	Grant(ctx context.Context, contributorID string, n int64) (int64, error)
}

// Service is the application layer. It gates contributions on the
// contribution source and pushes every state change to the publisher.
type Service struct {
	engine    domain.Engine
	source    domain.ContributionSource
	publisher domain.StatusPublisher
	clock     clockwork.Clock
}

// NewService creates the application layer service.
// source defaults to UnlimitedInventory and publisher may be nil.
func NewService(engine domain.Engine, source domain.ContributionSource, publisher domain.StatusPublisher, clock clockwork.Clock) *Service {
	if source == nil {
		source = UnlimitedInventory{}
	}
	return &Service{
		engine:    engine,
		source:    source,
		publisher: publisher,
		clock:     clock,
	}
}

// AddContribution spends one unit of the contributor's inventory on the hearth.
// The unit is consumed only when the engine accepted the contribution.
func (s *Service) AddContribution(ctx context.Context, contributorID, label string) domain.Result {
	now := s.clock.Now()
	if contributorID == "" {
		return s.engine.Contribute(ctx, contributorID, label, now)
	}

	has, err := s.source.HasUnit(ctx, contributorID)
	if err != nil {
		slog.ErrorContext(ctx, "Inventory check failed", "contributor_id", contributorID, "error", err)
		return s.rejected(ctx, now, domain.ReasonUnavailable, "Your inventory could not be checked right now. Please try again.")
	}
	if !has {
		return s.rejected(ctx, now, domain.ReasonNoUnit, "You have nothing to add to the hearth.")
	}

	result := s.engine.Contribute(ctx, contributorID, label, now)
	if !result.OK {
		return result
	}

	if err := s.source.ConsumeUnit(ctx, contributorID); err != nil {
		// The contribution already counted; losing the consume is the lesser harm.
		slog.ErrorContext(ctx, "Failed to consume unit after contribution", "contributor_id", contributorID, "error", err)
	}

	s.publish(ctx, now)
	return result
}

// ActivateProtection opens or extends the protection window.
func (s *Service) ActivateProtection(ctx context.Context, contributorID, label string, duration time.Duration) domain.Result {
	now := s.clock.Now()
	result := s.engine.Protect(ctx, contributorID, label, duration, now)
	if result.OK {
		s.publish(ctx, now)
	}
	return result
}

func (s *Service) Status(ctx context.Context) domain.StatusView {
	return s.engine.Status(ctx, s.clock.Now())
}

func (s *Service) CurrentMultiplier(ctx context.Context) float64 {
	return s.engine.CurrentMultiplier(ctx)
}

// PublishAfterTick is a scheduler tick hook. It publishes only ticks that
// changed what a viewer would see.
func (s *Service) PublishAfterTick(ctx context.Context, report hearth.TickReport) {
	if report.Periods > 0 || report.Expired > 0 {
		s.publish(ctx, s.clock.Now())
	}
}

// ResetSeason relights the hearth for a new season.
func (s *Service) ResetSeason(ctx context.Context) (domain.StatusView, error) {
	resetter, ok := s.engine.(seasonResetter)
	if !ok {
		return domain.StatusView{}, fmt.Errorf("season reset: %w", ErrUnsupported)
	}

	now := s.clock.Now()
	view := resetter.ResetSeason(ctx, now)
	s.publishView(ctx, view)
	return view, nil
}

// GrantUnits adds n units to a contributor's inventory and returns the new balance.
func (s *Service) GrantUnits(ctx context.Context, contributorID string, n int64) (int64, error) {
	if contributorID == "" {
		return 0, domain.ErrInvalidContributor
	}
	if n <= 0 {
		return 0, fmt.Errorf("units must be positive, got %d", n)
	}

	granter, ok := s.source.(unitGranter)
	if !ok {
		return 0, fmt.Errorf("grant units: %w", ErrUnsupported)
	}

	units, err := granter.Grant(ctx, contributorID, n)
	if err != nil {
		return 0, fmt.Errorf("failed to grant units: %w", err)
	}

	slog.InfoContext(ctx, "Units granted", "contributor_id", contributorID, "granted", n, "units", units)
	return units, nil
}

func (s *Service) rejected(ctx context.Context, now time.Time, reason domain.Reason, message string) domain.Result {
	view := s.engine.Status(ctx, now)
	return domain.Result{
		Reason:              reason,
		Message:             message,
		PreviousIntensity:   view.Intensity,
		NewIntensity:        view.Intensity,
		Band:                view.Band,
		ActiveContributions: view.ActiveContributionCount,
	}
}

func (s *Service) publish(ctx context.Context, now time.Time) {
	if s.publisher == nil {
		return
	}
	s.publishView(ctx, s.engine.Status(ctx, now))
}

func (s *Service) publishView(ctx context.Context, view domain.StatusView) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishStatus(pubCtx, view); err != nil {
		slog.WarnContext(ctx, "Status publish failed", "error", err)
	}
}
