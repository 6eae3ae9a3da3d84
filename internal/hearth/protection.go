package hearth

import (
	"time"

	"github.com/pscheid92/hearth/internal/domain"
)

// ProtectionOverlay manages the stackable decay-suppression window. Expiry is
// lazy: a read that finds EndsAt <= now clears the window before answering.
type ProtectionOverlay struct {
	window *domain.ProtectionWindow
}

func NewProtectionOverlay(window *domain.ProtectionWindow) *ProtectionOverlay {
	return &ProtectionOverlay{window: window}
}

// Activate opens the window, or extends it by duration when already active.
// Returns the new end of the window.
func (p *ProtectionOverlay) Activate(contributorID, label string, duration time.Duration, now time.Time) time.Time {
	p.ExpireIfDue(now)

	if p.window.Active {
		p.window.EndsAt = laterOf(now, p.window.EndsAt).Add(duration)
	} else {
		p.window.Active = true
		p.window.EndsAt = now.Add(duration)
		p.window.ActivatedBy = contributorID
		p.window.Contributors = nil
	}
	p.window.Contributors = append(p.window.Contributors, domain.ProtectionContributor{
		ContributorID: contributorID,
		Label:         label,
		Duration:      duration,
	})
	return p.window.EndsAt
}

// IsActive reports whether decay is suppressed at now, clearing an elapsed window.
func (p *ProtectionOverlay) IsActive(now time.Time) bool {
	p.ExpireIfDue(now)
	return p.window.Active
}

// RemainingTime is zero when the window is inactive or elapsed.
func (p *ProtectionOverlay) RemainingTime(now time.Time) time.Duration {
	if !p.IsActive(now) {
		return 0
	}
	return p.window.EndsAt.Sub(now)
}

// ExpireIfDue clears the window when it has elapsed and reports whether it did.
// An active window without an end is treated as elapsed.
func (p *ProtectionOverlay) ExpireIfDue(now time.Time) bool {
	if !p.window.Active {
		return false
	}
	if !p.window.EndsAt.IsZero() && p.window.EndsAt.After(now) {
		return false
	}
	*p.window = domain.ProtectionWindow{}
	return true
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
