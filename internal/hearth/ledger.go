package hearth

import (
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/hearth/internal/domain"
)

// Ledger tracks active contributions on an IntensityState. It is a pure data
// structure: rate limiting is the caller's job, and pruning never touches intensity.
type Ledger struct {
	state    *domain.IntensityState
	bonus    float64
	lifetime time.Duration
	newID    func() string
}

func NewLedger(state *domain.IntensityState, bonus float64, lifetime time.Duration) *Ledger {
	return &Ledger{
		state:    state,
		bonus:    bonus,
		lifetime: lifetime,
		newID:    uuid.NewString,
	}
}

// Add appends a contribution and raises intensity by the bonus, clamped to MaxIntensity.
func (l *Ledger) Add(contributorID, label string, now time.Time) (newIntensity float64, activeCount int) {
	c := domain.Contribution{
		ID:            l.newID(),
		ContributorID: contributorID,
		Label:         label,
		AddedAt:       now,
	}
	l.state.ActiveContributions = append(l.state.ActiveContributions, c)
	l.state.Intensity = domain.ClampIntensity(l.state.Intensity + l.bonus)
	return l.state.Intensity, len(l.state.ActiveContributions)
}

// PruneExpired removes every contribution whose age is >= the lifetime and
// returns how many were removed. Insertion order of the survivors is kept.
func (l *Ledger) PruneExpired(now time.Time) int {
	kept := l.state.ActiveContributions[:0]
	expired := 0
	for _, c := range l.state.ActiveContributions {
		if l.isExpired(c, now) {
			expired++
			continue
		}
		kept = append(kept, c)
	}
	clear(l.state.ActiveContributions[len(kept):])
	l.state.ActiveContributions = kept
	return expired
}

func (l *Ledger) ActiveCount() int {
	return len(l.state.ActiveContributions)
}

// ActiveCountAt counts the contributions still active at now without pruning.
func (l *Ledger) ActiveCountAt(now time.Time) int {
	n := 0
	for _, c := range l.state.ActiveContributions {
		if !l.isExpired(c, now) {
			n++
		}
	}
	return n
}

// OldestActive returns the contribution with the earliest AddedAt, ties broken
// by insertion order, or nil when the ledger is empty.
func (l *Ledger) OldestActive() *domain.Contribution {
	return l.oldest(func(domain.Contribution) bool { return true })
}

// NextExpiryAt returns when the oldest contribution still active at now expires.
func (l *Ledger) NextExpiryAt(now time.Time) (time.Time, bool) {
	c := l.oldest(func(c domain.Contribution) bool { return !l.isExpired(c, now) })
	if c == nil {
		return time.Time{}, false
	}
	return c.AddedAt.Add(l.lifetime), true
}

func (l *Ledger) oldest(include func(domain.Contribution) bool) *domain.Contribution {
	var oldest *domain.Contribution
	for i := range l.state.ActiveContributions {
		c := &l.state.ActiveContributions[i]
		if !include(*c) {
			continue
		}
		if oldest == nil || c.AddedAt.Before(oldest.AddedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil
	}
	out := *oldest
	return &out
}

func (l *Ledger) isExpired(c domain.Contribution, now time.Time) bool {
	return now.Sub(c.AddedAt) >= l.lifetime
}
