package hearth

import (
	"time"

	"github.com/pscheid92/hearth/internal/domain"
)

// Observer receives engine events for metrics. Calls happen while the engine
// lock is held, so implementations must not call back into the Engine.
type Observer interface {
	ContributionAccepted(result domain.Result)
	OperationRejected(op string, reason domain.Reason)
	ProtectionActivated(duration time.Duration)
	TickCompleted(report TickReport, elapsed time.Duration)
	IntensityObserved(intensity float64, activeContributions int)
	PersistFailed(op string)
}

type noopObserver struct{}

func (noopObserver) ContributionAccepted(domain.Result) {}
func (noopObserver) OperationRejected(string, domain.Reason) {}
func (noopObserver) ProtectionActivated(time.Duration) {}
func (noopObserver) TickCompleted(TickReport, time.Duration) {}
func (noopObserver) IntensityObserved(float64, int) {}
func (noopObserver) PersistFailed(string) {}
