package usecase_session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler hands out cancellable deferred callbacks. Backed by a clockwork
// clock so tests can advance virtual time instead of sleeping.
type Scheduler struct {
	clock clockwork.Clock
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// After schedules fn to run once d has elapsed and returns a token that can
// cancel it. Cancellation after firing is a no-op.
func (s *Scheduler) After(d time.Duration, fn func()) *TimerToken {
	return &TimerToken{timer: s.clock.AfterFunc(d, fn)}
}

type TimerToken struct {
	timer clockwork.Timer
}

func (t *TimerToken) Cancel() {
	if t == nil {
		return
	}
	t.timer.Stop()
}
