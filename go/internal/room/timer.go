package room

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// deferred is a one-shot callback that can be cancelled any number of times.
type deferred struct {
	timer    clockwork.Timer
	deadline time.Time
}

func schedule(clock clockwork.Clock, d time.Duration, fn func()) *deferred {
	return &deferred{
		timer:    clock.AfterFunc(d, fn),
		deadline: clock.Now().Add(d),
	}
}

// stop is safe on a nil or already fired timer.
func (t *deferred) stop() {
	if t == nil || t.timer == nil {
		return
	}
	t.timer.Stop()
}

// replaceActiveTimer cancels any pending question timer before installing next.
func (r *Room) replaceActiveTimer(next *deferred) {
	r.activeTimer.stop()
	r.activeTimer = next
}

func (r *Room) cancelActiveTimer() {
	r.activeTimer.stop()
	r.activeTimer = nil
}

func (r *Room) cancelRankingTimer() {
	r.rankingTimer.stop()
	r.rankingTimer = nil
}

func (r *Room) cancelTimers() {
	r.cancelActiveTimer()
	r.cancelRankingTimer()
}
