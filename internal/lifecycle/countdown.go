package lifecycle

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is how often Countdown re-classifies an auction
const TickInterval = time.Second

// Countdown calls fn with a fresh State immediately and then once per tick
// until ctx is cancelled or the auction has ended. The Ended state is always
// delivered before returning unless ctx is cancelled first. Ticks are
// independent: only the latest State matters to a viewer.
func Countdown(ctx context.Context, clock clockwork.Clock, startTime, endTime time.Time, fn func(State)) {
	ticker := clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		state := Classify(clock.Now(), startTime, endTime)
		fn(state)
		if state.Phase == PhaseEnded {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
