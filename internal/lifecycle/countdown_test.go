package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func receiveState(t *testing.T, states <-chan State) State {
	t.Helper()
	select {
	case s := <-states:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown tick")
		return State{}
	}
}

func TestCountdown_TicksUntilEnded(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	start := now.Add(-time.Minute)
	end := now.Add(2 * time.Second)

	states := make(chan State, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Countdown(context.Background(), clock, start, end, func(s State) { states <- s })
	}()

	first := receiveState(t, states)
	require.Equal(t, PhaseActive, first.Phase)
	require.Equal(t, Remaining{Seconds: 2}, first.Remaining)

	clock.Advance(time.Second)
	second := receiveState(t, states)
	require.Equal(t, PhaseActive, second.Phase)
	require.Equal(t, Remaining{Seconds: 1}, second.Remaining)

	clock.Advance(time.Second)
	last := receiveState(t, states)
	require.Equal(t, PhaseEnded, last.Phase)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not stop after the auction ended")
	}
}

func TestCountdown_StopsOnCancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	ctx, cancel := context.WithCancel(context.Background())
	states := make(chan State, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Countdown(ctx, clock, now.Add(time.Hour), now.Add(2*time.Hour), func(s State) { states <- s })
	}()

	first := receiveState(t, states)
	require.Equal(t, PhaseUpcoming, first.Phase)
	require.Equal(t, Remaining{Hours: 1}, first.Remaining)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown ignored cancellation")
	}
}

func TestCountdown_EndedAuctionReportsOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	var got []State
	Countdown(context.Background(), clock, now.Add(-2*time.Hour), now.Add(-time.Hour), func(s State) { got = append(got, s) })

	require.Len(t, got, 1)
	require.Equal(t, PhaseEnded, got[0].Phase)
}
