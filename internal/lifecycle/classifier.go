// Package lifecycle classifies an auction into upcoming, active or ended from
// its start and end instants.
package lifecycle

import "time"

// Phase is the lifecycle state of an auction at a given instant
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseActive   Phase = "active"
	PhaseEnded    Phase = "ended"
)

// Remaining is a truncated breakdown of the time left until the next transition
type Remaining struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// State is the result of classifying an auction at one instant.
// Remaining is zero when Phase is PhaseEnded.
type State struct {
	Phase     Phase     `json:"phase"`
	Remaining Remaining `json:"remaining"`
}

// Classify maps now onto [startTime, endTime). startTime must be before endTime.
func Classify(now, startTime, endTime time.Time) State {
	switch {
	case now.Before(startTime):
		return State{Phase: PhaseUpcoming, Remaining: Breakdown(startTime.Sub(now))}
	case now.Before(endTime):
		return State{Phase: PhaseActive, Remaining: Breakdown(endTime.Sub(now))}
	default:
		return State{Phase: PhaseEnded}
	}
}

// Breakdown splits d into days, hours, minutes and seconds without rounding
func Breakdown(d time.Duration) Remaining {
	if d <= 0 {
		return Remaining{}
	}
	secs := int64(d / time.Second)
	return Remaining{
		Days:    int(secs / 86400),
		Hours:   int(secs / 3600 % 24),
		Minutes: int(secs / 60 % 60),
		Seconds: int(secs % 60),
	}
}

// IsActive reports whether bids may be accepted at now
func IsActive(now, startTime, endTime time.Time) bool {
	return Classify(now, startTime, endTime).Phase == PhaseActive
}
