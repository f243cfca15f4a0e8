package auth

import (
	"math"
	"time"
)

// LockoutPolicy turns repeated failures into escalating timed locks.
// Login and recovery run separate policies over separate counter sets.
type LockoutPolicy struct {
	// Threshold is the failure count at which the lock engages.
	Threshold int

	// LockOnExceed delays the lock by one attempt: the Threshold-th
	// failure is still answered normally and the lock engages on the
	// next one. The recovery flow uses this so the allowed number of
	// code requests matches the threshold.
	LockOnExceed bool

	// Schedule holds lock durations indexed by how many times the
	// account has locked before. Past the end the last entry repeats.
	Schedule []time.Duration

	// Window, when non-zero, makes the counter sliding: a failure
	// recorded after the window has elapsed since the previous one
	// restarts the count.
	Window time.Duration
}

var (
	loginLockoutPolicy = LockoutPolicy{
		Threshold: 3,
		Schedule: []time.Duration{
			15 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
		},
	}

	recoveryLockoutPolicy = LockoutPolicy{
		Threshold:    3,
		LockOnExceed: true,
		Window:       15 * time.Minute,
		Schedule: []time.Duration{
			15 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
			120 * time.Minute,
		},
	}
)

// LockoutState is the per-user, per-flow counter set the policy operates
// on. It is loaded from and written back to the user row; the engine
// itself holds no state.
type LockoutState struct {
	FailedCount   int
	LockedUntil   *time.Time
	TotalLockouts int
	LastFailure   *time.Time
}

// AttemptCheck is the answer to "may this attempt proceed".
type AttemptCheck struct {
	Allowed          bool
	MinutesRemaining int

	// Cleared reports that an elapsed lock was lazily removed; the
	// mutated state must be persisted even though the attempt proceeds.
	Cleared bool
}

// Check applies the lazy-unlock rule: an elapsed lock is cleared and the
// failure counter reset before any further bookkeeping runs, so lockout
// state stays correct without a background job.
func (p LockoutPolicy) Check(state *LockoutState, now time.Time) AttemptCheck {
	if state.LockedUntil == nil {
		return AttemptCheck{Allowed: true}
	}
	if now.Before(*state.LockedUntil) {
		mins := int(math.Ceil(state.LockedUntil.Sub(now).Minutes()))
		if mins < 1 {
			mins = 1
		}
		return AttemptCheck{MinutesRemaining: mins}
	}
	state.LockedUntil = nil
	state.FailedCount = 0
	return AttemptCheck{Allowed: true, Cleared: true}
}

// AttemptResult is the outcome of recording one failure.
type AttemptResult struct {
	Locked            bool
	LockDuration      time.Duration
	AttemptsRemaining int
}

// RecordFailure increments the counter, restarting it first if the
// sliding window has elapsed, and engages the lock once the count
// reaches the policy's limit. TotalLockouts increments with every new
// lock and never decrements; it drives the escalation schedule.
func (p LockoutPolicy) RecordFailure(state *LockoutState, now time.Time) AttemptResult {
	if p.Window > 0 && state.LastFailure != nil && now.Sub(*state.LastFailure) > p.Window {
		state.FailedCount = 0
	}

	state.FailedCount++
	ts := now
	state.LastFailure = &ts

	if state.FailedCount >= p.locksAt() {
		d := p.lockDuration(state.TotalLockouts)
		until := now.Add(d)
		state.LockedUntil = &until
		state.TotalLockouts++
		return AttemptResult{Locked: true, LockDuration: d}
	}

	remaining := p.Threshold - state.FailedCount
	if remaining < 0 {
		remaining = 0
	}
	return AttemptResult{AttemptsRemaining: remaining}
}

// RecordSuccess resets the failure counter unconditionally. The lockout
// history is kept so escalation survives a good login.
func (p LockoutPolicy) RecordSuccess(state *LockoutState) {
	state.FailedCount = 0
	state.LastFailure = nil
}

func (p LockoutPolicy) locksAt() int {
	if p.LockOnExceed {
		return p.Threshold + 1
	}
	return p.Threshold
}

func (p LockoutPolicy) lockDuration(totalLockouts int) time.Duration {
	if totalLockouts >= len(p.Schedule) {
		return p.Schedule[len(p.Schedule)-1]
	}
	return p.Schedule[totalLockouts]
}
