package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPolicy_LocksOnThirdFailure(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	r1 := loginLockoutPolicy.RecordFailure(&state, now)
	assert.False(t, r1.Locked)
	assert.Equal(t, 2, r1.AttemptsRemaining)

	r2 := loginLockoutPolicy.RecordFailure(&state, now)
	assert.False(t, r2.Locked)
	assert.Equal(t, 1, r2.AttemptsRemaining)

	r3 := loginLockoutPolicy.RecordFailure(&state, now)
	assert.True(t, r3.Locked)
	assert.Equal(t, 15*time.Minute, r3.LockDuration)
	require.NotNil(t, state.LockedUntil)
	assert.Equal(t, 1, state.TotalLockouts)
}

func TestLoginPolicy_EscalationSchedule(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	want := []time.Duration{
		15 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
		60 * time.Minute, // schedule exhausted, last entry repeats
	}

	for i, expected := range want {
		// Fail up to the lock, then simulate the lock elapsing.
		var result AttemptResult
		for j := 0; j < loginLockoutPolicy.Threshold; j++ {
			result = loginLockoutPolicy.RecordFailure(&state, now)
		}
		assert.True(t, result.Locked, "round %d should lock", i)
		assert.Equal(t, expected, result.LockDuration, "round %d duration", i)

		after := state.LockedUntil.Add(time.Second)
		check := loginLockoutPolicy.Check(&state, after)
		assert.True(t, check.Allowed)
		assert.True(t, check.Cleared)
		now = after
	}

	assert.Equal(t, len(want), state.TotalLockouts)
}

func TestRecoveryPolicy_LocksOnFourthAttempt(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	// Three requests are answered normally.
	for i := 0; i < 3; i++ {
		r := recoveryLockoutPolicy.RecordFailure(&state, now)
		assert.False(t, r.Locked, "attempt %d", i+1)
	}
	assert.Equal(t, 0, state.TotalLockouts)

	// The fourth locks.
	r := recoveryLockoutPolicy.RecordFailure(&state, now)
	assert.True(t, r.Locked)
	assert.Equal(t, 15*time.Minute, r.LockDuration)
}

func TestRecoveryPolicy_EscalationIncludes120(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	want := []time.Duration{
		15 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
		120 * time.Minute,
		120 * time.Minute,
	}

	for i, expected := range want {
		var result AttemptResult
		for !result.Locked {
			result = recoveryLockoutPolicy.RecordFailure(&state, now)
		}
		assert.Equal(t, expected, result.LockDuration, "lockout %d", i+1)

		after := state.LockedUntil.Add(time.Second)
		check := recoveryLockoutPolicy.Check(&state, after)
		assert.True(t, check.Allowed)
		now = after
	}
}

func TestRecoveryPolicy_WindowResetsCounter(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	recoveryLockoutPolicy.RecordFailure(&state, now)
	recoveryLockoutPolicy.RecordFailure(&state, now)
	assert.Equal(t, 2, state.FailedCount)

	// Past the sliding window the count restarts.
	later := now.Add(recoveryLockoutPolicy.Window + time.Minute)
	r := recoveryLockoutPolicy.RecordFailure(&state, later)
	assert.Equal(t, 1, state.FailedCount)
	assert.False(t, r.Locked)
}

func TestCheck_ActiveLockReportsMinutes(t *testing.T) {
	now := time.Now()
	until := now.Add(10*time.Minute + 30*time.Second)
	state := LockoutState{FailedCount: 3, LockedUntil: &until}

	check := loginLockoutPolicy.Check(&state, now)
	assert.False(t, check.Allowed)
	assert.Equal(t, 11, check.MinutesRemaining) // rounds up
}

func TestCheck_LazyClearResetsCounter(t *testing.T) {
	now := time.Now()
	until := now.Add(-time.Minute)
	state := LockoutState{FailedCount: 3, LockedUntil: &until, TotalLockouts: 2}

	check := loginLockoutPolicy.Check(&state, now)
	assert.True(t, check.Allowed)
	assert.True(t, check.Cleared)
	assert.Nil(t, state.LockedUntil)
	assert.Equal(t, 0, state.FailedCount)
	// Escalation history survives the clear.
	assert.Equal(t, 2, state.TotalLockouts)
}

func TestRecordSuccess_KeepsLockoutHistory(t *testing.T) {
	now := time.Now()
	state := LockoutState{}

	for i := 0; i < 3; i++ {
		loginLockoutPolicy.RecordFailure(&state, now)
	}
	after := state.LockedUntil.Add(time.Second)
	loginLockoutPolicy.Check(&state, after)

	loginLockoutPolicy.RecordFailure(&state, after)
	loginLockoutPolicy.RecordSuccess(&state)

	assert.Equal(t, 0, state.FailedCount)
	assert.Nil(t, state.LastFailure)
	assert.Equal(t, 1, state.TotalLockouts)
}
