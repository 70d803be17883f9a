package auth

import (
	"time"
)

// Clock supplies the current time. Injected so the lockout-window math is
// deterministic under test; nothing in this package reads the global clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// LoginState is the failure-tracking snapshot of an account. Invariant:
// Attempts >= 0, and LastFailedAt is non-nil iff Attempts > 0.
type LoginState struct {
	Attempts     int
	LastFailedAt *time.Time
}

// LockoutDecision is the outcome of evaluating a login attempt against the
// lockout policy.
type LockoutDecision struct {
	Allowed bool
	// WindowExpired is true when the attempt is allowed only because the
	// lockout window has elapsed; the caller must persist the reset state
	// before verifying credentials.
	WindowExpired bool
	// RetryAfter is the whole number of seconds until the window elapses.
	// Zero unless the attempt is refused.
	RetryAfter int
}

// LockoutPolicy decides whether a login attempt may proceed given the failure
// history and the clock. It is a pure state machine: Unlocked while attempts
// are below the threshold or the window has elapsed, Locked otherwise.
type LockoutPolicy struct {
	FailureThreshold int
	LockoutWindow    time.Duration
}

// NewLockoutPolicy applies the defaults (3 failures, 60s window) for
// non-positive arguments.
func NewLockoutPolicy(threshold int, window time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return LockoutPolicy{FailureThreshold: threshold, LockoutWindow: window}
}

// Evaluate inspects the state at the given instant.
func (p LockoutPolicy) Evaluate(state LoginState, now time.Time) LockoutDecision {
	if state.Attempts < p.FailureThreshold {
		return LockoutDecision{Allowed: true}
	}
	if state.LastFailedAt == nil {
		// Attempts at threshold without a failure timestamp violates the
		// state invariant; fail open rather than locking the account forever.
		return LockoutDecision{Allowed: true, WindowExpired: true}
	}
	elapsed := now.Sub(*state.LastFailedAt)
	if elapsed >= p.LockoutWindow {
		return LockoutDecision{Allowed: true, WindowExpired: true}
	}
	remaining := p.LockoutWindow - elapsed
	retryAfter := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		retryAfter++
	}
	return LockoutDecision{RetryAfter: retryAfter}
}

// RecordFailure returns the state after one more failed attempt at now.
func (p LockoutPolicy) RecordFailure(state LoginState, now time.Time) LoginState {
	return LoginState{Attempts: state.Attempts + 1, LastFailedAt: &now}
}

// RecordSuccess returns the cleared state.
func (p LockoutPolicy) RecordSuccess(LoginState) LoginState {
	return LoginState{}
}
