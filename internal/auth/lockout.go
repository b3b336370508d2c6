// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"time"
)

// Lockout defaults.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that triggers a lockout.
	DefaultLockoutThreshold = 5

	// DefaultLockoutCooldown is how long an account stays locked once the threshold is reached.
	DefaultLockoutCooldown = 5 * time.Minute
)

// LockoutPolicy decides whether an account may attempt a login. It holds no
// state; callers pass the persisted counter and lock expiry.
type LockoutPolicy struct {
	Threshold int
	Cooldown  time.Duration
}

// DefaultLockoutPolicy returns the policy used when none is configured.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Cooldown:  DefaultLockoutCooldown,
	}
}

// LockoutDecision is the result of evaluating a LockoutPolicy.
// The zero value means the attempt is allowed.
type LockoutDecision struct {
	Locked bool
	Until  time.Time
}

// Evaluate returns Locked while now is before lockedUntil and Allowed otherwise.
// The failure count alone never locks an account; the lock is materialized by
// RecordFailure when the threshold is crossed.
func (p LockoutPolicy) Evaluate(_ int, lockedUntil *time.Time, now time.Time) LockoutDecision {
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return LockoutDecision{Locked: true, Until: *lockedUntil}
	}
	return LockoutDecision{}
}

// RecordFailure returns the counter after one more failure and, when the new
// count reaches the threshold, the lock expiry starting at now.
func (p LockoutPolicy) RecordFailure(failures int, now time.Time) (int, *time.Time) {
	failures++
	if failures < p.Threshold {
		return failures, nil
	}
	until := now.Add(p.Cooldown)
	return failures, &until
}

// RecordSuccess returns the counter and lock expiry after a successful login.
func (p LockoutPolicy) RecordSuccess() (int, *time.Time) {
	return 0, nil
}
