// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/stratcap/identity/pkg/uuidv7"
)

// LockoutPolicy decides whether login is permitted for an identity based on
// its recent failed-attempt history.
//
// # Keying
//
// The policy is keyed by the submitted email, not a resolved user ID, so
// repeated attempts against an unknown address are throttled identically to
// attempts against a real account.
type LockoutPolicy struct {
	attempts  LoginAttemptRepository
	threshold int
	window    time.Duration
}

// NewLockoutPolicy creates a policy with the configured threshold and trailing window.
// Both values come from configuration so operators can tune them without redeploy.
func NewLockoutPolicy(attempts LoginAttemptRepository, threshold int, window time.Duration) *LockoutPolicy {
	return &LockoutPolicy{
		attempts:  attempts,
		threshold: threshold,
		window:    window,
	}
}

/*
Check fails with an account-locked error when the count of failed attempts
inside the trailing window has reached the threshold.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: errAccountLocked, or attempt-log retrieval failures
*/
func (policy *LockoutPolicy) Check(context context.Context, email string) error {
	count, err := policy.attempts.CountFailuresSince(context, email, time.Now().Add(-policy.window))
	if err != nil {
		return fmt.Errorf("lockout_policy_check_failed: %w", err)
	}

	if count >= policy.threshold {
		return errAccountLocked()
	}

	return nil
}

/*
RecordFailure appends a failed attempt for the email.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - error: Persistence failures
*/
func (policy *LockoutPolicy) RecordFailure(context context.Context, email, ipAddress string) error {
	attempt := &LoginAttempt{
		ID:        uuidv7.New(),
		Email:     email,
		Succeeded: false,
		IPAddress: ipAddress,
	}

	if err := policy.attempts.Record(context, attempt); err != nil {
		return fmt.Errorf("lockout_policy_record_failure_failed: %w", err)
	}

	return nil
}

/*
RecordSuccess appends a successful attempt for the email. The attempt log is
append-only; success rows are kept for audit alongside the cleared failures.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - error: Persistence failures
*/
func (policy *LockoutPolicy) RecordSuccess(context context.Context, email, ipAddress string) error {
	attempt := &LoginAttempt{
		ID:        uuidv7.New(),
		Email:     email,
		Succeeded: true,
		IPAddress: ipAddress,
	}

	if err := policy.attempts.Record(context, attempt); err != nil {
		return fmt.Errorf("lockout_policy_record_success_failed: %w", err)
	}

	return nil
}

/*
Clear deletes the failed-attempt history for the email. Called on successful
login so the counter restarts from zero.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Persistence failures
*/
func (policy *LockoutPolicy) Clear(context context.Context, email string) error {
	if err := policy.attempts.ClearFailures(context, email); err != nil {
		return fmt.Errorf("lockout_policy_clear_failed: %w", err)
	}
	return nil
}

// IsLocked reports whether the email is currently under lockout. Retrieval
// failures are reported as not locked to keep the read path non-fatal.
func (policy *LockoutPolicy) IsLocked(context context.Context, email string) bool {
	count, err := policy.attempts.CountFailuresSince(context, email, time.Now().Add(-policy.window))
	if err != nil {
		return false
	}
	return count >= policy.threshold
}
