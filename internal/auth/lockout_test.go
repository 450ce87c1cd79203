// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratcap/identity/internal/auth"
	"github.com/stratcap/identity/internal/platform/apperr"
)

/*
TestLockoutPolicy_BelowThreshold verifies that an identity with fewer failures
than the threshold passes the lockout gate.
*/
func TestLockoutPolicy_BelowThreshold(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	// 1. Record four failures, one short of the threshold
	for i := 0; i < 4; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}

	// 2. The gate stays open
	assert.NoError(t, policy.Check(ctx, "trader@stratcap.io"))
	assert.False(t, policy.IsLocked(ctx, "trader@stratcap.io"))
}

/*
TestLockoutPolicy_LocksAtThreshold verifies that the fifth failure inside the
window trips the lock and the error carries the ACCOUNT_LOCKED code.
*/
func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}

	err := policy.Check(ctx, "trader@stratcap.io")
	require.Error(t, err)
	assert.Equal(t, auth.CodeAccountLocked, apperr.CodeOf(err))
	assert.True(t, policy.IsLocked(ctx, "trader@stratcap.io"))
}

/*
TestLockoutPolicy_WindowExpiry verifies that failures older than the rolling
window no longer count toward the lock.
*/
func TestLockoutPolicy_WindowExpiry(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	// 1. Five failures, all backdated past the window
	stale := time.Now().Add(-31 * time.Minute)
	for i := 0; i < 5; i++ {
		attempts.seedFailure("trader@stratcap.io", stale)
	}

	// 2. They are invisible to the gate
	assert.NoError(t, policy.Check(ctx, "trader@stratcap.io"))

	// 3. A fresh batch still locks
	for i := 0; i < 5; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}
	assert.Error(t, policy.Check(ctx, "trader@stratcap.io"))
}

/*
TestLockoutPolicy_ClearResets verifies that clearing failures after a
successful authentication fully resets the counter.
*/
func TestLockoutPolicy_ClearResets(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}
	require.Error(t, policy.Check(ctx, "trader@stratcap.io"))

	require.NoError(t, policy.Clear(ctx, "trader@stratcap.io"))

	assert.NoError(t, policy.Check(ctx, "trader@stratcap.io"))
	count, err := attempts.CountFailuresSince(ctx, "trader@stratcap.io", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

/*
TestLockoutPolicy_ScopedByEmail verifies that failures against one identity
never affect another.
*/
func TestLockoutPolicy_ScopedByEmail(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}

	assert.Error(t, policy.Check(ctx, "trader@stratcap.io"))
	assert.NoError(t, policy.Check(ctx, "analyst@stratcap.io"))
}

/*
TestLockoutPolicy_SuccessRowsDoNotCount verifies that recorded successes are
audit-only and never contribute to the failure count.
*/
func TestLockoutPolicy_SuccessRowsDoNotCount(t *testing.T) {
	attempts := newMemLoginAttemptRepository()
	policy := auth.NewLockoutPolicy(attempts, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, policy.RecordSuccess(ctx, "trader@stratcap.io", "10.0.0.1"))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, policy.RecordFailure(ctx, "trader@stratcap.io", "10.0.0.1"))
	}

	assert.NoError(t, policy.Check(ctx, "trader@stratcap.io"))
}
