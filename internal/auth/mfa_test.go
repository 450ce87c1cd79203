// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratcap/identity/internal/auth"
	"github.com/stratcap/identity/internal/platform/apperr"
)

// enrollMFA drives the full setup+enable flow and returns the clear backup codes.
func enrollMFA(t *testing.T, env *testEnv, userID string) (secret string, backupCodes []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.service.SetupMFA(ctx, userID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.service.EnableMFA(ctx, userID, code))

	return setup.Secret, setup.BackupCodes
}

/*
TestMFA_SetupThenEnable verifies the two-phase enrollment: setup provisions a
secret and backup codes without activating MFA, and a valid TOTP code flips
the account to enabled.
*/
func TestMFA_SetupThenEnable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")

	// 1. Setup returns the shared secret, a provisioning URI, and backup codes
	setup, err := env.service.SetupMFA(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")
	assert.Len(t, setup.BackupCodes, auth.BackupCodeCount)

	// 2. The account is not yet MFA-enabled
	stored, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)

	// 3. A code derived from the secret completes enrollment
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.service.EnableMFA(ctx, user.ID, code))

	stored, err = env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MFAEnabled)
}

/*
TestMFA_SetupRejectedWhenAlreadyEnabled verifies that a second enrollment is
refused while MFA is active, so an attacker with a stolen session cannot
silently rotate the secret.
*/
func TestMFA_SetupRejectedWhenAlreadyEnabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")
	enrollMFA(t, env, user.ID)

	_, err := env.service.SetupMFA(ctx, user.ID)
	require.Error(t, err)
	assert.Equal(t, auth.CodeMFAAlreadyEnabled, apperr.CodeOf(err))
}

/*
TestMFA_EnableWithWrongCode verifies that enrollment does not complete on a
bogus TOTP code.
*/
func TestMFA_EnableWithWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")

	_, err := env.service.SetupMFA(ctx, user.ID)
	require.NoError(t, err)

	err = env.service.EnableMFA(ctx, user.ID, "000000")
	require.Error(t, err)
	assert.Equal(t, auth.CodeInvalidMFAToken, apperr.CodeOf(err))

	stored, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
}

/*
TestMFA_LoginWithTOTP verifies the second-factor login path end to end: a
password-only attempt yields the MFA-required partial result, and the
follow-up attempt with a live code issues a session.
*/
func TestMFA_LoginWithTOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")
	secret, _ := enrollMFA(t, env, user.ID)

	// 1. Password alone only gets the challenge
	result, err := env.service.Login(ctx, auth.LoginInput{
		Email:    user.Email,
		Password: "Str0ng!Passw0rd",
	})
	require.NoError(t, err)
	assert.True(t, result.RequiresMFA)
	assert.Empty(t, result.AccessToken)
	assert.Nil(t, result.User)

	// 2. Password plus a live TOTP code completes authentication
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	result, err = env.service.Login(ctx, auth.LoginInput{
		Email:    user.Email,
		Password: "Str0ng!Passw0rd",
		MFAToken: code,
	})
	require.NoError(t, err)
	assert.False(t, result.RequiresMFA)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
}

/*
TestMFA_BackupCodeSingleUse verifies that a backup code authenticates exactly
once and is rejected on replay.
*/
func TestMFA_BackupCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")
	_, backupCodes := enrollMFA(t, env, user.ID)

	input := auth.LoginInput{
		Email:    user.Email,
		Password: "Str0ng!Passw0rd",
		MFAToken: backupCodes[0],
	}

	// 1. First use succeeds and burns the code
	result, err := env.service.Login(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)

	stored, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.BackupCodeHashes, auth.BackupCodeCount-1)

	// 2. Replay of the same code is an MFA failure
	_, err = env.service.Login(ctx, input)
	require.Error(t, err)
	assert.Equal(t, auth.CodeInvalidMFAToken, apperr.CodeOf(err))
}

/*
TestMFA_DisableRequiresPassword verifies that switching MFA off re-verifies
the password, and that success wipes the secret and backup codes.
*/
func TestMFA_DisableRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")
	enrollMFA(t, env, user.ID)

	// 1. Wrong password is refused
	err := env.service.DisableMFA(ctx, user.ID, "not-the-password")
	require.Error(t, err)
	assert.Equal(t, auth.CodeInvalidCredentials, apperr.CodeOf(err))

	// 2. Correct password disables and scrubs the MFA material
	require.NoError(t, env.service.DisableMFA(ctx, user.ID, "Str0ng!Passw0rd"))

	stored, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	assert.Empty(t, stored.MFASecret)
	assert.Empty(t, stored.BackupCodeHashes)
}

/*
TestMFA_SecuritySettingsTrackBackupCodes verifies that the security overview
reports enrollment state and the remaining backup code count.
*/
func TestMFA_SecuritySettingsTrackBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := seedUser(t, env, "trader@stratcap.io", "Str0ng!Passw0rd")
	_, backupCodes := enrollMFA(t, env, user.ID)

	settings, err := env.service.GetSecuritySettings(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, settings.MFAEnabled)
	assert.Equal(t, auth.BackupCodeCount, settings.BackupCodesRemaining)

	// Burning one code is reflected in the count
	_, err = env.service.Login(ctx, auth.LoginInput{
		Email:    user.Email,
		Password: "Str0ng!Passw0rd",
		MFAToken: backupCodes[3],
	})
	require.NoError(t, err)

	settings, err = env.service.GetSecuritySettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.BackupCodeCount-1, settings.BackupCodesRemaining)
}
