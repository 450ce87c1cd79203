// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/stratcap/identity/internal/platform/constants"
	"github.com/stratcap/identity/internal/platform/sec"
)

// MFAManager handles TOTP secrets and single-use backup codes.
//
// # State Machine
//
// disabled -> pending (setup stored a secret) -> enabled (user confirmed a
// valid code) -> disabled (user re-verified their password). A pending secret
// never validates at login; only an enabled account requires MFA.
type MFAManager struct {
	users UserRepository
}

// NewMFAManager creates a manager bound to the user store.
func NewMFAManager(users UserRepository) *MFAManager {
	return &MFAManager{users: users}
}

/*
Setup generates a fresh TOTP secret and backup codes for the user.

Description: Stores the secret and the HASHED backup codes pending
confirmation. MFA is not yet marked enabled; the clear codes are returned
exactly once and never persisted.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - *MFASetup: Secret, QR-encodable provisioning URI, clear backup codes
  - error: errMFAAlreadyEnabled or storage failures
*/
func (manager *MFAManager) Setup(context context.Context, user *User) (*MFASetup, error) {
	if user.MFAEnabled {
		return nil, errMFAAlreadyEnabled()
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      constants.MFAIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("mfa_manager_generate_secret_failed: %w", err)
	}

	// Generate the single-use recovery codes. Clear values go back to the
	// caller; only their digests are stored.
	clearCodes := make([]string, 0, BackupCodeCount)
	hashedCodes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		code, err := sec.GenerateSecureToken(BackupCodeLength)
		if err != nil {
			return nil, fmt.Errorf("mfa_manager_generate_backup_code_failed: %w", err)
		}
		clearCodes = append(clearCodes, code)
		hashedCodes = append(hashedCodes, sec.HashToken(code))
	}

	if err := manager.users.UpdateMFASetup(context, user.ID, key.Secret(), hashedCodes); err != nil {
		return nil, fmt.Errorf("mfa_manager_store_setup_failed: %w", err)
	}

	return &MFASetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     clearCodes,
	}, nil
}

/*
Enable confirms the pending secret and flips MFA on.

Parameters:
  - context: context.Context
  - user: *User
  - token: string (current six-digit TOTP code)

Returns:
  - error: errMFAAlreadyEnabled, errInvalidMFAToken, or storage failures
*/
func (manager *MFAManager) Enable(context context.Context, user *User, token string) error {
	if user.MFAEnabled {
		return errMFAAlreadyEnabled()
	}

	if user.MFASecret == "" || !validateTOTP(token, user.MFASecret) {
		return errInvalidMFAToken()
	}

	if err := manager.users.EnableMFA(context, user.ID); err != nil {
		return fmt.Errorf("mfa_manager_enable_failed: %w", err)
	}

	return nil
}

/*
Disable turns MFA off after password re-verification.

Parameters:
  - context: context.Context
  - user: *User
  - password: string

Returns:
  - error: errInvalidCredentials or storage failures
*/
func (manager *MFAManager) Disable(context context.Context, user *User, password string) error {
	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		return errInvalidCredentials()
	}

	if err := manager.users.DisableMFA(context, user.ID); err != nil {
		return fmt.Errorf("mfa_manager_disable_failed: %w", err)
	}

	return nil
}

/*
Verify validates an MFA token at login time.

Description: First attempts a TOTP match. On failure, compares the token's
digest against each stored backup-code hash in constant time; a matched code
is removed atomically so a replayed code always fails afterward.

Parameters:
  - context: context.Context
  - user: *User
  - token: string (TOTP code or backup code)

Returns:
  - bool: Whether the token is accepted
  - error: Storage failures from the atomic backup-code removal
*/
func (manager *MFAManager) Verify(context context.Context, user *User, token string) (bool, error) {
	if user.MFASecret != "" && validateTOTP(token, user.MFASecret) {
		return true, nil
	}

	// Fall back to backup codes. The digest comparison runs over every
	// stored hash to keep timing independent of the match position.
	tokenHash := sec.HashToken(token)
	matched := ""
	for _, codeHash := range user.BackupCodeHashes {
		if sec.ConstantTimeEquals(tokenHash, codeHash) {
			matched = codeHash
		}
	}

	if matched == "" {
		return false, nil
	}

	// One-time redemption: the conditional removal is the authority. If a
	// concurrent request already consumed this code, the token is rejected.
	consumed, err := manager.users.ConsumeBackupCode(context, user.ID, matched)
	if err != nil {
		return false, fmt.Errorf("mfa_manager_consume_backup_code_failed: %w", err)
	}

	return consumed, nil
}

// validateTOTP checks a six-digit code against the shared secret, accepting
// TOTPSkew time steps of clock drift on either side.
func validateTOTP(token, secret string) bool {
	valid, err := totp.ValidateCustom(token, secret, time.Now(), totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
