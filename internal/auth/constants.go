// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import "time"

// # Authentication Constraints

const (
	// BackupCodeCount is the number of single-use recovery codes generated
	// during MFA setup.
	BackupCodeCount = 10

	// BackupCodeLength is the byte length of each random backup code.
	// 5 bytes encode to a 10-character hex string, short enough to type.
	BackupCodeLength = 5

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenLength is the byte length of the random email
	// verification token.
	VerificationTokenLength = 32

	// VerificationTokenTTL is the duration an email verification token remains
	// valid. Long-lived (24 hours) as users might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// TOTPSkew is the number of 30-second time steps accepted on either side
	// of the current step, tolerating authenticator clock drift.
	TOTPSkew = 2

	// TOTPPeriod is the TOTP time-step size in seconds.
	TOTPPeriod = 30
)
