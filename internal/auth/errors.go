// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import "github.com/stratcap/identity/internal/platform/apperr"

// # Error Taxonomy
//
// Machine-readable codes for every authentication failure kind. Callers
// branch on the code, never on the message text.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeInvalidMFAToken    = "INVALID_MFA_TOKEN"
	CodeMFAAlreadyEnabled  = "MFA_ALREADY_ENABLED"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodeInvalidSession     = "INVALID_SESSION"
)

// errInvalidCredentials hides the distinction between "user not found" and
// "wrong password" to prevent account enumeration.
func errInvalidCredentials() *apperr.AppError {
	return apperr.Unauthorized("Invalid email or password").WithCode(CodeInvalidCredentials)
}

// errAccountLocked signals that the identity is under an active lockout window.
func errAccountLocked() *apperr.AppError {
	return apperr.Locked("Account temporarily locked due to repeated failed login attempts")
}

// errInvalidMFAToken covers both a wrong TOTP code and a spent backup code.
func errInvalidMFAToken() *apperr.AppError {
	return apperr.Unauthorized("Invalid MFA token").WithCode(CodeInvalidMFAToken)
}

// errMFAAlreadyEnabled rejects a second setup attempt while MFA is active.
func errMFAAlreadyEnabled() *apperr.AppError {
	return apperr.Conflict("MFA is already enabled for this account").WithCode(CodeMFAAlreadyEnabled)
}

// errInvalidResetToken covers unknown, expired, and already-redeemed tokens
// with a single indistinguishable message.
func errInvalidResetToken() *apperr.AppError {
	return apperr.Unauthorized("Reset token is invalid or expired").WithCode(CodeInvalidResetToken)
}

// errInvalidSession covers unknown, expired, and revoked refresh tokens.
func errInvalidSession() *apperr.AppError {
	return apperr.Unauthorized("Session is invalid or expired").WithCode(CodeInvalidSession)
}
