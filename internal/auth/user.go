// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

/*
Package auth implements the authentication and session-security subsystem.

It defines the core domain entities (User, Session, LoginAttempt,
PasswordResetToken) and the state machines for credential verification,
brute-force lockout, multi-factor authentication, and session lifecycle.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import (
	"time"

	"github.com/stratcap/identity/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the StratCap platform.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	Role         sec.UserRole `json:"role"`
	IsActive     bool         `json:"is_active"`
	IsVerified   bool         `json:"is_verified"`

	// MFA state. The secret is present from setup until disable; the enabled
	// flag flips only after the user confirms a valid TOTP code.
	MFAEnabled bool   `json:"mfa_enabled"`
	MFASecret  string `json:"-"` // Shared TOTP secret. Omitted for security.

	// BackupCodeHashes is the ordered set of hashed single-use recovery codes.
	// A matched code is removed atomically on use and never validates again.
	BackupCodeHashes []string `json:"-"`

	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Session represents an active refresh-token session.
//
// # Lifecycle
//
// created -> active -> (refreshed)* -> terminated. Validity is defined as
// !IsRevoked && now < ExpiresAt. Once revoked, a session is never reactivated.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TokenHash      string    `json:"-"` // Hashed value of the refresh token. Omitted for security.
	UserAgent      string    `json:"user_agent"`
	IPAddress      string    `json:"ip_address"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsRevoked      bool      `json:"is_revoked"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// LoginAttempt is one append-only authentication attempt record.
//
// Attempts are keyed by the submitted email (not a resolved user ID) so that
// attempts against unknown addresses still count toward a lockout.
type LoginAttempt struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Succeeded bool      `json:"succeeded"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// PasswordResetToken is a single-use password-reset grant.
//
// The clear token value is never persisted; only its SHA-256 digest is stored.
// The Used flag transitions false -> true exactly once, enforced by an atomic
// conditional update in the store.
type PasswordResetToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	IPAddress string     `json:"ip_address"`
	CreatedAt time.Time  `json:"created_at"`
}

// # Read Models

// SessionSummary is the client-facing projection of an active session.
//
// It never exposes the raw token of any session; IsCurrent is derived by
// comparing token hashes server-side.
type SessionSummary struct {
	ID             string    `json:"id"`
	UserAgent      string    `json:"user_agent"`
	IPAddress      string    `json:"ip_address"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsCurrent      bool      `json:"is_current"`
}

// MFASetup carries the provisioning material returned by a setup call.
// The clear backup codes are shown to the user exactly once and only their
// hashes are persisted.
type MFASetup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// SecuritySettings aggregates the account's security posture.
type SecuritySettings struct {
	MFAEnabled           bool       `json:"mfa_enabled"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	ActiveSessionCount   int        `json:"active_session_count"`
	LastPasswordChangeAt *time.Time `json:"last_password_change_at,omitempty"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	IsLocked             bool       `json:"is_locked"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldToken           = "token"
	FieldMFAToken        = "mfa_token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldRefreshToken    = "refresh_token"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldRequiresMFA     = "requires_mfa"
	FieldSessionID       = "sessionID"
	FieldUser            = "user"
	FieldMessage         = "message"
)
