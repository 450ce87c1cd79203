// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces the user's password hash and records the
		change timestamp.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		UpdateMFASetup stores a pending TOTP secret and the hashed backup
		codes without flipping the enabled flag.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - secret: string
		  - backupCodeHashes: []string

		Returns:
		  - error: Persistence failures
	*/
	UpdateMFASetup(context context.Context, userID, secret string, backupCodeHashes []string) error

	/*
		EnableMFA marks MFA as active after the pending secret was confirmed.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	EnableMFA(context context.Context, userID string) error

	/*
		DisableMFA clears the secret, the backup codes, and the enabled flag.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	DisableMFA(context context.Context, userID string) error

	/*
		ConsumeBackupCode atomically removes one hashed backup code from the
		user's stored set. The removal succeeds only if the hash is still
		present, so two concurrent redemptions of the same code cannot both
		succeed.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - codeHash: string

		Returns:
		  - bool: Whether the code was present and has now been removed
		  - error: Persistence failures
	*/
	ConsumeBackupCode(context context.Context, userID, codeHash string) (bool, error)

	/*
		UpdateLastLogin records the timestamp of the latest successful login.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	UpdateLastLogin(context context.Context, userID string, at time.Time) error

	/*
		MarkVerified updates the user's status to isverified = true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, userID string) error
}

// # Login Attempt Data Access

// LoginAttemptRepository defines the append-only attempt log used by the
// lockout policy.
type LoginAttemptRepository interface {

	/*
		Record appends one authentication attempt.

		Parameters:
		  - context: context.Context
		  - attempt: *LoginAttempt

		Returns:
		  - error: Persistence failures
	*/
	Record(context context.Context, attempt *LoginAttempt) error

	/*
		CountFailuresSince counts failed attempts for the email newer than
		the given instant.

		Parameters:
		  - context: context.Context
		  - email: string
		  - since: time.Time

		Returns:
		  - int: Number of failed attempts inside the window
		  - error: Retrieval failures
	*/
	CountFailuresSince(context context.Context, email string, since time.Time) (int, error)

	/*
		ClearFailures deletes the failed-attempt history for the email.
		Called on successful login so the counter restarts from zero.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	ClearFailures(context context.Context, email string) error
}

// # Session Data Access

// SessionRepository defines the data access contract for refresh-token sessions.
type SessionRepository interface {

	/*
		Create persists a new tracking session for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByTokenHash returns the active session matching the given token hash.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *Session: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*Session, error)

	/*
		ListActive returns every currently valid session for the user,
		newest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Active sessions
		  - error: Retrieval failures
	*/
	ListActive(context context.Context, userID string) ([]*Session, error)

	/*
		Touch updates the session's last-activity timestamp.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Touch(context context.Context, sessionID string, at time.Time) error

	/*
		Revoke marks the session as permanently invalidated. The userID guard
		ensures a caller can only revoke their own sessions.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, sessionID, userID string) error

	/*
		RevokeAll revokes every active session belonging to the userID.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAll(context context.Context, userID string) error

	/*
		RevokeOthers revokes all sessions belonging to the userID except for
		the current session.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentSessionID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeOthers(context context.Context, userID, currentSessionID string) error

	/*
		CountActive returns the number of currently valid sessions for the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int: Active session count
		  - error: Retrieval failures
	*/
	CountActive(context context.Context, userID string) (int, error)

	/*
		DeleteExpired physically removes sessions whose ExpiresAt is in the past.
		Storage hygiene only; correctness never depends on it.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context) error
}

// # Reset Token Data Access

// ResetTokenRepository defines the contract for durable single-use password
// reset tokens.
type ResetTokenRepository interface {

	/*
		Create persists a new reset token record. Only the token hash is stored.

		Parameters:
		  - context: context.Context
		  - token: *PasswordResetToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *PasswordResetToken) error

	/*
		FindLatestActive returns the newest unused, unexpired token for the
		user, or apperr.NotFound if none is outstanding.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *PasswordResetToken: Hydrated entity
		  - error: Retrieval failures
	*/
	FindLatestActive(context context.Context, userID string) (*PasswordResetToken, error)

	/*
		Consume atomically marks the unused, unexpired token with the given
		hash as used. The conditional update guarantees that two concurrent
		redemptions of the same token cannot both succeed.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *PasswordResetToken: The consumed token record
		  - error: apperr.NotFound if no redeemable token matches
	*/
	Consume(context context.Context, tokenHash string) (*PasswordResetToken, error)
}

// # Volatile Data Access

// VerificationTokenRepository defines the contract for storing volatile email
// verification tokens.
type VerificationTokenRepository interface {

	/*
		Set stores a verification token associated with a userID.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID string, ttl time.Duration) error

	/*
		Get retrieves the userID associated with a given verification token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: UserID
		  - error: Retrieval failures
	*/
	Get(context context.Context, token string) (string, error)

	/*
		Delete removes a verification token after successful use.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, token string) error
}
