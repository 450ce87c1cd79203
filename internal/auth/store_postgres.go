// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

// PostgreSQL implementations of the authentication repositories.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement domain-defined interfaces (e.g., [UserRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # err Mapping
//
// Row-miss errors (pgx.ErrNoRows) are mapped to resource-specific
// [apperr.AppError] NotFound values where the caller branches on them; every
// other database error goes through [dberr.Wrap], which classifies unique
// violations as Conflict and the rest as dependency failures.

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratcap/identity/internal/platform/apperr"
	"github.com/stratcap/identity/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `
	id, email, passwordhash, displayname, role, isactive, isverified,
	mfaenabled, mfasecret, backupcodes, lastloginat, passwordchangedat,
	createdat, updatedat`

// scanUser hydrates a User from a single-row query result.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.IsActive,
		&user.IsVerified,
		&user.MFAEnabled,
		&user.MFASecret,
		&user.BackupCodeHashes,
		&user.LastLoginAt,
		&user.PasswordChangedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
Create persists a new user record into the users.account table.

Description: Deep-persists account metadata, ensuring timestamps are initialized
if not provided.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, passwordhash, displayname, role, isactive, isverified,
			mfaenabled, mfasecret, backupcodes, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if user.BackupCodeHashes == nil {
		user.BackupCodeHashes = []string{}
	}

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.IsActive,
		user.IsVerified,
		user.MFAEnabled,
		user.MFASecret,
		user.BackupCodeHashes,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "create_user")
	}

	return nil
}

/*
FindByEmail retrieves a user record by their unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE email = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, dberr.Wrap(err, "find_user_by_email")
	}

	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, dberr.Wrap(err, "find_user_by_id")
	}

	return user, nil
}

/*
UpdatePassword updates the password hash and records the change timestamp.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, passwordchangedat = $3, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, newHash, time.Now())
	if err != nil {
		return dberr.Wrap(err, "update_password")
	}

	return nil
}

/*
UpdateMFASetup stores a pending TOTP secret and hashed backup codes.

Description: Does not flip mfaenabled; the secret stays pending until the
user confirms a valid code via EnableMFA.

Parameters:
  - context: context.Context
  - userID: string
  - secret: string
  - backupCodeHashes: []string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdateMFASetup(context context.Context, userID, secret string, backupCodeHashes []string) error {
	const query = `
		UPDATE users.account
		SET mfasecret = $2, backupcodes = $3, updatedat = $4
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, secret, backupCodeHashes, time.Now())
	if err != nil {
		return dberr.Wrap(err, "update_mfa_setup")
	}

	return nil
}

/*
EnableMFA flips the mfaenabled flag after setup confirmation.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) EnableMFA(context context.Context, userID string) error {
	const query = "UPDATE users.account SET mfaenabled = TRUE, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return dberr.Wrap(err, "enable_mfa")
	}
	return nil
}

/*
DisableMFA clears the secret, backup codes, and enabled flag.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) DisableMFA(context context.Context, userID string) error {
	const query = `
		UPDATE users.account
		SET mfaenabled = FALSE, mfasecret = '', backupcodes = '{}', updatedat = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return dberr.Wrap(err, "disable_mfa")
	}

	return nil
}

/*
ConsumeBackupCode atomically removes one hashed backup code from the set.

Description: The WHERE clause requires the hash to still be present, so the
row is updated at most once per code even under concurrent redemptions.

Parameters:
  - context: context.Context
  - userID: string
  - codeHash: string

Returns:
  - bool: Whether the code was present and is now removed
  - error: Execution errors
*/
func (repository *PostgresUserRepository) ConsumeBackupCode(context context.Context, userID, codeHash string) (bool, error) {
	const query = `
		UPDATE users.account
		SET backupcodes = array_remove(backupcodes, $2), updatedat = $3
		WHERE id = $1 AND $2 = ANY(backupcodes)`

	tag, err := repository.pool.Exec(context, query, userID, codeHash, time.Now())
	if err != nil {
		return false, dberr.Wrap(err, "consume_backup_code")
	}

	return tag.RowsAffected() == 1, nil
}

/*
UpdateLastLogin records the timestamp of the latest successful login.

Parameters:
  - context: context.Context
  - userID: string
  - at: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, userID string, at time.Time) error {
	const query = "UPDATE users.account SET lastloginat = $2, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, at)
	if err != nil {
		return dberr.Wrap(err, "update_last_login")
	}
	return nil
}

/*
MarkVerified updates the user's status to isverified = true.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Database errors
*/
func (repository *PostgresUserRepository) MarkVerified(context context.Context, userID string) error {
	const query = "UPDATE users.account SET isverified = TRUE, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return dberr.Wrap(err, "mark_verified")
	}
	return nil
}

// # Login Attempt Repository

// PostgresLoginAttemptRepository implements the LoginAttemptRepository interface.
type PostgresLoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new PostgreSQL implementation of LoginAttemptRepository.
func NewLoginAttemptRepository(pool *pgxpool.Pool) *PostgresLoginAttemptRepository {
	return &PostgresLoginAttemptRepository{pool: pool}
}

/*
Record appends one authentication attempt to the auth.loginattempt log.

Parameters:
  - context: context.Context
  - attempt: *LoginAttempt

Returns:
  - error: Storage failures
*/
func (repository *PostgresLoginAttemptRepository) Record(context context.Context, attempt *LoginAttempt) error {
	const query = `
		INSERT INTO auth.loginattempt (id, email, succeeded, ipaddress, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		attempt.ID,
		attempt.Email,
		attempt.Succeeded,
		attempt.IPAddress,
		attempt.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "record_login_attempt")
	}

	return nil
}

/*
CountFailuresSince counts failed attempts for the email inside the trailing window.

Parameters:
  - context: context.Context
  - email: string
  - since: time.Time

Returns:
  - int: Failed attempt count
  - error: Execution errors
*/
func (repository *PostgresLoginAttemptRepository) CountFailuresSince(context context.Context, email string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM auth.loginattempt
		WHERE email = $1 AND succeeded = FALSE AND createdat > $2`

	var count int
	err := repository.pool.QueryRow(context, query, email, since).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "count_login_failures")
	}

	return count, nil
}

/*
ClearFailures deletes the failed-attempt history for the email.

Description: Called on successful login so the lockout counter restarts.
Successful attempt rows are kept for audit.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresLoginAttemptRepository) ClearFailures(context context.Context, email string) error {
	const query = "DELETE FROM auth.loginattempt WHERE email = $1 AND succeeded = FALSE"
	_, err := repository.pool.Exec(context, query, email)
	if err != nil {
		return dberr.Wrap(err, "clear_login_failures")
	}
	return nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `
	id, userid, tokenhash, useragent, ipaddress, expiresat, isrevoked,
	lastactivityat, createdat`

// scanSession hydrates a Session from a query result row.
func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.IsRevoked,
		&session.LastActivityAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

/*
Create persists a new session record into the users.session table.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (
			id, userid, tokenhash, useragent, ipaddress, expiresat, isrevoked,
			lastactivityat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.IsRevoked,
		session.LastActivityAt,
		session.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "create_session")
	}

	return nil
}

/*
FindByTokenHash retrieves an active session by its unique token hash.

Description: Securely resolves a refresh token hash into an active session.
Expired and revoked sessions are filtered at the query level.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE tokenhash = $1 AND isrevoked = FALSE AND expiresat > NOW()`

	session, err := scanSession(repository.pool.QueryRow(context, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, dberr.Wrap(err, "find_session_by_token_hash")
	}

	return session, nil
}

/*
ListActive returns every currently valid session for the user, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Session: Active sessions
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) ListActive(context context.Context, userID string) ([]*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE userid = $1 AND isrevoked = FALSE AND expiresat > NOW()
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_active_sessions")
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_session")
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "iterate_sessions")
	}

	return sessions, nil
}

/*
Touch updates the session's last-activity timestamp.

Parameters:
  - context: context.Context
  - sessionID: string
  - at: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, sessionID string, at time.Time) error {
	const query = "UPDATE users.session SET lastactivityat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, sessionID, at)
	if err != nil {
		return dberr.Wrap(err, "touch_session")
	}
	return nil
}

/*
Revoke marks a specific session as revoked, guarded by ownership.

Parameters:
  - context: context.Context
  - sessionID: string
  - userID: string

Returns:
  - error: Revocation failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, sessionID, userID string) error {
	const query = "UPDATE users.session SET isrevoked = TRUE WHERE id = $1 AND userid = $2"
	_, err := repository.pool.Exec(context, query, sessionID, userID)
	if err != nil {
		return dberr.Wrap(err, "revoke_session")
	}
	return nil
}

/*
RevokeAll marks all active sessions for a user as revoked.

Description: Security nuking of all active sessions for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresSessionRepository) RevokeAll(context context.Context, userID string) error {
	const query = "UPDATE users.session SET isrevoked = TRUE WHERE userid = $1 AND isrevoked = FALSE"
	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return dberr.Wrap(err, "revoke_all_sessions")
	}
	return nil
}

/*
RevokeOthers marks all active sessions for a user as revoked, except for one.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - error: Filtered revocation failures
*/
func (repository *PostgresSessionRepository) RevokeOthers(context context.Context, userID, currentSessionID string) error {
	const query = "UPDATE users.session SET isrevoked = TRUE WHERE userid = $1 AND id != $2 AND isrevoked = FALSE"
	_, err := repository.pool.Exec(context, query, userID, currentSessionID)
	if err != nil {
		return dberr.Wrap(err, "revoke_other_sessions")
	}
	return nil
}

/*
CountActive returns the number of currently valid sessions for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int: Active session count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) CountActive(context context.Context, userID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM users.session
		WHERE userid = $1 AND isrevoked = FALSE AND expiresat > NOW()`

	var count int
	err := repository.pool.QueryRow(context, query, userID).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "count_active_sessions")
	}

	return count, nil
}

/*
DeleteExpired permanently removes all sessions that have passed their expiration.

Description: Cleanup task to reclaim storage from stale sessions.

Parameters:
  - context: context.Context

Returns:
  - error: Cleanup failures
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context) error {
	const query = "DELETE FROM users.session WHERE expiresat <= NOW()"
	_, err := repository.pool.Exec(context, query)
	if err != nil {
		return dberr.Wrap(err, "delete_expired_sessions")
	}
	return nil
}

// # Reset Token Repository

// PostgresResetTokenRepository implements the ResetTokenRepository interface.
type PostgresResetTokenRepository struct {
	pool *pgxpool.Pool
}

// NewResetTokenRepository creates a new PostgreSQL implementation of ResetTokenRepository.
func NewResetTokenRepository(pool *pgxpool.Pool) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{pool: pool}
}

/*
Create persists a new password reset token record.

Description: Only the SHA-256 hash of the token is stored; the clear value
travels exclusively through the notification channel.

Parameters:
  - context: context.Context
  - token: *PasswordResetToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresResetTokenRepository) Create(context context.Context, token *PasswordResetToken) error {
	const query = `
		INSERT INTO auth.passwordresettoken (
			id, userid, tokenhash, expiresat, used, ipaddress, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Used,
		token.IPAddress,
		token.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "create_reset_token")
	}

	return nil
}

/*
FindLatestActive returns the newest unused, unexpired token for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *PasswordResetToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresResetTokenRepository) FindLatestActive(context context.Context, userID string) (*PasswordResetToken, error) {
	const query = `
		SELECT id, userid, tokenhash, expiresat, used, usedat, ipaddress, createdat
		FROM auth.passwordresettoken
		WHERE userid = $1 AND used = FALSE AND expiresat > NOW()
		ORDER BY createdat DESC
		LIMIT 1`

	token := &PasswordResetToken{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.UsedAt,
		&token.IPAddress,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Reset token")
		}
		return nil, dberr.Wrap(err, "find_latest_reset_token")
	}

	return token, nil
}

/*
Consume atomically marks the unused, unexpired token with the given hash as used.

Description: The conditional UPDATE is the single source of truth for the
used-flag transition. Two concurrent redemptions of the same token race on
this statement and exactly one observes an affected row.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *PasswordResetToken: The consumed token record
  - error: apperr.NotFound if no redeemable token matches
*/
func (repository *PostgresResetTokenRepository) Consume(context context.Context, tokenHash string) (*PasswordResetToken, error) {
	const query = `
		UPDATE auth.passwordresettoken
		SET used = TRUE, usedat = NOW()
		WHERE tokenhash = $1 AND used = FALSE AND expiresat > NOW()
		RETURNING id, userid, tokenhash, expiresat, used, usedat, ipaddress, createdat`

	token := &PasswordResetToken{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.UsedAt,
		&token.IPAddress,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Reset token")
		}
		return nil, dberr.Wrap(err, "consume_reset_token")
	}

	return token, nil
}
