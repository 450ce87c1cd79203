// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stratcap/identity/internal/platform/apperr"
	"github.com/stratcap/identity/internal/platform/sec"
	"github.com/stratcap/identity/pkg/uuidv7"
)

// SessionManager materializes, validates, and revokes refresh-token sessions.
//
// # Token Binding
//
// The refresh token is a signed JWT whose ID claim is the session ID. Its
// SHA-256 digest is the session's storage lookup key, so validation requires
// both a valid signature and a live session row.
type SessionManager struct {
	sessions SessionRepository
	tokens   TokenProvider
}

// NewSessionManager creates a manager bound to the session store and token provider.
func NewSessionManager(sessions SessionRepository, tokens TokenProvider) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		tokens:   tokens,
	}
}

/*
Create mints a refresh token and persists the backing session.

Parameters:
  - context: context.Context
  - user: *User
  - userAgent: string
  - ipAddress: string
  - timeToLive: time.Duration (short default, or extended for remember-me)

Returns:
  - *Session: The persisted session record
  - string: The clear refresh token, handed to the client exactly once
  - error: Signing or storage failures
*/
func (manager *SessionManager) Create(context context.Context, user *User, userAgent, ipAddress string, timeToLive time.Duration) (*Session, string, error) {

	// The session ID is minted first so the refresh token can carry it as
	// its JWT ID claim.
	sessionID := uuidv7.New()

	refreshToken, err := manager.tokens.GenerateRefreshToken(user.ID, sessionID, timeToLive)
	if err != nil {
		return nil, "", fmt.Errorf("session_manager_mint_refresh_failed: %w", err)
	}

	session := &Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: time.Now().Add(timeToLive),
		IsRevoked: false,
	}

	if err := manager.sessions.Create(context, session); err != nil {
		return nil, "", fmt.Errorf("session_manager_persist_failed: %w", err)
	}

	return session, refreshToken, nil
}

/*
Validate resolves a refresh token into its live session.

Description: Requires a valid signature, an unexpired and unrevoked session
row, and a matching token class. Every failure collapses into a single
invalid-session error so callers cannot probe session state.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Session: The live session
  - error: errInvalidSession or storage failures
*/
func (manager *SessionManager) Validate(context context.Context, refreshToken string) (*Session, error) {
	if _, err := manager.tokens.VerifyRefreshToken(refreshToken); err != nil {
		return nil, errInvalidSession()
	}

	session, err := manager.sessions.FindByTokenHash(context, sec.HashToken(refreshToken))
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return nil, errInvalidSession()
		}
		return nil, fmt.Errorf("session_manager_validate_failed: %w", err)
	}

	return session, nil
}

/*
Touch updates the session's last-activity timestamp.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Persistence failures
*/
func (manager *SessionManager) Touch(context context.Context, session *Session) error {
	now := time.Now()
	if err := manager.sessions.Touch(context, session.ID, now); err != nil {
		return fmt.Errorf("session_manager_touch_failed: %w", err)
	}
	session.LastActivityAt = now
	return nil
}

/*
Terminate revokes the session backing the given refresh token.

Description: Idempotent. An unknown, expired, or already-revoked token is
treated as success since the desired end state already holds.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (manager *SessionManager) Terminate(context context.Context, refreshToken string) error {
	session, err := manager.sessions.FindByTokenHash(context, sec.HashToken(refreshToken))
	if err != nil {
		// Only a missing session is the already-terminated case; storage
		// failures must not masquerade as success.
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("session_manager_terminate_lookup_failed: %w", err)
	}

	if err := manager.sessions.Revoke(context, session.ID, session.UserID); err != nil {
		return fmt.Errorf("session_manager_terminate_failed: %w", err)
	}

	return nil
}

/*
TerminateAll revokes every active session belonging to the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (manager *SessionManager) TerminateAll(context context.Context, userID string) error {
	if err := manager.sessions.RevokeAll(context, userID); err != nil {
		return fmt.Errorf("session_manager_terminate_all_failed: %w", err)
	}
	return nil
}

/*
List returns the user's currently valid sessions as client-safe summaries.

Description: Each summary is annotated with whether it is the caller's
current session, derived by comparing token hashes. Raw tokens of other
sessions are never exposed.

Parameters:
  - context: context.Context
  - userID: string
  - currentRefreshToken: string (may be empty)

Returns:
  - []SessionSummary: Active sessions, newest first
  - error: Retrieval failures
*/
func (manager *SessionManager) List(context context.Context, userID, currentRefreshToken string) ([]SessionSummary, error) {
	sessions, err := manager.sessions.ListActive(context, userID)
	if err != nil {
		return nil, fmt.Errorf("session_manager_list_failed: %w", err)
	}

	currentHash := ""
	if currentRefreshToken != "" {
		currentHash = sec.HashToken(currentRefreshToken)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:             session.ID,
			UserAgent:      session.UserAgent,
			IPAddress:      session.IPAddress,
			CreatedAt:      session.CreatedAt,
			LastActivityAt: session.LastActivityAt,
			ExpiresAt:      session.ExpiresAt,
			IsCurrent:      currentHash != "" && session.TokenHash == currentHash,
		})
	}

	return summaries, nil
}

/*
RevokeByID revokes a single session by its ID, guarded by ownership.

Parameters:
  - context: context.Context
  - sessionID: string
  - userID: string

Returns:
  - error: Revocation failures
*/
func (manager *SessionManager) RevokeByID(context context.Context, sessionID, userID string) error {
	if err := manager.sessions.Revoke(context, sessionID, userID); err != nil {
		return fmt.Errorf("session_manager_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeOthers revokes every active session for the user except the current one.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - error: Filtered revocation failures
*/
func (manager *SessionManager) RevokeOthers(context context.Context, userID, currentSessionID string) error {
	if err := manager.sessions.RevokeOthers(context, userID, currentSessionID); err != nil {
		return fmt.Errorf("session_manager_revoke_others_failed: %w", err)
	}
	return nil
}

// DeleteExpired removes stale session rows for storage hygiene.
func (manager *SessionManager) DeleteExpired(context context.Context) error {
	if err := manager.sessions.DeleteExpired(context); err != nil {
		return fmt.Errorf("session_manager_delete_expired_failed: %w", err)
	}
	return nil
}

// CountActive returns the number of currently valid sessions for the user.
func (manager *SessionManager) CountActive(context context.Context, userID string) (int, error) {
	count, err := manager.sessions.CountActive(context, userID)
	if err != nil {
		return 0, fmt.Errorf("session_manager_count_failed: %w", err)
	}
	return count, nil
}
