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

// ResetManager issues, validates, and consumes single-use password reset tokens.
type ResetManager struct {
	users    UserRepository
	tokens   ResetTokenRepository
	sessions SessionRepository
	ttl      time.Duration
	cooldown time.Duration
}

// NewResetManager creates a manager with the configured token lifetime and
// re-request cooldown.
func NewResetManager(users UserRepository, tokens ResetTokenRepository, sessions SessionRepository, ttl, cooldown time.Duration) *ResetManager {
	return &ResetManager{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		ttl:      ttl,
		cooldown: cooldown,
	}
}

/*
Request issues a fresh reset token for the email.

Description: Generates a high-entropy random value and stores only its hash.
For an unknown address it returns empty results with no error so the caller
can answer with the same generic success shape (anti-enumeration). A repeat
request inside the cooldown of an outstanding unexpired token is rejected.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - string: The clear token, destined only for the notification channel
  - *User: The resolved account, nil for unknown addresses
  - error: apperr.RateLimited or storage failures
*/
func (manager *ResetManager) Request(context context.Context, email, ipAddress string) (string, *User, error) {
	user, err := manager.users.FindByEmail(context, email)
	if err != nil {
		// Unknown address. Same outward behavior as success, no further work.
		// Storage failures are not folded into the silent path.
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("reset_manager_lookup_failed: %w", err)
	}

	// Throttle repeat requests while an unexpired token is outstanding.
	if outstanding, err := manager.tokens.FindLatestActive(context, user.ID); err == nil {
		elapsed := time.Since(outstanding.CreatedAt)
		if elapsed < manager.cooldown {
			retryAfter := int((manager.cooldown - elapsed) / time.Second)
			return "", nil, apperr.RateLimited(retryAfter)
		}
	}

	clearToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", nil, fmt.Errorf("reset_manager_generate_token_failed: %w", err)
	}

	record := &PasswordResetToken{
		ID:        uuidv7.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(clearToken),
		ExpiresAt: time.Now().Add(manager.ttl),
		Used:      false,
		IPAddress: ipAddress,
	}

	if err := manager.tokens.Create(context, record); err != nil {
		return "", nil, fmt.Errorf("reset_manager_store_token_failed: %w", err)
	}

	return clearToken, user, nil
}

/*
Redeem consumes a reset token and replaces the account password.

Description: Re-hashes the supplied clear value and atomically marks the
matching unused, unexpired record as used; a replayed or concurrent
redemption of the same token fails. On success every active session for the
identity is revoked, defending against a reset performed after credential
compromise.

Parameters:
  - context: context.Context
  - clearToken: string
  - newPassword: string

Returns:
  - *User: The account whose password was replaced
  - error: errInvalidResetToken or storage failures
*/
func (manager *ResetManager) Redeem(context context.Context, clearToken, newPassword string) (*User, error) {
	record, err := manager.tokens.Consume(context, sec.HashToken(clearToken))
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return nil, errInvalidResetToken()
		}
		return nil, fmt.Errorf("reset_manager_consume_failed: %w", err)
	}

	user, err := manager.users.FindByID(context, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("reset_manager_resolve_user_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("reset_manager_hash_failed: %w", err)
	}

	if err := manager.users.UpdatePassword(context, user.ID, hashedPassword); err != nil {
		return nil, fmt.Errorf("reset_manager_update_password_failed: %w", err)
	}

	// Security Cleanup: Revoke EVERY active session for this user
	if err := manager.sessions.RevokeAll(context, user.ID); err != nil {
		return nil, fmt.Errorf("reset_manager_revoke_sessions_failed: %w", err)
	}

	return user, nil
}
