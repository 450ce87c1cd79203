// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stratcap/identity/internal/platform/apperr"
	"github.com/stratcap/identity/internal/platform/notify"
	"github.com/stratcap/identity/internal/platform/sec"
	"github.com/stratcap/identity/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for minting and verifying security tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed, short-lived JWT for the given user.
	GenerateAccessToken(userID, email, role string, timeToLive time.Duration) (string, error)

	// GenerateRefreshToken creates a signed, long-lived JWT bound to a session.
	GenerateRefreshToken(userID, sessionID string, timeToLive time.Duration) (string, error)

	// VerifyRefreshToken checks the signature, expiry, and class of a refresh token.
	VerifyRefreshToken(tokenString string) (*sec.AuthClaims, error)
}

// Policy carries the tunable security parameters injected at construction.
// No auth timing or threshold is an ambient global.
type Policy struct {
	LockoutThreshold   int
	LockoutWindow      time.Duration
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RememberMeTTL      time.Duration
	ResetTokenTTL      time.Duration
	ResetRequestBuffer time.Duration
}

// ServiceOptions bundles every dependency of the orchestrator.
type ServiceOptions struct {
	Users              UserRepository
	Attempts           LoginAttemptRepository
	Sessions           SessionRepository
	ResetTokens        ResetTokenRepository
	VerificationTokens VerificationTokenRepository
	Tokens             TokenProvider
	Sender             notify.Sender
	Policy             Policy
}

// Service orchestrates the authentication flows by composing the lockout
// policy, MFA manager, session manager, and reset manager.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or login logic must be reviewed by the security team.
type Service struct {
	users        UserRepository
	verifyTokens VerificationTokenRepository
	tokens       TokenProvider
	lockout      *LockoutPolicy
	mfa          *MFAManager
	sessions     *SessionManager
	resets       *ResetManager
	mailer       *Mailer
	policy       Policy
}

// NewService constructs the orchestrator and its component state machines.
func NewService(options ServiceOptions) *Service {
	return &Service{
		users:        options.Users,
		verifyTokens: options.VerificationTokens,
		tokens:       options.Tokens,
		lockout:      NewLockoutPolicy(options.Attempts, options.Policy.LockoutThreshold, options.Policy.LockoutWindow),
		mfa:          NewMFAManager(options.Users),
		sessions:     NewSessionManager(options.Sessions, options.Tokens),
		resets:       NewResetManager(options.Users, options.ResetTokens, options.Sessions, options.Policy.ResetTokenTTL, options.Policy.ResetRequestBuffer),
		mailer:       NewMailer(options.Sender),
		policy:       options.Policy,
	}
}

// AccessTokenTTL exposes the configured access-token lifetime to the
// transport layer for expires_in reporting.
func (service *Service) AccessTokenTTL() time.Duration {
	return service.policy.AccessTokenTTL
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

/*
Register validates, hashes, and persists a brand new user account.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - err: Conflict (if identity exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err := service.users.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuidv7.New(),
		Email:        input.Email,
		PasswordHash: hashedPassword,
		DisplayName:  input.DisplayName,
		Role:         sec.RoleInvestor,
		IsActive:     true,
		IsVerified:   false,
	}

	// Persist the user to the database
	if err := service.users.Create(context, user); err != nil {
		// A concurrent registration can slip past the uniqueness pre-check;
		// the unique constraint surfaces it as a Conflict here.
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusConflict {
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	// Generate and store a verification token in Redis as an async-ready side effect
	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err == nil {
		_ = service.verifyTokens.Set(context, token, user.ID, VerificationTokenTTL)
		_ = service.mailer.VerificationLink(context, user, token)
	}

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email      string
	Password   string
	MFAToken   string // Optional TOTP code or backup code
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// LoginResult is the outcome of a completed or partially completed login.
//
// When RequiresMFA is true the attempt is password-verified but no session
// exists yet; the caller must re-submit with an MFA token.
type LoginResult struct {
	RequiresMFA           bool
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
}

/*
Login drives the authentication state machine.

Description: Consults the lockout policy, verifies the password with a
constant-time comparison, defers to the MFA manager when the account has MFA
enabled, then materializes a session and mints both tokens.

State machine:

	Start -> LockoutChecked -> PasswordVerified -> (MFARequired | MFAVerified) -> SessionIssued

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Tokens and user, or the MFA-required partial result
  - err: errAccountLocked, errInvalidCredentials, errInvalidMFAToken, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {

	// ── 1. Lockout gate ──
	// Evaluated before any credential work so a locked identity learns
	// nothing about password correctness.
	if err := service.lockout.Check(context, input.Email); err != nil {
		return nil, err
	}

	// ── 2. Resolve the identity ──
	// Unknown address and wrong password share one generic error to prevent
	// enumeration; both count as failed attempts.
	user, err := service.users.FindByEmail(context, input.Email)
	if err != nil || !user.IsActive {
		service.recordFailure(context, input.Email, input.IPAddress)
		return nil, errInvalidCredentials()
	}

	// ── 3. Verify the password ──
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.recordFailure(context, input.Email, input.IPAddress)
		return nil, errInvalidCredentials()
	}

	// ── 4. Second factor ──
	if user.MFAEnabled {
		// Password verified but no MFA token supplied: return the partial
		// result. No session is created and lockout counters are untouched.
		if input.MFAToken == "" {
			return &LoginResult{RequiresMFA: true}, nil
		}

		accepted, err := service.mfa.Verify(context, user, input.MFAToken)
		if err != nil {
			return nil, fmt.Errorf("auth_service_mfa_verify_failed: %w", err)
		}
		if !accepted {
			service.recordFailure(context, input.Email, input.IPAddress)
			return nil, errInvalidMFAToken()
		}
	}

	// ── 5. Issue the session ──
	// Failed-attempt history resets; the attempt log keeps the success row.
	_ = service.lockout.Clear(context, input.Email)
	_ = service.lockout.RecordSuccess(context, input.Email, input.IPAddress)

	timeToLive := service.policy.RefreshTokenTTL
	if input.RememberMe {
		timeToLive = service.policy.RememberMeTTL
	}

	session, refreshToken, err := service.sessions.Create(context, user, input.UserAgent, input.IPAddress, timeToLive)
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	accessToken, err := service.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role), service.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	_ = service.users.UpdateLastLogin(context, user.ID, time.Now())

	// Notification carries device metadata, never the token itself.
	_ = service.mailer.LoginAlert(context, user, input.UserAgent, input.IPAddress)

	return &LoginResult{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
		User:                  user,
	}, nil
}

// recordFailure appends a failed attempt and alerts the account owner when
// the failure crosses the lockout threshold.
func (service *Service) recordFailure(context context.Context, email, ipAddress string) {
	_ = service.lockout.RecordFailure(context, email, ipAddress)

	if service.lockout.IsLocked(context, email) {
		if user, err := service.users.FindByEmail(context, email); err == nil {
			_ = service.mailer.LockoutAlert(context, user)
		}
	}
}

// # Session Management

// RefreshResult carries the freshly minted access token.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

/*
Refresh validates the session behind a refresh token and mints a new access token.

Description: The refresh token is session-bound, not single-use; it is not
rotated per call but remains subject to its own expiry and explicit
revocation. Each refresh updates the session's last-activity timestamp.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *RefreshResult: New access token credentials
  - err: errInvalidSession or internal failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (*RefreshResult, error) {
	session, err := service.sessions.Validate(context, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, session.UserID)
	if err != nil || !user.IsActive {
		return nil, errInvalidSession()
	}

	_ = service.sessions.Touch(context, session)

	accessToken, err := service.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role), service.policy.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   service.policy.AccessTokenTTL,
	}, nil
}

/*
Logout permanently revokes the session behind the refresh token.

Description: Idempotent. A missing or already-dead session is success.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - err: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	return service.sessions.Terminate(context, refreshToken)
}

/*
LogoutAll revokes every active session belonging to the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - err: Batch revocation failures
*/
func (service *Service) LogoutAll(context context.Context, userID string) error {
	return service.sessions.TerminateAll(context, userID)
}

/*
ListSessions returns the user's active sessions annotated with which one is
the caller's current session.

Parameters:
  - context: context.Context
  - userID: string
  - currentRefreshToken: string (may be empty)

Returns:
  - []SessionSummary: Client-safe session projections
  - err: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, userID, currentRefreshToken string) ([]SessionSummary, error) {
	return service.sessions.List(context, userID, currentRefreshToken)
}

/*
RevokeSession revokes a single session by ID on behalf of its owner.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - err: Revocation failures
*/
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	return service.sessions.RevokeByID(context, sessionID, userID)
}

// # Multi-Factor Authentication

/*
SetupMFA generates provisioning material for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *MFASetup: Secret, provisioning URI, and clear backup codes
  - err: errMFAAlreadyEnabled or storage failures
*/
func (service *Service) SetupMFA(context context.Context, userID string) (*MFASetup, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	return service.mfa.Setup(context, user)
}

/*
EnableMFA confirms the pending secret with a live TOTP code.

Parameters:
  - context: context.Context
  - userID: string
  - token: string

Returns:
  - err: errInvalidMFAToken, errMFAAlreadyEnabled, or storage failures
*/
func (service *Service) EnableMFA(context context.Context, userID, token string) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if err := service.mfa.Enable(context, user, token); err != nil {
		return err
	}

	_ = service.mailer.MFAEnabled(context, user)
	return nil
}

/*
DisableMFA turns MFA off after password re-verification.

Parameters:
  - context: context.Context
  - userID: string
  - password: string

Returns:
  - err: errInvalidCredentials or storage failures
*/
func (service *Service) DisableMFA(context context.Context, userID, password string) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if err := service.mfa.Disable(context, user, password); err != nil {
		return err
	}

	_ = service.mailer.MFADisabled(context, user)
	return nil
}

// # Password Management

/*
ChangePassword allows an authenticated user to update their credentials.

Description: Verifies the current password and then revokes all OTHER
refresh sessions so stolen devices are signed out.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string
  - currentRefreshToken: string

Returns:
  - err: errInvalidCredentials or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword, currentRefreshToken string) error {

	// Fetch user by ID
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	// Verify the current password before allowing change
	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return errInvalidCredentials()
	}

	// Hash the brand new password
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	// Update the database with the new hash
	if err := service.users.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	// Security Side Effect: Revoke all other sessions to force re-login on other devices
	if session, err := service.sessions.Validate(context, currentRefreshToken); err == nil {
		_ = service.sessions.RevokeOthers(context, userID, session.ID)
	}

	_ = service.mailer.PasswordChanged(context, user)

	return nil
}

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Always produces the same generic outward result for known and
unknown addresses; only the known case stores a token and sends the email.

Parameters:
  - context: context.Context
  - email: string
  - ipAddress: string

Returns:
  - err: apperr.RateLimited or storage failures
*/
func (service *Service) RequestPasswordReset(context context.Context, email, ipAddress string) error {
	clearToken, user, err := service.resets.Request(context, email, ipAddress)
	if err != nil {
		return err
	}

	if user != nil {
		_ = service.mailer.ResetLink(context, user, clearToken)
	}

	return nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Atomically consumes the token, replaces the password, and
invalidates every active session for the identity.

Parameters:
  - context: context.Context
  - clearToken: string
  - newPassword: string

Returns:
  - err: errInvalidResetToken or storage failures
*/
func (service *Service) ResetPassword(context context.Context, clearToken, newPassword string) error {
	user, err := service.resets.Redeem(context, clearToken, newPassword)
	if err != nil {
		return err
	}

	_ = service.mailer.PasswordChanged(context, user)
	return nil
}

// # Account State

/*
VerifyEmail confirms a user's email address using a secure token.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - err: Database or resolution errors
*/
func (service *Service) VerifyEmail(context context.Context, token string) error {

	// Retrieve the user ID associated with the verification token from Redis
	userID, err := service.verifyTokens.Get(context, token)
	if err != nil {
		return err
	}

	// Update the user's status to verified in persistent storage
	if err := service.users.MarkVerified(context, userID); err != nil {
		return fmt.Errorf("auth_service_verify_email_failed: %w", err)
	}

	// Cleanup the used verification token from Redis
	_ = service.verifyTokens.Delete(context, token)

	return nil
}

/*
GetSecuritySettings aggregates the account's security posture.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *SecuritySettings: MFA status, backup-code count, session count, lockout flag
  - err: Retrieval failures
*/
func (service *Service) GetSecuritySettings(context context.Context, userID string) (*SecuritySettings, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	sessionCount, err := service.sessions.CountActive(context, userID)
	if err != nil {
		return nil, err
	}

	return &SecuritySettings{
		MFAEnabled:           user.MFAEnabled,
		BackupCodesRemaining: len(user.BackupCodeHashes),
		ActiveSessionCount:   sessionCount,
		LastPasswordChangeAt: user.PasswordChangedAt,
		LastLoginAt:          user.LastLoginAt,
		IsLocked:             service.lockout.IsLocked(context, user.Email),
	}, nil
}

// CleanupExpiredSessions removes stale session rows. Intended for a periodic
// hygiene task; validity never depends on it.
func (service *Service) CleanupExpiredSessions(context context.Context) error {
	return service.sessions.DeleteExpired(context)
}
