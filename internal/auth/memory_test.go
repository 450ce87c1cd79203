// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

// In-memory repository fakes shared by the auth package tests. All fakes are
// mutex-guarded so the concurrency properties (atomic reset-token consumption,
// atomic backup-code removal) hold under parallel access exactly as the
// PostgreSQL implementations guarantee.
package auth_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/stratcap/identity/internal/auth"
	"github.com/stratcap/identity/internal/platform/apperr"
	"github.com/stratcap/identity/internal/platform/dberr"
	"github.com/stratcap/identity/internal/platform/notify"
	"github.com/stratcap/identity/internal/platform/sec"
	"github.com/stratcap/identity/pkg/uuidv7"
)

// # User Repository Fake

type memUserRepository struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: make(map[string]*auth.User)}
}

func cloneUser(user *auth.User) *auth.User {
	clone := *user
	clone.BackupCodeHashes = append([]string(nil), user.BackupCodeHashes...)
	return &clone
}

func (repo *memUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[id]; ok {
		return cloneUser(user), nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *memUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memUserRepository) Create(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	repo.users[user.ID] = cloneUser(user)
	return nil
}

func (repo *memUserRepository) UpdatePassword(_ context.Context, userID, newHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		now := time.Now()
		user.PasswordHash = newHash
		user.PasswordChangedAt = &now
		user.UpdatedAt = now
	}
	return nil
}

func (repo *memUserRepository) UpdateMFASetup(_ context.Context, userID, secret string, backupCodeHashes []string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		user.MFASecret = secret
		user.BackupCodeHashes = append([]string(nil), backupCodeHashes...)
	}
	return nil
}

func (repo *memUserRepository) EnableMFA(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		user.MFAEnabled = true
	}
	return nil
}

func (repo *memUserRepository) DisableMFA(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		user.MFAEnabled = false
		user.MFASecret = ""
		user.BackupCodeHashes = nil
	}
	return nil
}

func (repo *memUserRepository) ConsumeBackupCode(_ context.Context, userID, codeHash string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.users[userID]
	if !ok {
		return false, nil
	}
	for index, hash := range user.BackupCodeHashes {
		if hash == codeHash {
			user.BackupCodeHashes = append(user.BackupCodeHashes[:index], user.BackupCodeHashes[index+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (repo *memUserRepository) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

func (repo *memUserRepository) MarkVerified(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[userID]; ok {
		user.IsVerified = true
	}
	return nil
}

// # Login Attempt Repository Fake

type memLoginAttemptRepository struct {
	mu       sync.Mutex
	attempts []*auth.LoginAttempt
}

func newMemLoginAttemptRepository() *memLoginAttemptRepository {
	return &memLoginAttemptRepository{}
}

func (repo *memLoginAttemptRepository) Record(_ context.Context, attempt *auth.LoginAttempt) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	clone := *attempt
	repo.attempts = append(repo.attempts, &clone)
	return nil
}

func (repo *memLoginAttemptRepository) CountFailuresSince(_ context.Context, email string, since time.Time) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	count := 0
	for _, attempt := range repo.attempts {
		if attempt.Email == email && !attempt.Succeeded && attempt.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (repo *memLoginAttemptRepository) ClearFailures(_ context.Context, email string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	kept := repo.attempts[:0]
	for _, attempt := range repo.attempts {
		if attempt.Email != email || attempt.Succeeded {
			kept = append(kept, attempt)
		}
	}
	repo.attempts = kept
	return nil
}

// seedFailure backdates a failed attempt, used to test window expiry.
func (repo *memLoginAttemptRepository) seedFailure(email string, at time.Time) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.attempts = append(repo.attempts, &auth.LoginAttempt{
		ID:        uuidv7.New(),
		Email:     email,
		Succeeded: false,
		CreatedAt: at,
	})
}

// # Session Repository Fake

type memSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

func newMemSessionRepository() *memSessionRepository {
	return &memSessionRepository{sessions: make(map[string]*auth.Session)}
}

func cloneSession(session *auth.Session) *auth.Session {
	clone := *session
	return &clone
}

func (repo *memSessionRepository) Create(_ context.Context, session *auth.Session) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}
	repo.sessions[session.ID] = cloneSession(session)
	return nil
}

func (repo *memSessionRepository) FindByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, session := range repo.sessions {
		if session.TokenHash == tokenHash && !session.IsRevoked && time.Now().Before(session.ExpiresAt) {
			return cloneSession(session), nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (repo *memSessionRepository) ListActive(_ context.Context, userID string) ([]*auth.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	active := make([]*auth.Session, 0)
	for _, session := range repo.sessions {
		if session.UserID == userID && !session.IsRevoked && time.Now().Before(session.ExpiresAt) {
			active = append(active, cloneSession(session))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

func (repo *memSessionRepository) Touch(_ context.Context, sessionID string, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.LastActivityAt = at
	}
	return nil
}

func (repo *memSessionRepository) Revoke(_ context.Context, sessionID, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok && session.UserID == userID {
		session.IsRevoked = true
	}
	return nil
}

func (repo *memSessionRepository) RevokeAll(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, session := range repo.sessions {
		if session.UserID == userID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (repo *memSessionRepository) RevokeOthers(_ context.Context, userID, currentSessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, session := range repo.sessions {
		if session.UserID == userID && session.ID != currentSessionID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (repo *memSessionRepository) CountActive(_ context.Context, userID string) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	count := 0
	for _, session := range repo.sessions {
		if session.UserID == userID && !session.IsRevoked && time.Now().Before(session.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (repo *memSessionRepository) DeleteExpired(_ context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for id, session := range repo.sessions {
		if !time.Now().Before(session.ExpiresAt) {
			delete(repo.sessions, id)
		}
	}
	return nil
}

// expire backdates a session's expiry, used to test stale-session handling.
func (repo *memSessionRepository) expire(sessionID string) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// # Reset Token Repository Fake

type memResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*auth.PasswordResetToken // keyed by token hash
}

func newMemResetTokenRepository() *memResetTokenRepository {
	return &memResetTokenRepository{tokens: make(map[string]*auth.PasswordResetToken)}
}

func (repo *memResetTokenRepository) Create(_ context.Context, token *auth.PasswordResetToken) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	clone := *token
	repo.tokens[token.TokenHash] = &clone
	return nil
}

func (repo *memResetTokenRepository) FindLatestActive(_ context.Context, userID string) (*auth.PasswordResetToken, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var latest *auth.PasswordResetToken
	for _, token := range repo.tokens {
		if token.UserID != userID || token.Used || !time.Now().Before(token.ExpiresAt) {
			continue
		}
		if latest == nil || token.CreatedAt.After(latest.CreatedAt) {
			latest = token
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("Reset token")
	}
	clone := *latest
	return &clone, nil
}

func (repo *memResetTokenRepository) Consume(_ context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	token, ok := repo.tokens[tokenHash]
	if !ok || token.Used || !time.Now().Before(token.ExpiresAt) {
		return nil, apperr.NotFound("Reset token")
	}
	now := time.Now()
	token.Used = true
	token.UsedAt = &now
	clone := *token
	return &clone, nil
}

// # Verification Token Repository Fake

type memVerificationTokenRepository struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemVerificationTokenRepository() *memVerificationTokenRepository {
	return &memVerificationTokenRepository{entries: make(map[string]string)}
}

func (repo *memVerificationTokenRepository) Set(_ context.Context, token, userID string, _ time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.entries[token] = userID
	return nil
}

func (repo *memVerificationTokenRepository) Get(_ context.Context, token string) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if userID, ok := repo.entries[token]; ok {
		return userID, nil
	}
	return "", apperr.Unauthorized("Verification token is invalid or expired")
}

func (repo *memVerificationTokenRepository) Delete(_ context.Context, token string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.entries, token)
	return nil
}

// # Failure Injection Fakes

// duplicateUserRepository simulates the insert-time unique violation seen when
// two registrations for the same email race past the uniqueness pre-check.
type duplicateUserRepository struct {
	*memUserRepository
}

func (repo *duplicateUserRepository) Create(_ context.Context, _ *auth.User) error {
	return dberr.Wrap(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "account_email_key"}, "create_user")
}

// outageUserRepository fails email lookups with a storage error.
type outageUserRepository struct {
	*memUserRepository
	findEmailErr error
}

func (repo *outageUserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if repo.findEmailErr != nil {
		return nil, repo.findEmailErr
	}
	return repo.memUserRepository.FindByEmail(ctx, email)
}

// outageSessionRepository fails token-hash lookups with a storage error.
type outageSessionRepository struct {
	*memSessionRepository
	findErr error
}

func (repo *outageSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	return repo.memSessionRepository.FindByTokenHash(ctx, tokenHash)
}

// # Notification Sender Fake

type recordingSender struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (sender *recordingSender) Send(_ context.Context, message notify.Message) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.messages = append(sender.messages, message)
	return nil
}

func (sender *recordingSender) count() int {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return len(sender.messages)
}

func (sender *recordingSender) countSubject(subject string) int {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	count := 0
	for _, message := range sender.messages {
		if message.Subject == subject {
			count++
		}
	}
	return count
}

// # Test Environment

type testEnv struct {
	users    *memUserRepository
	attempts *memLoginAttemptRepository
	sessions *memSessionRepository
	resets   *memResetTokenRepository
	verify   *memVerificationTokenRepository
	sender   *recordingSender
	issuer   *sec.TokenIssuer
	policy   auth.Policy
	service  *auth.Service
}

// newTestEnv wires a full service over the in-memory fakes with the
// production-default security policy.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer, err := sec.NewTokenIssuer("test-access-secret", "test-refresh-secret", "identity.test")
	require.NoError(t, err)

	env := &testEnv{
		users:    newMemUserRepository(),
		attempts: newMemLoginAttemptRepository(),
		sessions: newMemSessionRepository(),
		resets:   newMemResetTokenRepository(),
		verify:   newMemVerificationTokenRepository(),
		sender:   &recordingSender{},
		issuer:   issuer,
		policy: auth.Policy{
			LockoutThreshold:   5,
			LockoutWindow:      30 * time.Minute,
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    24 * time.Hour,
			RememberMeTTL:      30 * 24 * time.Hour,
			ResetTokenTTL:      10 * time.Minute,
			ResetRequestBuffer: 5 * time.Minute,
		},
	}

	env.service = auth.NewService(auth.ServiceOptions{
		Users:              env.users,
		Attempts:           env.attempts,
		Sessions:           env.sessions,
		ResetTokens:        env.resets,
		VerificationTokens: env.verify,
		Tokens:             issuer,
		Sender:             env.sender,
		Policy:             env.policy,
	})

	return env
}

// seedUser registers an active, verified account directly in the user store.
func seedUser(t *testing.T, env *testEnv, email, password string) *auth.User {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	user := &auth.User{
		ID:           uuidv7.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Test User",
		Role:         sec.RoleAnalyst,
		IsActive:     true,
		IsVerified:   true,
	}
	require.NoError(t, env.users.Create(context.Background(), user))

	return user
}
