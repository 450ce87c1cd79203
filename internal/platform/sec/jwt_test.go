// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratcap/identity/internal/platform/sec"
)

func newTestIssuer(t *testing.T) *sec.TokenIssuer {
	t.Helper()
	issuer, err := sec.NewTokenIssuer("access-secret", "refresh-secret", "identity.test")
	require.NoError(t, err)
	return issuer
}

/*
TestNewTokenIssuer_RejectsWeakConfiguration verifies that empty or shared
signing secrets are refused at construction time.
*/
func TestNewTokenIssuer_RejectsWeakConfiguration(t *testing.T) {
	// 1. Empty secrets
	_, err := sec.NewTokenIssuer("", "refresh-secret", "identity.test")
	assert.Error(t, err)
	_, err = sec.NewTokenIssuer("access-secret", "", "identity.test")
	assert.Error(t, err)

	// 2. Identical secrets defeat key separation
	_, err = sec.NewTokenIssuer("same-secret", "same-secret", "identity.test")
	assert.Error(t, err)
}

/*
TestTokenIssuer_AccessTokenRoundTrip verifies that an access token carries
the identity claims back through verification.
*/
func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.GenerateAccessToken("user-1", "trader@stratcap.io", "analyst", 15*time.Minute)
	require.NoError(t, err)

	claims, err := issuer.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "trader@stratcap.io", claims.Email)
	assert.Equal(t, "analyst", claims.Role)
	assert.Equal(t, sec.TokenTypeAccess, claims.TokenType)
}

/*
TestTokenIssuer_RefreshTokenCarriesSessionID verifies that the refresh token
binds to its session via the JWT ID claim.
*/
func TestTokenIssuer_RefreshTokenCarriesSessionID(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.GenerateRefreshToken("user-1", "session-9", 24*time.Hour)
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "session-9", claims.ID)
	assert.Equal(t, sec.TokenTypeRefresh, claims.TokenType)
}

/*
TestTokenIssuer_ClassSeparation verifies that an access token never verifies
as a refresh token and vice versa, even though both are HS256 JWTs.
*/
func TestTokenIssuer_ClassSeparation(t *testing.T) {
	issuer := newTestIssuer(t)

	accessToken, err := issuer.GenerateAccessToken("user-1", "trader@stratcap.io", "analyst", 15*time.Minute)
	require.NoError(t, err)
	refreshToken, err := issuer.GenerateRefreshToken("user-1", "session-9", 24*time.Hour)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(accessToken)
	assert.Error(t, err)
	_, err = issuer.VerifyToken(refreshToken)
	assert.Error(t, err)
}

/*
TestTokenIssuer_RejectsExpired verifies expiry enforcement.
*/
func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.GenerateAccessToken("user-1", "trader@stratcap.io", "analyst", -time.Minute)
	require.NoError(t, err)

	_, err = issuer.VerifyToken(token)
	assert.Error(t, err)
}

/*
TestTokenIssuer_RejectsForeignSignature verifies that tokens minted under a
different secret fail verification.
*/
func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	foreign, err := sec.NewTokenIssuer("other-access", "other-refresh", "identity.test")
	require.NoError(t, err)

	token, err := foreign.GenerateAccessToken("user-1", "trader@stratcap.io", "analyst", 15*time.Minute)
	require.NoError(t, err)

	_, err = issuer.VerifyToken(token)
	assert.Error(t, err)
}
