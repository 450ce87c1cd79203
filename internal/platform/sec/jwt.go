// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [auth.TokenProvider] interface.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token classes carried in the "typ" claim. Access and refresh tokens are
// signed with distinct secrets and are never interchangeable.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AuthClaims represents the payload embedded inside a JWT.
//
// # Why custom claims?
//
// By embedding the UserID, Email, and Role directly inside the JWT,
// the authentication middleware can reconstruct the active user context
// WITHOUT querying the database on every single API request.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID    string `json:"uid"`
	Email     string `json:"eml,omitempty"`
	Role      string `json:"rol,omitempty"`
	TokenType string `json:"typ"`
}

// TokenIssuer handles generation and verification of JWT tokens using HS256.
//
// # Key Separation
//
// accessSecret and refreshSecret are independent signing keys. Compromise of
// the access-token key does not allow forging refresh tokens, and vice versa.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
}

// NewTokenIssuer creates a new TokenIssuer with class-distinct signing secrets.
func NewTokenIssuer(accessSecret, refreshSecret, issuer string) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("sec: token signing secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("sec: access and refresh secrets must differ")
	}

	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
	}, nil
}

// GenerateAccessToken creates a new short-lived JWT access token for a user.
func (issuer *TokenIssuer) GenerateAccessToken(userID, email, role string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(issuer.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// GenerateRefreshToken creates a new long-lived JWT refresh token bound to a
// session. The session ID is carried as the JWT ID claim.
func (issuer *TokenIssuer) GenerateRefreshToken(userID, sessionID string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    issuer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:    userID,
		TokenType: TokenTypeRefresh,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(issuer.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of an access token string.
// It satisfies the middleware's TokenVerifier contract.
func (issuer *TokenIssuer) VerifyToken(tokenString string) (*AuthClaims, error) {
	return issuer.verify(tokenString, issuer.accessSecret, TokenTypeAccess)
}

// VerifyRefreshToken checks the signature and validity of a refresh token string.
func (issuer *TokenIssuer) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return issuer.verify(tokenString, issuer.refreshSecret, TokenTypeRefresh)
}

// verify parses a token against the given secret and enforces the token class.
func (issuer *TokenIssuer) verify(tokenString string, secret []byte, wantType string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	if claims.TokenType != wantType {
		return nil, fmt.Errorf("sec: wrong token type %q", claims.TokenType)
	}

	return claims, nil
}
