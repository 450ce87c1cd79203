// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package auth

import (
	"context"
	"fmt"

	"github.com/stratcap/identity/internal/platform/notify"
)

// Mailer composes the security notifications emitted by the auth flows.
//
// # Security
//
// Messages carry device metadata and one-time links but never a session
// token, a password, or a password hash. Delivery is best-effort; callers
// treat send failures as non-fatal side effects.
type Mailer struct {
	sender notify.Sender
}

// NewMailer creates a mailer bound to the configured delivery transport.
func NewMailer(sender notify.Sender) *Mailer {
	return &Mailer{sender: sender}
}

// LoginAlert notifies the user of a new login with device metadata.
func (mailer *Mailer) LoginAlert(context context.Context, user *User, userAgent, ipAddress string) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "New login to your StratCap account",
		Text: fmt.Sprintf(
			"Hi %s,\n\nA new login to your account was detected.\n\nDevice: %s\nIP address: %s\n\nIf this was not you, revoke the session and change your password immediately.",
			user.DisplayName, userAgent, ipAddress,
		),
	})
}

// ResetLink delivers the clear password-reset token. This is the only channel
// the clear value ever travels through.
func (mailer *Mailer) ResetLink(context context.Context, user *User, clearToken string) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Reset your StratCap password",
		Text: fmt.Sprintf(
			"Hi %s,\n\nUse the token below to reset your password. It expires in a few minutes and works exactly once.\n\n%s\n\nIf you did not request this, you can ignore this email.",
			user.DisplayName, clearToken,
		),
	})
}

// VerificationLink delivers the email verification token to a new account.
func (mailer *Mailer) VerificationLink(context context.Context, user *User, clearToken string) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Verify your StratCap email address",
		Text: fmt.Sprintf(
			"Hi %s,\n\nWelcome to StratCap. Use the token below to verify your email address.\n\n%s",
			user.DisplayName, clearToken,
		),
	})
}

// PasswordChanged notifies the user that their password was replaced.
func (mailer *Mailer) PasswordChanged(context context.Context, user *User) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Your StratCap password was changed",
		Text: fmt.Sprintf(
			"Hi %s,\n\nYour account password was just changed and other devices were signed out. If this was not you, contact security@stratcap.com immediately.",
			user.DisplayName,
		),
	})
}

// LockoutAlert warns the user that their account is temporarily locked.
func (mailer *Mailer) LockoutAlert(context context.Context, user *User) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Your StratCap account is temporarily locked",
		Text: fmt.Sprintf(
			"Hi %s,\n\nRepeated failed login attempts were detected and your account is temporarily locked. It will unlock automatically. If this was not you, consider changing your password once unlocked.",
			user.DisplayName,
		),
	})
}

// MFAEnabled confirms that multi-factor authentication was turned on.
func (mailer *Mailer) MFAEnabled(context context.Context, user *User) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Two-factor authentication enabled",
		Text: fmt.Sprintf(
			"Hi %s,\n\nTwo-factor authentication is now active on your account. Keep your backup codes somewhere safe.",
			user.DisplayName,
		),
	})
}

// MFADisabled warns that multi-factor authentication was turned off.
func (mailer *Mailer) MFADisabled(context context.Context, user *User) error {
	return mailer.sender.Send(context, notify.Message{
		To:      user.Email,
		Subject: "Two-factor authentication disabled",
		Text: fmt.Sprintf(
			"Hi %s,\n\nTwo-factor authentication was just disabled on your account. If this was not you, contact security@stratcap.com immediately.",
			user.DisplayName,
		),
	})
}
