// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

// Package notify delivers transactional security emails (verification
// links, password reset links, lockout and password-change alerts).
//
// # Architecture
//
// This package belongs to the Infrastructure layer. The auth service
// depends on the Sender interface only; the concrete transport (Resend
// in production, structured logging in development) is selected at
// composition time in main.
package notify

import "context"

// Message is a single transactional email to one recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers transactional messages. Implementations must be safe
// for concurrent use.
type Sender interface {
	Send(ctx context.Context, message Message) error
}
