// Package auth manages the short-lived session token used to call the
// remote extraction function, and gates actions behind sign-in.
package auth

import (
	"context"
	"time"
)

// Token is a bearer token with its expiry instant. Tokens are never
// mutated, only replaced.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// NearExpiry reports whether the token expires within the given window.
func (t *Token) NearExpiry(window time.Duration) bool {
	return time.Until(t.ExpiresAt) <= window
}

// Provider is the authentication backend the Manager talks to.
type Provider interface {
	// Session returns the currently cached session token, or nil when the
	// user has no session.
	Session(ctx context.Context) (*Token, error)
	// Refresh obtains a fresh token from the auth backend.
	Refresh(ctx context.Context) (*Token, error)
	// Validate checks a token against the auth backend.
	Validate(ctx context.Context, token string) (bool, error)
}
