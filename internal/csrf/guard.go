// Package csrf issues and checks per-session anti-forgery tokens.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
)

// HeaderName is the request header that carries the token.
const HeaderName = "X-CSRF-Token"

// tokenBytes is the entropy of a token before hex encoding.
const tokenBytes = 32

// SessionStore keeps at most one token per session.
type SessionStore interface {
	// Token returns the token stored for sessionID, if any.
	Token(ctx context.Context, sessionID string) (string, bool, error)

	// SetTokenIfAbsent stores token unless the session already has one,
	// and returns whichever token is now stored.
	SetTokenIfAbsent(ctx context.Context, sessionID, token string) (string, error)
}

// Guard issues and validates tokens against a SessionStore.
type Guard struct {
	store  SessionStore
	logger *slog.Logger
	random func([]byte) (int, error)
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger used for store faults.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// NewGuard returns a Guard backed by store.
func NewGuard(store SessionStore, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		logger: slog.Default(),
		random: rand.Read,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IssueOrGetToken returns the session's token, generating one first if
// the session has none. Repeated calls return the same token.
func (g *Guard) IssueOrGetToken(ctx context.Context, sessionID string) (string, error) {
	if tok, ok, err := g.store.Token(ctx, sessionID); err != nil {
		return "", fmt.Errorf("reading csrf token: %w", err)
	} else if ok {
		return tok, nil
	}

	tok, err := g.newToken()
	if err != nil {
		return "", err
	}

	live, err := g.store.SetTokenIfAbsent(ctx, sessionID, tok)
	if err != nil {
		return "", fmt.Errorf("storing csrf token: %w", err)
	}
	return live, nil
}

// Validate reports whether presented matches the session's token. It is
// false when the session has no token or presented is empty.
func (g *Guard) Validate(ctx context.Context, sessionID, presented string) bool {
	if presented == "" {
		return false
	}

	stored, ok, err := g.store.Token(ctx, sessionID)
	if err != nil {
		g.logger.Warn("csrf token lookup failed", "error", err)
		return false
	}
	if !ok || stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// RequestPasses reports whether a request with the given method may
// proceed. GET is always allowed; every other method needs a valid token.
func (g *Guard) RequestPasses(ctx context.Context, method, sessionID, presented string) bool {
	if method == http.MethodGet {
		return true
	}
	return g.Validate(ctx, sessionID, presented)
}

func (g *Guard) newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := g.random(buf); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
