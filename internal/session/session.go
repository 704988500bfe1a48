// Package session assigns each client a signed session cookie.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CookieName is the name of the session cookie.
const CookieName = "taskboard_session"

const contextKey = "session_id"

// Manager issues and verifies session cookies.
type Manager struct {
	key    []byte
	ttl    time.Duration
	secure bool
}

// NewManager returns a Manager that signs cookies with key.
func NewManager(key []byte, ttl time.Duration, secure bool) (*Manager, error) {
	if len(key) == 0 {
		return nil, errors.New("session signing key is empty")
	}
	return &Manager{key: key, ttl: ttl, secure: secure}, nil
}

// Middleware resolves the caller's session ID from its cookie, or starts a
// new session when the cookie is missing or its signature does not match.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := "", false
		if raw, err := c.Cookie(CookieName); err == nil {
			id, ok = m.verify(raw)
		}

		if !ok {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieName, m.sign(id), int(m.ttl.Seconds()), "/", "", m.secure, true)
		}

		c.Set(contextKey, id)
		c.Next()
	}
}

// ID returns the session ID attached by Middleware.
func ID(c *gin.Context) string {
	return c.GetString(contextKey)
}

func (m *Manager) sign(id string) string {
	return id + "." + m.mac(id)
}

func (m *Manager) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
