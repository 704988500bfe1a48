package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
)

// SecretSource yields a persistent signing secret.
type SecretSource interface {
	GetOrCreateSecret(key string, n int) (string, error)
}

// LoadKey returns the signing key. A configured secret wins; otherwise the
// key is read from (or created in) src under name. When src is nil or
// fails, a random key is generated and sessions will not survive a
// restart.
func LoadKey(secret string, src SecretSource, name string, logger *slog.Logger) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}

	if src != nil {
		v, err := src.GetOrCreateSecret(name, 32)
		if err == nil {
			return []byte(v), nil
		}
		logger.Warn("session key unavailable from keyring, using ephemeral key", "error", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return key, nil
}
