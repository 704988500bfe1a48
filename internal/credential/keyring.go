package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "taskboard"

// SessionKeyName is the keyring item holding the session signing key.
const SessionKeyName = "session-signing-key"

// ErrNotFound is returned when the requested item does not exist.
var ErrNotFound = errors.New("credential not found")

// Config selects keyring backends and the location of the file fallback.
type Config struct {
	Backends     []keyring.BackendType
	FileDir      string
	FilePassword string
}

// DefaultConfig prefers the OS credential store and falls back to an
// encrypted file under ~/.config/taskboard.
func DefaultConfig() Config {
	return Config{
		Backends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:      "~/.config/taskboard/credentials",
		FilePassword: "taskboard-file-key",
	}
}

// Store reads and writes secrets in the system keyring.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store configured by cfg.
func Open(cfg Config) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          cfg.Backends,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// GetOrCreateSecret returns the hex secret stored under key, generating
// and saving a new random one of n bytes when none exists.
func (s *Store) GetOrCreateSecret(key string, n int) (string, error) {
	v, err := s.Get(key)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := s.Set(key, secret); err != nil {
		return "", err
	}
	return secret, nil
}
