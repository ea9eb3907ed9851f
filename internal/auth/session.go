package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore persists the bearer token between sessions.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a plain file, the desktop analog of the
// mobile app's async storage.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Session holds the bearer token for the lifetime of a client session. It is
// the single writer of the token; the API client reads it through Token().
type Session struct {
	logger *slog.Logger
	store  TokenStore

	mu    sync.RWMutex
	token string
}

func NewSession(logger *slog.Logger, store TokenStore) *Session {
	return &Session{
		logger: logger.With(slog.String("component", "session")),
		store:  store,
	}
}

// Restore loads a previously stored token. A token that is already expired is
// discarded so the first request does not fail with a confusing 401.
func (s *Session) Restore() error {
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	if expired, err := tokenExpired(token, time.Now()); err != nil {
		s.logger.Warn("stored token is malformed, discarding", slog.Any("error", err))
		return s.store.Clear()
	} else if expired {
		s.logger.Info("stored token expired, discarding")
		return s.store.Clear()
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// SetToken installs a freshly issued token and persists it. An empty token
// logs the session out.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if token == "" {
		return s.store.Clear()
	}
	return s.store.Save(token)
}

func (s *Session) Logout() error {
	return s.SetToken("")
}

// Token implements api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// ExpiresAt peeks at the token's exp claim without verifying the signature.
// The server is the authority, the client only wants to know when a re-login
// prompt is due. Zero time means no token or no exp claim.
func (s *Session) ExpiresAt() time.Time {
	token := s.Token()
	if token == "" {
		return time.Time{}
	}
	exp, err := tokenExpiry(token)
	if err != nil {
		return time.Time{}
	}
	return exp
}

func tokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

func tokenExpired(token string, now time.Time) (bool, error) {
	exp, err := tokenExpiry(token)
	if err != nil {
		return false, err
	}
	if exp.IsZero() {
		return false, nil
	}
	return exp.Before(now), nil
}
