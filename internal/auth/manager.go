package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/liftme/liftme-go/internal/api"
	"github.com/liftme/liftme-go/internal/entities"
)

// AuthAPI is the slice of the gateway client the manager needs.
type AuthAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	Login(ctx context.Context, phone, password string) (string, error)
	Me(ctx context.Context) (entities.User, error)
}

// Manager ties the gateway's auth endpoints to the local session: a
// successful login or registration installs the issued token, and the
// current user is cached until logout.
type Manager struct {
	logger  *slog.Logger
	api     AuthAPI
	session *Session

	mu   sync.Mutex
	user *entities.User
}

func NewManager(logger *slog.Logger, authAPI AuthAPI, session *Session) *Manager {
	return &Manager{
		logger:  logger.With(slog.String("component", "auth")),
		api:     authAPI,
		session: session,
	}
}

func (m *Manager) Login(ctx context.Context, phone, password string) (entities.User, error) {
	token, err := m.api.Login(ctx, phone, password)
	if err != nil {
		return entities.User{}, fmt.Errorf("login: %w", err)
	}
	return m.install(ctx, token)
}

func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) (entities.User, error) {
	token, err := m.api.Register(ctx, req)
	if err != nil {
		return entities.User{}, fmt.Errorf("register: %w", err)
	}
	return m.install(ctx, token)
}

func (m *Manager) install(ctx context.Context, token string) (entities.User, error) {
	if err := m.session.SetToken(token); err != nil {
		// The session is live even if persistence failed; next start just
		// asks for credentials again.
		m.logger.Warn("token persistence failed", slog.Any("error", err))
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		return entities.User{}, fmt.Errorf("fetch profile: %w", err)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()

	m.logger.Info("signed in", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

// CurrentUser returns the cached profile, fetching it once per session.
func (m *Manager) CurrentUser(ctx context.Context) (entities.User, error) {
	m.mu.Lock()
	if m.user != nil {
		user := *m.user
		m.mu.Unlock()
		return user, nil
	}
	m.mu.Unlock()

	if !m.session.Authenticated() {
		return entities.User{}, entities.ErrUnauthorized
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		return entities.User{}, err
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
	return user, nil
}

func (m *Manager) Logout() error {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	m.logger.Info("signed out")
	return m.session.Logout()
}
