// Package auth owns the authentication session: whether a bearer token is
// held, and the login, register and logout operations that change it.
//
// A session is authenticated exactly when a token is present in the store.
// The token is never checked for expiry or signature locally; the service is
// the only authority on whether it is still good.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/store"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi"
)

// Fallback messages used when the service gives no detail.
const (
	LoginFailedMessage    = "Login failed"
	RegisterFailedMessage = "Registration failed"
)

// Session is a snapshot of the authentication state.
type Session struct {
	Token string
}

// IsAuthenticated reports whether a token is held.
func (s Session) IsAuthenticated() bool { return s.Token != "" }

// Authenticator is the remote side of login and registration.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, reg trip.Registration) (string, error)
}

// AuthError is a failed login or registration. Message is what to show the user.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// Manager holds the session and keeps it in step with the persisted token.
type Manager struct {
	client Authenticator
	store  *store.SessionStore

	mu      sync.RWMutex
	session Session
}

// NewManager reads the persisted token. It does not contact the service.
func NewManager(ctx context.Context, client Authenticator, st *store.SessionStore) (*Manager, error) {
	token, err := st.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return &Manager{client: client, store: st, session: Session{Token: token}}, nil
}

// Session returns the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Login exchanges credentials for a token and persists it. On failure neither
// the session nor the persisted token changes.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	ctx = logging.WithComponent(ctx, "auth")
	email = strings.TrimSpace(email)

	token, err := m.client.Login(ctx, email, password)
	if err != nil {
		logging.Info(ctx, "login failed", slog.String("error", err.Error()))
		return &AuthError{Op: "login", Message: messageFor(err, LoginFailedMessage), Err: err}
	}
	if token == "" {
		return &AuthError{Op: "login", Message: LoginFailedMessage, Err: errors.New("service returned an empty access token")}
	}

	if err := m.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	m.mu.Lock()
	m.session = Session{Token: token}
	m.mu.Unlock()

	logging.Info(ctx, "logged in")
	return nil
}

// Register creates an account and returns the service's confirmation
// message. It never changes the session.
func (m *Manager) Register(ctx context.Context, email, password, fullName string) (string, error) {
	ctx = logging.WithComponent(ctx, "auth")

	msg, err := m.client.Register(ctx, trip.Registration{
		Email:    strings.TrimSpace(email),
		Password: password,
		FullName: strings.TrimSpace(fullName),
	})
	if err != nil {
		logging.Info(ctx, "registration failed", slog.String("error", err.Error()))
		return "", &AuthError{Op: "register", Message: messageFor(err, RegisterFailedMessage), Err: err}
	}
	logging.Info(ctx, "registered")
	return msg, nil
}

// Logout forgets the token. The in-memory session is cleared even when the
// store cannot be updated; that failure is still returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()

	if err := m.store.ClearToken(ctx); err != nil {
		logging.Error(logging.WithComponent(ctx, "auth"), "failed to clear persisted token", slog.String("error", err.Error()))
		return fmt.Errorf("failed to clear persisted token: %w", err)
	}
	logging.Info(logging.WithComponent(ctx, "auth"), "logged out")
	return nil
}

// Identity is what the token claims about its holder. It is display-only.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the claimed expiry has passed.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Identity decodes the token's claims without verifying them. ok is false
// when there is no token or it is not a readable JWT.
func (m *Manager) Identity() (Identity, bool) {
	token := m.Session().Token
	if token == "" {
		return Identity{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, false
	}

	var id Identity
	id.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, true
}

func messageFor(err error, fallback string) string {
	if d := tripapi.Detail(err); d != "" {
		return d
	}
	return fallback
}
