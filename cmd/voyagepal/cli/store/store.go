// Package store persists the small amount of state the CLI keeps between
// runs: the bearer token and the current trip session identifier.
//
// The two keys are independent. There is no transaction spanning them and
// concurrent writers (two terminals, say) race with last-write-wins.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/validation"
)

// Keys used by SessionStore.
const (
	KeyToken  = "token"
	KeyTripID = "currentTripId"
)

// Backend is a durable string key/value store.
type Backend interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SessionStore exposes the typed accessors the auth and workflow layers use.
type SessionStore struct {
	backend Backend
}

// NewSessionStore wraps backend.
func NewSessionStore(backend Backend) *SessionStore {
	return &SessionStore{backend: backend}
}

// Token returns the persisted bearer token, or "" when none is stored.
func (s *SessionStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

// SetToken persists the bearer token.
func (s *SessionStore) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("refusing to persist empty token")
	}
	return s.set(ctx, KeyToken, token)
}

// ClearToken removes the persisted token.
func (s *SessionStore) ClearToken(ctx context.Context) error {
	return s.del(ctx, KeyToken)
}

// TripID returns the persisted trip session identifier, or "" when none.
func (s *SessionStore) TripID(ctx context.Context) (string, error) {
	return s.get(ctx, KeyTripID)
}

// SetTripID persists the trip session identifier.
func (s *SessionStore) SetTripID(ctx context.Context, id string) error {
	if err := validation.ValidateTripID(id); err != nil {
		return fmt.Errorf("invalid trip ID: %w", err)
	}
	return s.set(ctx, KeyTripID, id)
}

// ClearTripID removes the persisted trip session identifier.
func (s *SessionStore) ClearTripID(ctx context.Context) error {
	return s.del(ctx, KeyTripID)
}

// Close closes the underlying backend.
func (s *SessionStore) Close() error {
	return s.backend.Close() //nolint:wrapcheck // thin delegation
}

func (s *SessionStore) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *SessionStore) set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SessionStore) del(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
