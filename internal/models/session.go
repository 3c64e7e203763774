package models

import (
	"context"
	"time"
)

// Session represents a persistent session between a browser and the gateway.
// The session ID doubles as the credential ID in the credential store.
type Session struct {
	ID string
	// Email of the signed-in user, empty for anonymous sessions
	UserEmail string
	// UTC timestamp for when the session was created
	CreatedAt time.Time
	// UTC timestamp for when the session will expire
	ExpiresAt time.Time
}

func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Touch updates a session's ExpiresAt field according to the idle and max TTLs.
func (s *Session) Touch(idleTTL time.Duration, maxTTL time.Duration) {
	maxExpiresAt := s.CreatedAt.Add(maxTTL)
	expiresAt := time.Now().UTC().Add(idleTTL)
	if expiresAt.After(maxExpiresAt) {
		expiresAt = maxExpiresAt
	}
	s.ExpiresAt = expiresAt
}

type SessionGetter interface {
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

type SessionSetter interface {
	SetSession(ctx context.Context, session Session) error
}

type SessionRemover interface {
	RemoveSession(ctx context.Context, sessionID string) error
}

// SessionRepository is the durable storage for sessions.
type SessionRepository interface {
	SessionGetter
	SessionSetter
	SessionRemover
}
