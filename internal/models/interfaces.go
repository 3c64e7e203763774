package models

import (
	"context"
	"time"
)

// Encryptor encrypts and decrypts token values stored at rest.
type Encryptor interface {
	Encrypt(val string) (string, error)
	Decrypt(val string) (string, error)
}

// IDGenerator generates IDs for sessions and credentials.
type IDGenerator interface {
	ID() (string, error)
}

type CredentialGetter interface {
	GetCredentials(ctx context.Context, sessionID string) (CredentialPair, error)
}

type CredentialSetter interface {
	SetCredentials(ctx context.Context, creds CredentialPair) error
}

type CredentialRemover interface {
	RemoveCredentials(ctx context.Context, sessionID string) error
}

// LoggedFlagStore reads and writes the per-session logged-in flag that other
// shells observe to follow external session changes.
type LoggedFlagStore interface {
	SetLoggedIn(ctx context.Context, sessionID string, loggedIn bool) error
	LoggedIn(ctx context.Context, sessionID string) (bool, error)
}

// ExpiringCredentialLister lists the IDs of credential pairs whose access
// token expires in the given window.
type ExpiringCredentialLister interface {
	GetExpiringCredentialIDs(ctx context.Context, from time.Time, until time.Time) ([]string, error)
}

// CredentialRepository is the durable storage for credential pairs.
type CredentialRepository interface {
	CredentialGetter
	CredentialSetter
	CredentialRemover
	LoggedFlagStore
}

// SessionEvent describes an externally observed change of a session's
// logged-in state.
type SessionEvent struct {
	SessionID string
	LoggedIn  bool
}

// SessionEventWatcher is the subscription interface for external session
// changes. Implementations deliver events published by any process sharing
// the same store, best effort and without ordering guarantees.
type SessionEventWatcher interface {
	WatchSessionEvents(ctx context.Context) (<-chan SessionEvent, error)
}
