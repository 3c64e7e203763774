// Package sessions manages the browser sessions of the gateway. A session ID
// doubles as the key of the credential pair in the credential store.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/config"
	"github.com/TeamHubHQ/teamhub-gateway/internal/gwerrors"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/TeamHubHQ/teamhub-gateway/internal/utils"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const SessionCtxKey string = "_teamhub_session"
const DefaultSessionCookieName string = "_teamhub_session"

var sessionIDGenerator models.IDGenerator = models.NewRandomGenerator(24)

type SessionStore struct {
	sessionRepo  models.SessionRepository
	cookieName   string
	secureCookie bool
	idleTTL      time.Duration
	maxTTL       time.Duration
}

// Middleware loads the session into the request context when the session
// cookie refers to a live session and saves it back after the handler ran.
// Requests without a session proceed, access control is enforced per route.
func (sessions *SessionStore) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, loadErr := sessions.Get(c)
			if loadErr != nil && loadErr != gwerrors.ErrSessionNotFound && loadErr != gwerrors.ErrSessionExpired {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message", "could not load session",
					"error", loadErr,
					"requestID", utils.GetRequestID(c),
				)
			}
			if loadErr == nil {
				c.Set(SessionCtxKey, session)
			}
			err := next(c)
			saveErr := sessions.Save(c)
			if saveErr != nil && saveErr != gwerrors.ErrSessionNotFound && saveErr != gwerrors.ErrSessionExpired {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message", "could not save session",
					"error", saveErr,
					"requestID", utils.GetRequestID(c),
				)
			}
			return err
		}
	}
}

// getFromContext retrieves a session from the current context
func (sessions *SessionStore) getFromContext(c echo.Context) (*models.Session, error) {
	sessionRaw := c.Get(SessionCtxKey)
	if sessionRaw == nil {
		return &models.Session{}, gwerrors.ErrSessionNotFound
	}
	session, ok := sessionRaw.(*models.Session)
	if !ok {
		return &models.Session{}, gwerrors.ErrSessionParse
	}
	if session.Expired() {
		return &models.Session{}, gwerrors.ErrSessionExpired
	}
	return session, nil
}

func (sessions *SessionStore) Get(c echo.Context) (*models.Session, error) {
	// check if the session is already in the request context
	session, err := sessions.getFromContext(c)
	if err == nil {
		return session, nil
	}

	// check if the session ID is in the cookie
	cookie, err := c.Cookie(sessions.cookieName)
	if err != nil {
		if err != http.ErrNoCookie {
			return &models.Session{}, err
		}
		return &models.Session{}, gwerrors.ErrSessionNotFound
	}
	if cookie.Value == "" {
		return &models.Session{}, gwerrors.ErrSessionNotFound
	}

	// load the session from the store
	sessionFromStore, err := sessions.sessionRepo.GetSession(c.Request().Context(), cookie.Value)
	if err != nil {
		if err == redis.Nil {
			return &models.Session{}, gwerrors.ErrSessionNotFound
		}
		return &models.Session{}, err
	}
	session = &sessionFromStore
	if session.Expired() {
		return &models.Session{}, gwerrors.ErrSessionExpired
	}
	session.Touch(sessions.idleTTL, sessions.maxTTL)
	return session, nil
}

// Create creates a new session, sets the cookie and persists the session.
func (sessions *SessionStore) Create(c echo.Context, userEmail string) (*models.Session, error) {
	id, err := sessionIDGenerator.ID()
	if err != nil {
		return &models.Session{}, err
	}
	session := models.Session{
		ID:        id,
		UserEmail: userEmail,
		CreatedAt: time.Now().UTC(),
	}
	session.Touch(sessions.idleTTL, sessions.maxTTL)
	err = sessions.sessionRepo.SetSession(c.Request().Context(), session)
	if err != nil {
		return &models.Session{}, err
	}
	c.Set(SessionCtxKey, &session)
	cookie := sessions.Cookie(session)
	c.SetCookie(&cookie)
	return &session, nil
}

func (sessions *SessionStore) Save(c echo.Context) error {
	session, err := sessions.getFromContext(c)
	if err != nil {
		return err
	}
	if session.ID == "" {
		return nil
	}
	return sessions.sessionRepo.SetSession(c.Request().Context(), *session)
}

// Delete removes the session from the store and expires the cookie.
func (sessions *SessionStore) Delete(c echo.Context) error {
	var sessionID string
	cookie, err := c.Cookie(sessions.cookieName)
	if err != nil && err != http.ErrNoCookie {
		return err
	}
	if cookie != nil {
		sessionID = cookie.Value
	}

	newCookie := sessions.cookieTemplate()
	newCookie.MaxAge = -1
	c.SetCookie(&newCookie)
	c.Set(SessionCtxKey, &models.Session{})

	if sessionID == "" {
		return nil
	}
	return sessions.sessionRepo.RemoveSession(c.Request().Context(), sessionID)
}

// Remove deletes a session by ID outside of any request, used when a refresh
// teardown forces the session out.
func (sessions *SessionStore) Remove(ctx context.Context, sessionID string) error {
	return sessions.sessionRepo.RemoveSession(ctx, sessionID)
}

func (sessions *SessionStore) cookieTemplate() http.Cookie {
	return http.Cookie{
		Name:     sessions.cookieName,
		Secure:   sessions.secureCookie,
		HttpOnly: true,
		Path:     "/",
	}
}

func (sessions *SessionStore) Cookie(session models.Session) http.Cookie {
	cookie := sessions.cookieTemplate()
	cookie.Value = session.ID
	return cookie
}

type SessionStoreOption func(*SessionStore) error

func WithSessionRepository(repo models.SessionRepository) SessionStoreOption {
	return func(s *SessionStore) error {
		s.sessionRepo = repo
		return nil
	}
}

func WithConfig(sessionConfig config.SessionConfig) SessionStoreOption {
	return func(s *SessionStore) error {
		s.cookieName = sessionConfig.CookieName
		if s.cookieName == "" {
			s.cookieName = DefaultSessionCookieName
		}
		s.secureCookie = !sessionConfig.UnsafeNoHTTPSCookies
		s.idleTTL = sessionConfig.IdleTTL()
		s.maxTTL = sessionConfig.MaxTTL()
		return nil
	}
}

func NewSessionStore(options ...SessionStoreOption) (*SessionStore, error) {
	store := SessionStore{}
	for _, opt := range options {
		err := opt(&store)
		if err != nil {
			return &SessionStore{}, err
		}
	}
	if store.sessionRepo == nil {
		return &SessionStore{}, fmt.Errorf("session repository not initialized")
	}
	if store.cookieName == "" {
		store.cookieName = DefaultSessionCookieName
	}
	return &store, nil
}
