package webapp

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/apiclient"
	"github.com/TeamHubHQ/teamhub-gateway/internal/gwerrors"
	"github.com/TeamHubHQ/teamhub-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

const loginPath = "/login"
const homePath = "/home"

// NoCaching sets headers in responses that prevent caching by the browser.
// Taken from oauth2 proxy.
func NoCaching(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var noCacheHeaders = map[string]string{
			"Expires":         time.Unix(0, 0).Format(time.RFC1123),
			"Cache-Control":   "no-cache, no-store, must-revalidate, max-age=0",
			"X-Accel-Expires": "0",
		}
		for k, v := range noCacheHeaders {
			c.Response().Header().Set(k, v)
		}
		return next(c)
	}
}

// RequireAuth is the bootstrap of the authenticated area: without a session,
// without stored credentials or with the logged-in flag cleared (possibly by
// another shell sharing the store) the request is redirected to the sign-in
// page. No call to the remote API is made here, the flag and the credential
// presence are observed from storage alone.
func (w *WebServer) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := w.sessions.Get(c)
		if err != nil || session.ID == "" {
			return c.Redirect(http.StatusFound, loginPath)
		}
		ctx := c.Request().Context()
		_, err = w.creds.GetCredentials(ctx, session.ID)
		if err != nil {
			if err != gwerrors.ErrCredentialsNotFound && err != gwerrors.ErrPartialCredentials {
				slog.Error(
					"WEBAPP",
					"message", "reading credentials failed",
					"error", err,
					"requestID", utils.GetRequestID(c),
				)
			}
			return c.Redirect(http.StatusFound, loginPath)
		}
		loggedIn, err := w.creds.LoggedIn(ctx, session.ID)
		if err != nil || !loggedIn {
			return c.Redirect(http.StatusFound, loginPath)
		}
		return next(c)
	}
}

// authFailure reports whether an error from the gateway means the session is
// beyond recovery and the user has to sign in again.
func authFailure(err error) bool {
	if errors.Is(err, gwerrors.ErrSessionExpired) ||
		errors.Is(err, gwerrors.ErrCredentialsNotFound) ||
		errors.Is(err, gwerrors.ErrPartialCredentials) {
		return true
	}
	return apiclient.ErrorStatus(err) == http.StatusUnauthorized
}
