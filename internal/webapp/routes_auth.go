package webapp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/TeamHubHQ/teamhub-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

func (w *WebServer) GetIndex(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err == nil && session.ID != "" {
		loggedIn, err := w.creds.LoggedIn(c.Request().Context(), session.ID)
		if err == nil && loggedIn {
			return c.Redirect(http.StatusFound, homePath)
		}
	}
	return c.Redirect(http.StatusFound, loginPath)
}

// GetLogin renders the sign-in page. A session that is already signed in
// (possibly from another shell sharing the store) goes straight to the
// authenticated home.
func (w *WebServer) GetLogin(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err == nil && session.ID != "" {
		loggedIn, err := w.creds.LoggedIn(c.Request().Context(), session.ID)
		if err == nil && loggedIn {
			return c.Redirect(http.StatusFound, homePath)
		}
	}
	return c.Render(http.StatusOK, "login.html", map[string]any{})
}

func (w *WebServer) PostLogin(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")
	tokens, err := w.api.Login(c.Request().Context(), email, password)
	if err != nil {
		slog.Info(
			"WEBAPP",
			"message", "sign-in failed",
			"error", err,
			"requestID", utils.GetRequestID(c),
		)
		return c.Render(http.StatusUnauthorized, "login.html", map[string]any{
			"Error": "Sign-in failed, check your email and password.",
		})
	}
	session, err := w.sessions.Create(c, email)
	if err != nil {
		return err
	}
	pair := models.CredentialPair{
		ID:           session.ID,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		ExpiresAt:    models.AccessTokenExpiry(tokens.Access),
		CreatedAt:    time.Now().UTC(),
	}
	err = w.creds.SetCredentials(c.Request().Context(), pair)
	if err != nil {
		return err
	}
	err = w.creds.SetLoggedIn(c.Request().Context(), session.ID, true)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, homePath)
}

func (w *WebServer) GetRegister(c echo.Context) error {
	return c.Render(http.StatusOK, "register.html", map[string]any{})
}

func (w *WebServer) PostRegister(c echo.Context) error {
	req := models.RegisterRequest{
		Email:     c.FormValue("email"),
		FirstName: c.FormValue("first_name"),
		LastName:  c.FormValue("last_name"),
		Password:  c.FormValue("password"),
	}
	_, err := w.api.Register(c.Request().Context(), req)
	if err != nil {
		// conflicts and validation failures are user-visible messages
		return c.Render(http.StatusBadRequest, "register.html", map[string]any{
			"Error": err.Error(),
		})
	}
	return c.Redirect(http.StatusFound, loginPath)
}

// GetLogout signs the user out. The server-side invalidation is best effort,
// stored credentials are cleared regardless of its outcome.
func (w *WebServer) GetLogout(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil || session.ID == "" {
		return c.Redirect(http.StatusFound, loginPath)
	}
	ctx := c.Request().Context()
	creds, err := w.creds.GetCredentials(ctx, session.ID)
	if err == nil {
		err = w.api.Logout(ctx, session.ID, creds.RefreshToken)
		if err != nil {
			slog.Info(
				"WEBAPP",
				"message", "server-side logout failed",
				"error", err,
				"requestID", utils.GetRequestID(c),
			)
		}
	}
	err = w.creds.RemoveCredentials(ctx, session.ID)
	if err != nil {
		return err
	}
	err = w.creds.SetLoggedIn(ctx, session.ID, false)
	if err != nil {
		return err
	}
	err = w.sessions.Delete(c)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, loginPath)
}

// teardownAndRedirect clears the session after a terminal authorization
// failure and sends the browser back to the sign-in page.
func (w *WebServer) teardownAndRedirect(c echo.Context, sessionID string) error {
	ctx := c.Request().Context()
	err := w.creds.RemoveCredentials(ctx, sessionID)
	if err != nil {
		slog.Error("WEBAPP", "message", "removing credentials failed", "error", err)
	}
	err = w.creds.SetLoggedIn(ctx, sessionID, false)
	if err != nil {
		slog.Error("WEBAPP", "message", "clearing logged flag failed", "error", err)
	}
	err = w.sessions.Delete(c)
	if err != nil {
		slog.Error("WEBAPP", "message", "deleting session failed", "error", err)
	}
	return c.Redirect(http.StatusFound, loginPath)
}
