// Package webapp serves the TeamHub UI: sign-in and sign-up, the project
// list and project pages, and the join-request actions of a team lead. All
// remote data flows through the authenticated request gateway.
package webapp

import (
	"fmt"

	"github.com/TeamHubHQ/teamhub-gateway/internal/apiclient"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/TeamHubHQ/teamhub-gateway/internal/sessions"
	"github.com/labstack/echo/v4"
)

type WebServer struct {
	sessions *sessions.SessionStore
	api      *apiclient.Client
	creds    models.CredentialRepository
}

func (w *WebServer) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	e := server.Group("")
	e.Use(commonMiddlewares...)
	e.Use(w.sessions.Middleware())

	e.GET("/", w.GetIndex, NoCaching)
	e.GET("/login", w.GetLogin, NoCaching)
	e.POST("/login", w.PostLogin, NoCaching)
	e.GET("/register", w.GetRegister, NoCaching)
	e.POST("/register", w.PostRegister, NoCaching)
	e.GET("/logout", w.GetLogout, NoCaching)

	authed := e.Group("", w.RequireAuth)
	authed.GET("/home", w.GetHome)
	authed.GET("/projects", w.GetProjects)
	authed.POST("/projects", w.PostProjects)
	authed.GET("/projects/:id", w.GetProject)
	authed.POST("/projects/:id/join", w.PostJoinProject)
	authed.POST("/requests/:id/accept", w.PostAcceptRequest)
	authed.POST("/requests/:id/reject", w.PostRejectRequest)
}

type WebServerOption func(*WebServer) error

func WithSessionStore(store *sessions.SessionStore) WebServerOption {
	return func(w *WebServer) error {
		w.sessions = store
		return nil
	}
}

func WithAPIClient(client *apiclient.Client) WebServerOption {
	return func(w *WebServer) error {
		w.api = client
		return nil
	}
}

func WithCredentialRepository(creds models.CredentialRepository) WebServerOption {
	return func(w *WebServer) error {
		w.creds = creds
		return nil
	}
}

// NewWebServer creates a new WebServer that renders the UI and talks to the
// remote API through the gateway client.
func NewWebServer(options ...WebServerOption) (*WebServer, error) {
	server := WebServer{}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return &WebServer{}, err
		}
	}
	if server.sessions == nil {
		return &WebServer{}, fmt.Errorf("session store not initialized")
	}
	if server.api == nil {
		return &WebServer{}, fmt.Errorf("API client not initialized")
	}
	if server.creds == nil {
		return &WebServer{}, fmt.Errorf("credential repository not initialized")
	}
	return &server, nil
}
