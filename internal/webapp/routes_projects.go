package webapp

import (
	"context"
	"net/http"
	"strconv"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/labstack/echo/v4"
)

// GetHome verifies the session against the remote API and renders the home
// page. A terminal authorization failure tears the session down.
func (w *WebServer) GetHome(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	user, err := w.api.Home(c.Request().Context(), session.ID)
	if err != nil {
		if authFailure(err) {
			return w.teardownAndRedirect(c, session.ID)
		}
		return c.Render(http.StatusBadGateway, "home.html", map[string]any{
			"User":  models.User{Email: session.UserEmail},
			"Error": "The TeamHub API is currently unavailable.",
		})
	}
	return c.Render(http.StatusOK, "home.html", map[string]any{"User": user})
}

func (w *WebServer) GetProjects(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	projects, err := w.api.Projects(c.Request().Context(), session.ID)
	if err != nil {
		if authFailure(err) {
			return w.teardownAndRedirect(c, session.ID)
		}
		return c.Render(http.StatusBadGateway, "projects.html", map[string]any{
			"Error": "Loading projects failed.",
		})
	}
	return c.Render(http.StatusOK, "projects.html", map[string]any{"Projects": projects})
}

func (w *WebServer) PostProjects(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	maxMembers, err := strconv.Atoi(c.FormValue("max_members"))
	if err != nil {
		maxMembers = 0
	}
	req := models.CreateProjectRequest{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		MaxMembers:  maxMembers,
	}
	_, err = w.api.CreateProject(c.Request().Context(), session.ID, req)
	if err != nil {
		if authFailure(err) {
			return w.teardownAndRedirect(c, session.ID)
		}
		return c.Render(http.StatusBadRequest, "projects.html", map[string]any{
			"Error": err.Error(),
		})
	}
	return c.Redirect(http.StatusFound, "/projects")
}

func (w *WebServer) GetProject(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	ctx := c.Request().Context()
	project, err := w.api.Project(ctx, session.ID, projectID)
	if err != nil {
		if authFailure(err) {
			return w.teardownAndRedirect(c, session.ID)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	members, err := w.api.ProjectMembers(ctx, session.ID, projectID)
	if err != nil && authFailure(err) {
		return w.teardownAndRedirect(c, session.ID)
	}
	isLead := project.Lead.Email == session.UserEmail
	data := map[string]any{
		"Project": project,
		"Members": members,
		"IsLead":  isLead,
	}
	if isLead {
		requests, err := w.api.JoinRequests(ctx, session.ID, projectID)
		if err == nil {
			data["JoinRequests"] = requests
		}
	}
	return c.Render(http.StatusOK, "project.html", data)
}

func (w *WebServer) PostJoinProject(c echo.Context) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	_, err = w.api.RequestToJoin(c.Request().Context(), session.ID, projectID)
	if err != nil && authFailure(err) {
		return w.teardownAndRedirect(c, session.ID)
	}
	return c.Redirect(http.StatusFound, "/projects/"+c.Param("id"))
}

func (w *WebServer) PostAcceptRequest(c echo.Context) error {
	return w.resolveJoinRequest(c, w.api.AcceptJoinRequest)
}

func (w *WebServer) PostRejectRequest(c echo.Context) error {
	return w.resolveJoinRequest(c, w.api.RejectJoinRequest)
}

func (w *WebServer) resolveJoinRequest(
	c echo.Context,
	resolve func(ctx context.Context, sessionID string, requestID int) error,
) error {
	session, err := w.sessions.Get(c)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	requestID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	err = resolve(c.Request().Context(), session.ID, requestID)
	if err != nil {
		if authFailure(err) {
			return w.teardownAndRedirect(c, session.ID)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.Redirect(http.StatusFound, "/projects")
}
