package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
)

// Login exchanges an email and password for a credential pair. The call is
// exempt from credential attachment and from the refresh path: a 401 here is
// surfaced to the caller unchanged.
func (c *Client) Login(ctx context.Context, email string, password string) (models.TokenResponse, error) {
	tokens := models.TokenResponse{}
	err := c.do(ctx, "", request{
		method:     http.MethodPost,
		path:       tokenPath,
		payload:    models.LoginRequest{Email: email, Password: password},
		authExempt: true,
	}, &tokens)
	if err != nil {
		return models.TokenResponse{}, err
	}
	return tokens, nil
}

// Register creates a new account. Conflicts and validation failures surface
// as APIError values for the UI layer to present.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	user := models.User{}
	err := c.do(ctx, "", request{
		method:     http.MethodPost,
		path:       "accounts/register/",
		payload:    req,
		authExempt: true,
	}, &user)
	return user, err
}

// Logout invalidates the refresh credential server-side. Best effort: the
// caller clears stored credentials regardless of this call's outcome.
func (c *Client) Logout(ctx context.Context, sessionID string, refreshToken string) error {
	return c.do(ctx, sessionID, request{
		method:  http.MethodPost,
		path:    "accounts/logout/",
		payload: models.LogoutRequest{RefreshToken: refreshToken},
	}, nil)
}

// Home verifies the session and returns the signed-in user.
func (c *Client) Home(ctx context.Context, sessionID string) (models.User, error) {
	user := models.User{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodGet,
		path:   "accounts/home/",
	}, &user)
	return user, err
}

func (c *Client) Projects(ctx context.Context, sessionID string) ([]models.Project, error) {
	projects := []models.Project{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodGet,
		path:   "projects/",
	}, &projects)
	return projects, err
}

func (c *Client) CreateProject(
	ctx context.Context,
	sessionID string,
	req models.CreateProjectRequest,
) (models.Project, error) {
	project := models.Project{}
	err := c.do(ctx, sessionID, request{
		method:  http.MethodPost,
		path:    "projects/",
		payload: req,
	}, &project)
	return project, err
}

func (c *Client) Project(ctx context.Context, sessionID string, projectID int) (models.Project, error) {
	project := models.Project{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("projects/%d/", projectID),
	}, &project)
	return project, err
}

func (c *Client) ProjectMembers(ctx context.Context, sessionID string, projectID int) ([]models.Member, error) {
	members := []models.Member{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("projects/%d/members/", projectID),
	}, &members)
	return members, err
}

// RequestToJoin files a join request for the project on behalf of the
// signed-in user.
func (c *Client) RequestToJoin(ctx context.Context, sessionID string, projectID int) (models.JoinRequest, error) {
	joinRequest := models.JoinRequest{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("projects/%d/join/", projectID),
	}, &joinRequest)
	return joinRequest, err
}

// JoinRequests lists the pending join requests of a project, visible to its lead.
func (c *Client) JoinRequests(ctx context.Context, sessionID string, projectID int) ([]models.JoinRequest, error) {
	requests := []models.JoinRequest{}
	err := c.do(ctx, sessionID, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("projects/%d/requests/", projectID),
	}, &requests)
	return requests, err
}

func (c *Client) AcceptJoinRequest(ctx context.Context, sessionID string, requestID int) error {
	return c.do(ctx, sessionID, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("requests/%d/accept/", requestID),
	}, nil)
}

func (c *Client) RejectJoinRequest(ctx context.Context, sessionID string, requestID int) error {
	return c.do(ctx, sessionID, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("requests/%d/reject/", requestID),
	}, nil)
}
