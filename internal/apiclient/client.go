// Package apiclient is the authenticated request gateway in front of the
// remote TeamHub API. Every outbound call carries the session's access
// credential and a 401 response triggers exactly one coordinated refresh and
// one retry.
package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/TeamHubHQ/teamhub-gateway/internal/config"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
)

// Refresher is the single operation the gateway needs from the refresh
// coordinator: acquire a fresh credential pair or await the in-flight exchange.
type Refresher interface {
	Refresh(ctx context.Context, sessionID string) (models.CredentialPair, error)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	creds      models.CredentialGetter
	refresher  Refresher
}

// APIError is a non-2xx response from the remote API, passed through to the
// caller untouched unless the gateway recovered it via a refresh.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("the remote API responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("the remote API responded with status %d: %s", e.StatusCode, e.Message)
}

// ErrorStatus returns the status code when err is an APIError and 0 otherwise.
func ErrorStatus(err error) int {
	apiErr, ok := err.(*APIError)
	if !ok {
		return 0
	}
	return apiErr.StatusCode
}

type ClientOption func(*Client) error

func WithConfig(apiConfig config.APIConfig) ClientOption {
	return func(c *Client) error {
		if apiConfig.BaseURL == nil {
			return fmt.Errorf("the remote API base URL is not set")
		}
		c.baseURL = apiConfig.BaseURL
		c.httpClient = &http.Client{Timeout: apiConfig.Timeout()}
		return nil
	}
}

func WithCredentialSource(creds models.CredentialGetter) ClientOption {
	return func(c *Client) error {
		c.creds = creds
		return nil
	}
}

func WithRefresher(refresher Refresher) ClientOption {
	return func(c *Client) error {
		c.refresher = refresher
		return nil
	}
}

// NewClient creates a gateway client for the remote TeamHub API.
func NewClient(options ...ClientOption) (*Client, error) {
	client := Client{}
	for _, opt := range options {
		err := opt(&client)
		if err != nil {
			return &Client{}, err
		}
	}
	if client.baseURL == nil || client.httpClient == nil {
		return &Client{}, fmt.Errorf("the remote API base URL is not initialized")
	}
	if client.creds == nil {
		return &Client{}, fmt.Errorf("credential source not initialized")
	}
	if client.refresher == nil {
		return &Client{}, fmt.Errorf("refresher not initialized")
	}
	return &client, nil
}
