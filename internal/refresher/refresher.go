// Package refresher coordinates credential refresh exchanges with the remote API.
package refresher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/config"
	"github.com/TeamHubHQ/teamhub-gateway/internal/gwerrors"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"golang.org/x/sync/singleflight"
)

// Coordinator guarantees that concurrent authorization failures for the same
// session produce exactly one exchange with the credential-refresh endpoint.
// Callers that arrive while an exchange is in flight block until it settles
// and all of them receive its outcome. A terminal failure of the exchange
// tears the session down: the stored pair is deleted, the logged-in flag is
// cleared and every teardown subscriber is notified.
type Coordinator struct {
	group      singleflight.Group
	httpClient *http.Client
	refreshURL string
	creds      models.CredentialRepository
	onTeardown []func(sessionID string)
}

// Refresh performs the refresh exchange for a session, or waits for the
// in-flight one. Every caller receives the new pair or the error that settled
// the exchange, exactly once.
//
// The exchange runs with its own timeout so a caller's cancelled context does
// not abort it for the other waiters.
func (c *Coordinator) Refresh(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	res, err, shared := c.group.Do(sessionID, func() (any, error) {
		return c.refresh(sessionID)
	})
	if err != nil {
		return models.CredentialPair{}, err
	}
	slog.Debug(
		"REFRESH COORDINATOR",
		"message", "refresh exchange settled",
		"sessionID", sessionID,
		"shared", shared,
	)
	pair, ok := res.(models.CredentialPair)
	if !ok {
		return models.CredentialPair{}, fmt.Errorf("unexpected result type from refresh exchange")
	}
	return pair, nil
}

func (c *Coordinator) refresh(sessionID string) (models.CredentialPair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	creds, err := c.creds.GetCredentials(ctx, sessionID)
	if errors.Is(err, gwerrors.ErrCredentialsNotFound) || errors.Is(err, gwerrors.ErrPartialCredentials) {
		// nothing usable to refresh with - the session is beyond recovery
		c.teardown(ctx, sessionID)
		return models.CredentialPair{}, gwerrors.ErrCredentialsNotFound
	}
	if err != nil {
		// the store read failed, the stored pair stays so a later call can
		// start a fresh refresh cycle
		slog.Error("REFRESH COORDINATOR", "message", "reading stored credentials failed", "error", err, "sessionID", sessionID)
		return models.CredentialPair{}, err
	}

	body, err := json.Marshal(models.RefreshRequest{Refresh: creds.RefreshToken})
	if err != nil {
		return models.CredentialPair{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		return models.CredentialPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// transport failures are not terminal, the stored pair stays so a
		// later call can start a fresh refresh cycle
		slog.Error("REFRESH COORDINATOR", "message", "refresh exchange failed", "error", err, "sessionID", sessionID)
		return models.CredentialPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// the refresh credential itself was rejected
		slog.Info(
			"REFRESH COORDINATOR",
			"message", "refresh credential rejected, tearing the session down",
			"status", resp.StatusCode,
			"sessionID", sessionID,
		)
		c.teardown(ctx, sessionID)
		return models.CredentialPair{}, gwerrors.ErrSessionExpired
	}
	if resp.StatusCode >= 300 {
		return models.CredentialPair{}, fmt.Errorf("refresh exchange failed with status %d", resp.StatusCode)
	}

	tokens := models.TokenResponse{}
	err = json.NewDecoder(resp.Body).Decode(&tokens)
	if err != nil {
		return models.CredentialPair{}, err
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return models.CredentialPair{}, gwerrors.ErrPartialCredentials
	}
	pair := models.CredentialPair{
		ID:           sessionID,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		ExpiresAt:    models.AccessTokenExpiry(tokens.Access),
		CreatedAt:    time.Now().UTC(),
	}
	err = c.creds.SetCredentials(ctx, pair)
	if err != nil {
		return models.CredentialPair{}, err
	}
	slog.Debug("REFRESH COORDINATOR", "message", "stored refreshed credentials", "credentials", pair)
	return pair, nil
}

func (c *Coordinator) teardown(ctx context.Context, sessionID string) {
	err := c.creds.RemoveCredentials(ctx, sessionID)
	if err != nil {
		slog.Error("REFRESH COORDINATOR", "message", "removing credentials failed", "error", err, "sessionID", sessionID)
	}
	err = c.creds.SetLoggedIn(ctx, sessionID, false)
	if err != nil {
		slog.Error("REFRESH COORDINATOR", "message", "clearing logged flag failed", "error", err, "sessionID", sessionID)
	}
	for _, callback := range c.onTeardown {
		callback(sessionID)
	}
}

type CoordinatorOption func(*Coordinator) error

func WithConfig(apiConfig config.APIConfig) CoordinatorOption {
	return func(c *Coordinator) error {
		if apiConfig.BaseURL == nil {
			return fmt.Errorf("the remote API base URL is not set")
		}
		c.refreshURL = apiConfig.BaseURL.JoinPath("token", "refresh").String() + "/"
		c.httpClient = &http.Client{Timeout: apiConfig.Timeout()}
		return nil
	}
}

func WithCredentialRepository(creds models.CredentialRepository) CoordinatorOption {
	return func(c *Coordinator) error {
		c.creds = creds
		return nil
	}
}

// OnSessionTeardown registers a callback invoked after a terminal refresh
// failure removed the session's credentials. The shell uses this to drop the
// session record so the next request lands on the sign-in page.
func OnSessionTeardown(callback func(sessionID string)) CoordinatorOption {
	return func(c *Coordinator) error {
		c.onTeardown = append(c.onTeardown, callback)
		return nil
	}
}

// NewCoordinator creates a new Coordinator that serializes refresh exchanges
// per session.
func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	coordinator := Coordinator{}
	for _, opt := range options {
		err := opt(&coordinator)
		if err != nil {
			return &Coordinator{}, err
		}
	}
	if coordinator.refreshURL == "" || coordinator.httpClient == nil {
		return &Coordinator{}, fmt.Errorf("the refresh endpoint is not initialized")
	}
	if coordinator.creds == nil {
		return &Coordinator{}, fmt.Errorf("credential repository not initialized")
	}
	return &coordinator, nil
}
