package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
)

const (
	tokenPath        = "token/"
	tokenRefreshPath = "token/refresh/"
)

// request describes one outbound call. Descriptors are immutable: a retry is
// issued from a copy with the retried marker set, the original is never
// mutated.
type request struct {
	method  string
	path    string
	query   url.Values
	payload any
	// authExempt requests never carry a credential and never trigger a refresh
	authExempt bool
	retried    bool
}

// isCredentialEndpoint reports whether the target is one of the
// credential-issuing endpoints. A 401 from those must never start a refresh
// cycle, it would recurse.
func isCredentialEndpoint(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	return trimmed == tokenPath || trimmed == tokenRefreshPath
}

// do sends one request to the remote API. The access credential of the
// session is read from storage and attached when present; an absent credential
// is not an error, the request proceeds unauthenticated and is expected to
// fail server-side. A 401 on a refreshable request delegates to the
// coordinator and reissues the identical call exactly once with the updated
// credential.
func (c *Client) do(ctx context.Context, sessionID string, req request, result any) error {
	httpReq, err := c.buildRequest(ctx, sessionID, req)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling the remote API failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return decodeResponse(resp.Body, result)
	}

	refreshable := resp.StatusCode == http.StatusUnauthorized &&
		!req.authExempt &&
		!isCredentialEndpoint(req.path) &&
		!req.retried &&
		sessionID != ""
	if !refreshable {
		return apiError(resp)
	}

	slog.Debug(
		"GATEWAY",
		"message", "authorization failure, delegating to the refresh coordinator",
		"path", req.path,
		"sessionID", sessionID,
		"requestID", httpReq.Header.Get("X-Request-ID"),
	)
	_, err = c.refresher.Refresh(ctx, sessionID)
	if err != nil {
		return err
	}
	retry := req
	retry.retried = true
	return c.do(ctx, sessionID, retry, result)
}

func (c *Client) buildRequest(ctx context.Context, sessionID string, req request) (*http.Request, error) {
	target := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}
	// JoinPath strips the trailing slash the remote API routes require
	targetURL := target.String()
	if strings.HasSuffix(req.path, "/") && !strings.HasSuffix(targetURL, "/") {
		targetURL += "/"
	}

	var body io.Reader
	if req.payload != nil {
		raw, err := json.Marshal(req.payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, targetURL, body)
	if err != nil {
		return nil, err
	}
	if req.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	// ULIDs sort by time, so the remote API's logs line up with ours
	requestID, err := models.ULIDGenerator{}.ID()
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if !req.authExempt && sessionID != "" {
		creds, err := c.creds.GetCredentials(ctx, sessionID)
		if err == nil && creds.AccessToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}
	return httpReq, nil
}

func decodeResponse(body io.Reader, result any) error {
	if result == nil {
		return nil
	}
	return json.NewDecoder(body).Decode(result)
}

// apiError reads an error response, preferring the "detail" message the
// remote API uses for application-level failures.
func apiError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}
	detail := struct {
		Detail string `json:"detail"`
	}{}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: detail.Detail}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
