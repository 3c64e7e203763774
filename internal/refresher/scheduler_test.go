package refresher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshExpiringCredentialsSweep(t *testing.T) {
	creds := setupCredentialStore(t)
	expiring := models.CredentialPair{
		ID:           "session-expiring",
		AccessToken:  "expiring-access-token",
		RefreshToken: "expiring-refresh-token",
		ExpiresAt:    time.Now().UTC().Add(2 * time.Minute),
	}
	require.NoError(t, creds.SetCredentials(ctx, expiring))
	fresh := models.CredentialPair{
		ID:           "session-fresh",
		AccessToken:  "fresh-access-token",
		RefreshToken: "fresh-refresh-token",
		ExpiresAt:    time.Now().UTC().Add(2 * time.Hour),
	}
	require.NoError(t, creds.SetCredentials(ctx, fresh))

	newAccess := signedAccessToken(t, time.Hour)
	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := models.RefreshRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "expiring-refresh-token", body.Refresh)
		atomic.AddInt32(&exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(models.TokenResponse{Access: newAccess, Refresh: "rotated-refresh-token"})
		require.NoError(t, err)
	}))
	defer srv.Close()

	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
	)
	require.NoError(t, err)

	refreshExpiringCredentials(ctx, coordinator, creds, 10*time.Minute)

	assert.EqualValues(t, 1, atomic.LoadInt32(&exchanges))
	refreshed, err := creds.GetCredentials(ctx, "session-expiring")
	require.NoError(t, err)
	assert.Equal(t, newAccess, refreshed.AccessToken)
	untouched, err := creds.GetCredentials(ctx, "session-fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access-token", untouched.AccessToken)
}

func TestRefreshExpiringCredentialsSweepContinuesPastFailures(t *testing.T) {
	creds := setupCredentialStore(t)
	for _, sessionID := range []string{"session-a", "session-b"} {
		pair := models.CredentialPair{
			ID:           sessionID,
			AccessToken:  "access-" + sessionID,
			RefreshToken: "refresh-" + sessionID,
			ExpiresAt:    time.Now().UTC().Add(time.Minute),
		}
		require.NoError(t, creds.SetCredentials(ctx, pair))
	}

	newAccess := signedAccessToken(t, time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := models.RefreshRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// the first session's refresh credential is rejected, the second works
		if body.Refresh == "refresh-session-a" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(models.TokenResponse{Access: newAccess, Refresh: "rotated-refresh-token"})
		require.NoError(t, err)
	}))
	defer srv.Close()

	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
	)
	require.NoError(t, err)

	refreshExpiringCredentials(ctx, coordinator, creds, 10*time.Minute)

	_, err = creds.GetCredentials(ctx, "session-a")
	assert.Error(t, err)
	refreshed, err := creds.GetCredentials(ctx, "session-b")
	require.NoError(t, err)
	assert.Equal(t, newAccess, refreshed.AccessToken)
}
