package refresher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/config"
	"github.com/TeamHubHQ/teamhub-gateway/internal/db"
	"github.com/TeamHubHQ/teamhub-gateway/internal/gwerrors"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func setupCredentialStore(t *testing.T) *db.RedisAdapter {
	adapter, err := db.NewRedisAdapter(db.WithRedisConfig(config.RedisConfig{
		Type: config.DBTypeRedisMock,
	}))
	require.NoError(t, err)
	return adapter
}

func apiConfigFor(t *testing.T, rawURL string) config.APIConfig {
	baseURL, err := url.Parse(rawURL)
	require.NoError(t, err)
	return config.APIConfig{BaseURL: baseURL, TimeoutSeconds: 5}
}

func signedAccessToken(t *testing.T, expiresIn time.Duration) string {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return raw
}

func seedCredentials(t *testing.T, creds models.CredentialRepository, sessionID string) models.CredentialPair {
	pair := models.CredentialPair{
		ID:           sessionID,
		AccessToken:  "old-access-token",
		RefreshToken: "old-refresh-token",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, creds.SetCredentials(ctx, pair))
	require.NoError(t, creds.SetLoggedIn(ctx, sessionID, true))
	return pair
}

func TestRefreshSingleFlight(t *testing.T) {
	creds := setupCredentialStore(t)
	seedCredentials(t, creds, "session-1")
	newAccess := signedAccessToken(t, time.Hour)

	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token/refresh/", r.URL.Path)
		body := models.RefreshRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "old-refresh-token", body.Refresh)
		atomic.AddInt32(&exchanges, 1)
		// keep the exchange in flight long enough for every caller to join it
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(models.TokenResponse{Access: newAccess, Refresh: "new-refresh-token"})
		require.NoError(t, err)
	}))
	defer srv.Close()

	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
	)
	require.NoError(t, err)

	const callers = 20
	results := make([]models.CredentialPair, callers)
	errs := make([]error, callers)
	wg := sync.WaitGroup{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coordinator.Refresh(ctx, "session-1")
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&exchanges))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, newAccess, results[i].AccessToken)
		assert.Equal(t, "new-refresh-token", results[i].RefreshToken)
	}
	stored, err := creds.GetCredentials(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, newAccess, stored.AccessToken)
	assert.Equal(t, "new-refresh-token", stored.RefreshToken)
	assert.False(t, stored.ExpiresAt.IsZero())
}

func TestRefreshRejectedTearsDownSession(t *testing.T) {
	creds := setupCredentialStore(t)
	seedCredentials(t, creds, "session-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, err := w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	tornDown := []string{}
	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
		OnSessionTeardown(func(sessionID string) {
			tornDown = append(tornDown, sessionID)
		}),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrSessionExpired)

	_, err = creds.GetCredentials(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrCredentialsNotFound)
	loggedIn, err := creds.LoggedIn(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, loggedIn)
	assert.Equal(t, []string{"session-1"}, tornDown)
}

func TestRefreshTransportFailureKeepsStoredCredentials(t *testing.T) {
	creds := setupCredentialStore(t)
	seeded := seedCredentials(t, creds, "session-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachableURL := srv.URL
	srv.Close()

	tornDown := []string{}
	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, unreachableURL)),
		WithCredentialRepository(creds),
		OnSessionTeardown(func(sessionID string) {
			tornDown = append(tornDown, sessionID)
		}),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gwerrors.ErrSessionExpired)

	stored, err := creds.GetCredentials(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.RefreshToken, stored.RefreshToken)
	loggedIn, err := creds.LoggedIn(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, loggedIn)
	assert.Empty(t, tornDown)
}

func TestRefreshServerErrorKeepsStoredCredentials(t *testing.T) {
	creds := setupCredentialStore(t)
	seeded := seedCredentials(t, creds, "session-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gwerrors.ErrSessionExpired)

	stored, err := creds.GetCredentials(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.RefreshToken, stored.RefreshToken)
}

func TestRefreshWithoutStoredCredentials(t *testing.T) {
	creds := setupCredentialStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no exchange should happen without a stored refresh credential")
	}))
	defer srv.Close()

	tornDown := []string{}
	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
		OnSessionTeardown(func(sessionID string) {
			tornDown = append(tornDown, sessionID)
		}),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrCredentialsNotFound)
	assert.Equal(t, []string{"session-1"}, tornDown)
}

// unreachableCredentialStore simulates a store whose backend cannot be
// reached: reads fail with a transport error while the underlying data is
// still there once the backend comes back.
type unreachableCredentialStore struct {
	models.CredentialRepository
	err error
}

func (s unreachableCredentialStore) GetCredentials(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	return models.CredentialPair{}, s.err
}

func TestRefreshStoreFailureKeepsSessionIntact(t *testing.T) {
	creds := setupCredentialStore(t)
	seeded := seedCredentials(t, creds, "session-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no exchange should happen when the stored credentials cannot be read")
	}))
	defer srv.Close()

	storeErr := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	tornDown := []string{}
	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(unreachableCredentialStore{CredentialRepository: creds, err: storeErr}),
		OnSessionTeardown(func(sessionID string) {
			tornDown = append(tornDown, sessionID)
		}),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, gwerrors.ErrCredentialsNotFound)

	stored, err := creds.GetCredentials(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.RefreshToken, stored.RefreshToken)
	loggedIn, err := creds.LoggedIn(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, loggedIn)
	assert.Empty(t, tornDown)
}

func TestRefreshRejectsIncompleteExchangeResponse(t *testing.T) {
	creds := setupCredentialStore(t)
	seeded := seedCredentials(t, creds, "session-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"access":"only-half-a-pair"}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	coordinator, err := NewCoordinator(
		WithConfig(apiConfigFor(t, srv.URL)),
		WithCredentialRepository(creds),
	)
	require.NoError(t, err)

	_, err = coordinator.Refresh(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrPartialCredentials)

	stored, err := creds.GetCredentials(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.AccessToken, stored.AccessToken)
	assert.Equal(t, seeded.RefreshToken, stored.RefreshToken)
}

func TestNewCoordinatorValidation(t *testing.T) {
	_, err := NewCoordinator()
	assert.Error(t, err)

	creds := setupCredentialStore(t)
	_, err = NewCoordinator(WithCredentialRepository(creds))
	assert.Error(t, err)

	_, err = NewCoordinator(WithConfig(config.APIConfig{}), WithCredentialRepository(creds))
	assert.Error(t, err)
}
