package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/apiclient"
	"github.com/TeamHubHQ/teamhub-gateway/internal/config"
	"github.com/TeamHubHQ/teamhub-gateway/internal/db"
	"github.com/TeamHubHQ/teamhub-gateway/internal/refresher"
	"github.com/TeamHubHQ/teamhub-gateway/internal/sessions"
	"github.com/TeamHubHQ/teamhub-gateway/internal/views"
	"github.com/TeamHubHQ/teamhub-gateway/internal/webapp"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// Logging setup
	slog.SetDefault(jsonLogger)
	// Load configuration
	ch := config.NewConfigHandler()
	gwConfig, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", gwConfig)
	err = gwConfig.Validate()
	if err != nil {
		slog.Error("the config validation failed", "error", err)
		os.Exit(1)
	}
	// Set log level to "debug" if activated
	if gwConfig.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	// Setup
	e := echo.New()
	e.Pre(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		middleware.RemoveTrailingSlash(),
	)
	e.Use(middleware.Recover())
	// The banner and the port do not respect the logger formatting we set below so we remove them
	// the port will be logged further down when the server starts.
	e.HideBanner = true
	e.HidePort = true
	// Setup template renderer
	tr, err := views.NewTemplateRenderer()
	if err != nil {
		slog.Error("Template renderer initialization failed", "error", err)
		os.Exit(1)
	}
	tr.Register(e)
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	// Version endpoint
	buildInfo, ok := debug.ReadBuildInfo()
	version := ""
	if ok && buildInfo != nil {
		version = buildInfo.Main.Version
	}
	e.GET("/version", func(c echo.Context) error {
		return c.String(http.StatusOK, version)
	})
	// Initialize the db adapter
	dbOptions := []db.RedisAdapterOption{db.WithRedisConfig(gwConfig.Redis)}
	if gwConfig.API.TokenEncryption.Enabled && gwConfig.API.TokenEncryption.SecretKey != "" {
		slog.Info("credential encryption is enabled")
		dbOptions = append(dbOptions, db.WithEncryption(string(gwConfig.API.TokenEncryption.SecretKey)))
	}
	dbAdapter, err := db.NewRedisAdapter(dbOptions...)
	if err != nil {
		slog.Error("DB adapter initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the refresh coordinator
	coordinator, err := refresher.NewCoordinator(
		refresher.WithConfig(gwConfig.API),
		refresher.WithCredentialRepository(dbAdapter),
		refresher.OnSessionTeardown(func(sessionID string) {
			err := dbAdapter.RemoveSession(context.Background(), sessionID)
			if err != nil {
				slog.Error("removing a torn down session failed", "error", err, "sessionID", sessionID)
			}
		}),
	)
	if err != nil {
		slog.Error("refresh coordinator initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the gateway client
	apiClient, err := apiclient.NewClient(
		apiclient.WithConfig(gwConfig.API),
		apiclient.WithCredentialSource(dbAdapter),
		apiclient.WithRefresher(coordinator),
	)
	if err != nil {
		slog.Error("API client initialization failed", "error", err)
		os.Exit(1)
	}
	// Create session store
	sessionStore, err := sessions.NewSessionStore(
		sessions.WithSessionRepository(dbAdapter),
		sessions.WithConfig(gwConfig.Sessions),
	)
	if err != nil {
		slog.Error("failed to initialize sessions", "error", err)
		os.Exit(1)
	}
	// Initialize the web server
	webServer, err := webapp.NewWebServer(
		webapp.WithSessionStore(sessionStore),
		webapp.WithAPIClient(apiClient),
		webapp.WithCredentialRepository(dbAdapter),
	)
	if err != nil {
		slog.Error("web handlers initialization failed", "error", err)
		os.Exit(1)
	}
	webServer.RegisterHandlers(e, commonMiddlewares...)
	// Observe session changes published by other processes sharing the store
	// and drop the local session record when a session signs out elsewhere
	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()
	if sub, ok := dbAdapter.Subscriber(); ok {
		watcher := db.NewRedisSessionWatcher(sub)
		events, err := watcher.WatchSessionEvents(watcherCtx)
		if err != nil {
			slog.Error("subscribing to session events failed", "error", err)
		} else {
			go sessionStore.ReapSignedOut(watcherCtx, events)
		}
	}
	// Proactively refresh credential pairs that expire soon
	if gwConfig.API.RefreshIntervalMinutes > 0 {
		go func() {
			err := refresher.ScheduleRefreshExpiringCredentials(
				watcherCtx,
				coordinator,
				dbAdapter,
				time.Duration(gwConfig.API.RefreshIntervalMinutes)*time.Minute,
				gwConfig.API.RefreshMargin(),
			)
			if err != nil {
				slog.Error("the proactive refresh job failed to start", "error", err)
			}
		}()
	}
	// Rate limiting
	if gwConfig.Server.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(gwConfig.Server.RateLimits.Rate),
					Burst:     gwConfig.Server.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		),
		)
	}
	// CORS
	if len(gwConfig.Server.AllowOrigin) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: gwConfig.Server.AllowOrigin}))
	}
	// Sentry
	if gwConfig.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(gwConfig.Monitoring.Sentry.Dsn),
			TracesSampleRate: gwConfig.Monitoring.Sentry.SampleRate,
			Environment:      gwConfig.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		}
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	// Prometheus
	if gwConfig.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("gateway"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", gwConfig.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	// Start server
	address := fmt.Sprintf("%s:%d", gwConfig.Server.Host, gwConfig.Server.Port)
	slog.Info("starting the server on address " + address)
	go func() {
		err := e.Start(address)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("shutting down the server gracefuly failed", "error", err)
			os.Exit(1)
		}
	}()
	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("received signal to shut down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}
