package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
	"github.com/innerpeace-app/gateway/internal/gateway/calendar"
	"github.com/innerpeace-app/gateway/internal/gateway/drive"
	httpapi "github.com/innerpeace-app/gateway/internal/gateway/http"
	"github.com/innerpeace-app/gateway/pkg/jwtx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the gateway's dependencies together and owns the
// HTTP server lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	authenticator *auth.Authenticator
	minter        *auth.Minter
	drive         *drive.Client
	calendar      *calendar.Client

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initAuth(); err != nil {
		return nil, err
	}
	if err := app.initGoogleClients(ctx); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully drains in-flight requests, then closes the server.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initAuth() error {
	var publicJWK string
	if app.cfg.PrivateKeyPEM != "" {
		signer, err := jwtx.NewSignerFromPEM(app.cfg.KeyID, []byte(app.cfg.PrivateKeyPEM))
		if err != nil {
			return fmt.Errorf("loading app signing key: %w", err)
		}
		app.minter = auth.NewMinter(signer, app.cfg.Issuer, app.cfg.Audiences)

		// Minted tokens must verify locally too.
		jwkJSON, err := json.Marshal(signer.PublicJWK())
		if err != nil {
			return fmt.Errorf("encoding app public JWK: %w", err)
		}
		publicJWK = string(jwkJSON)

		app.logger.Info("app token minting enabled", "kid", signer.KID(), "alg", signer.Alg())
	} else {
		app.logger.Warn("no app signing key configured; /v1/auth/mint disabled")
	}

	if publicJWK == "" {
		publicJWK = app.cfg.PublicJWK
	}

	authenticator, err := auth.New(auth.Config{
		FirstPartyIssuer:     app.cfg.Issuer,
		FirstPartyAudiences:  app.cfg.Audiences,
		FirstPartySecret:     app.cfg.SessionSecret,
		FirstPartyJWK:        publicJWK,
		GoogleAudiences:      app.cfg.GoogleAudiences,
		AppleAudiences:       app.cfg.AppleAudiences,
		GoogleJWKSURL:        app.cfg.GoogleJWKSURL,
		AppleJWKSURL:         app.cfg.AppleJWKSURL,
		KeySetTTL:            app.cfg.KeySetTTL,
		TrustGatewayUserInfo: app.cfg.TrustGatewayUserInfo,
	})
	if err != nil {
		return fmt.Errorf("building authenticator: %w", err)
	}
	app.authenticator = authenticator

	return nil
}

// initGoogleClients builds the Drive and Calendar clients from ambient
// service-account credentials. Either integration may be absent; its
// routes then return errors rather than blocking startup.
func (app *Application) initGoogleClients(ctx context.Context) error {
	if app.cfg.MediaFolderID != "" {
		driveClient, err := drive.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("building drive client: %w", err)
		}
		app.drive = driveClient
	} else {
		app.logger.Warn("no media folder configured; media routes disabled")
	}

	calendarClient, err := calendar.NewClient(ctx, app.cfg.CalendarID)
	if err != nil {
		return fmt.Errorf("building calendar client: %w", err)
	}
	app.calendar = calendarClient

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.authenticator,
		app.minter,
		app.drive,
		app.calendar,
		app.cfg.MediaFolderID,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
