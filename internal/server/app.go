// Package server assembles and runs texbridge: it opens the database, applies
// migrations, picks the attachment store, and runs the HTTP API, the gRPC
// health service and the orphan sweeper until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/config"
	"github.com/dmitrijs2005/texbridge/internal/server/httpapi"
	"github.com/dmitrijs2005/texbridge/internal/server/metrics"
	"github.com/dmitrijs2005/texbridge/internal/server/provider"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/texbridge/internal/server/services"
	"github.com/dmitrijs2005/texbridge/internal/server/session"
	"github.com/dmitrijs2005/texbridge/internal/server/storage"

	gs "github.com/dmitrijs2005/texbridge/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	api     *httpapi.API
	sweeper *services.OrphanSweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := NewStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("attachment store: %w", err)
	}

	secret := c.SessionSecret
	if secret == "" {
		secret, err = common.MakeRandHexString(32)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Warn(ctx, "no session secret configured, sessions will not survive a restart")
	}

	m := metrics.New()

	sessions := session.NewManager(
		session.NewMemoryStore(c.SessionTTL, 10*time.Minute),
		rm.Accounts(db),
		[]byte(secret),
		session.Options{CookieName: c.SessionCookieName, TTL: c.SessionTTL, Secure: c.CookieSecure},
		logger,
	)

	deps := httpapi.Deps{
		Accounts:  services.NewAccountService(db, rm, logger),
		Resolver:  services.NewProviderResolver(db, rm, logger),
		Donations: services.NewDonationService(db, rm, store, services.SubmissionLimits{MaxPhotos: c.MaxPhotos, MaxBytes: c.MaxUploadBytes}, logger, m),
		Sessions:  sessions,
		Observer:  m,
		Pinger:    db,
		Log:       logger,
	}
	if c.ProviderEnabled() {
		deps.Provider = provider.NewGoogleProvider(provider.GoogleConfig{
			ClientID:     c.OAuthClientID,
			ClientSecret: c.OAuthClientSecret,
			CallbackURL:  c.OAuthCallbackURL,
		})
		deps.State = provider.NewStateCodec([]byte(secret), c.CookieSecure)
	} else {
		logger.Info(ctx, "delegated login disabled, no client credentials configured")
	}

	api := httpapi.New(deps, httpapi.Options{
		CORSOrigins:     c.CORSOrigins,
		MaxUploadBytes:  c.MaxUploadBytes,
		PostRegisterURL: c.PostRegisterURL,
		PostLoginURL:    c.PostLoginURL,
		FailureURL:      c.FailureURL,
	})

	sweeper := services.NewOrphanSweeper(db, rm, store, c.OrphanGracePeriod, c.OrphanSweepInterval, logger, m)

	return &App{config: c, logger: logger, db: db, api: api, sweeper: sweeper}, nil
}

// NewStore opens the attachment store selected by c.UploadBackend.
func NewStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	switch c.UploadBackend {
	case "", "local":
		return storage.NewLocalStore(c.UploadDir)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Options{
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
			Bucket:   c.S3Bucket,
			Region:   c.S3Region,
			Endpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown upload backend %q", c.UploadBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, 10*time.Second)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
