package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/ehr/interchange/internal/config"
	"github.com/ehr/interchange/internal/domain/claims"
	"github.com/ehr/interchange/internal/domain/clinical"
	"github.com/ehr/interchange/internal/platform/auth"
	"github.com/ehr/interchange/internal/platform/db"
	"github.com/ehr/interchange/internal/platform/hl7v2"
	"github.com/ehr/interchange/internal/platform/middleware"
	"github.com/ehr/interchange/internal/platform/telemetry"
)

// maxBody caps uploaded interchange messages.
const maxBody = "4M"

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and, when INGEST_ADDR is set, the HL7 listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), a)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}
	a.metrics = metrics

	var pool *pgxpool.Pool
	if a.cfg.HasDatabase() {
		if pool, err = a.openPool(ctx); err != nil {
			return err
		}
	} else {
		a.logger.Warn().Msg("DATABASE_URL not set, running without persistence")
	}

	claimsSvc, err := a.claimsService(ctx, pool != nil)
	if err != nil {
		return err
	}
	clinicalSvc, err := a.clinicalService(ctx, pool != nil)
	if err != nil {
		return err
	}

	e, err := newServer(a, pool, claimsSvc, clinicalSvc)
	if err != nil {
		return err
	}

	var listener *hl7v2.Listener
	if a.cfg.IngestAddr != "" {
		listener = hl7v2.NewListener(hl7v2.ListenerConfig{
			Addr:        a.cfg.IngestAddr,
			Workers:     a.cfg.IngestWorkers,
			MaxRead:     a.cfg.IngestMaxRead,
			ReadTimeout: a.cfg.IngestReadTimeout,
		}, clinicalSvc.IngestHandler(), a.logger, a.metrics)
		if err := listener.Start(); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("port", a.cfg.Port).Msg("starting server")
		if err := e.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.logger.Error().Err(err).Msg("server failed")
		}
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if listener != nil {
		errs = append(errs, listener.Shutdown(shutdownCtx))
	}
	errs = append(errs, e.Shutdown(shutdownCtx))
	if err, ok := <-serveErr; ok {
		errs = append(errs, err)
	}
	a.logger.Info().Msg("server stopped")
	return errors.Join(errs...)
}

// newServer builds the HTTP API. pool may be nil.
func newServer(a *app, pool *pgxpool.Pool, claimsSvc *claims.Service, clinicalSvc *clinical.Service) (*echo.Echo, error) {
	authMW, err := authMiddleware(a.cfg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.BodyLimit(maxBody))
	e.Use(authMW)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if a.metrics != nil {
		e.GET("/metrics", a.metrics.Handler())
	}

	apiV1 := e.Group("/api/v1")
	claims.NewHandler(claimsSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)

	return e, nil
}

// authMiddleware verifies HS256 bearer tokens when a signing key is
// configured. Without one, development mode grants every request admin and
// any other mode refuses to start.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	if cfg.AuthSigningKey != "" {
		return auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.AuthSigningKey)}), nil
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(), nil
	}
	return nil, errors.New("AUTH_SIGNING_KEY is required outside development")
}
