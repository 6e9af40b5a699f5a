package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/interchange/internal/config"
	"github.com/ehr/interchange/internal/domain/claims"
	"github.com/ehr/interchange/internal/domain/clinical"
	"github.com/ehr/interchange/internal/platform/db"
	"github.com/ehr/interchange/internal/platform/logging"
	"github.com/ehr/interchange/internal/platform/telemetry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the command line. Failures are logged before the log file is
// closed, so every error reaches the persistent log.
func run(args []string, stdout io.Writer) error {
	a := &app{logger: zerolog.Nop()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.Execute()
	if err != nil {
		a.logger.Error().Err(err).Msg("command failed")
	}
	return errors.Join(err, a.close())
}

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	closer  io.Closer
	metrics *telemetry.Metrics
	pool    *pgxpool.Pool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "interchange",
		Short:         "Healthcare interchange ingestion and reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.AddCommand(claimsCmd(a))
	root.AddCommand(hl7Cmd(a))
	root.AddCommand(csvCmd(a))
	root.AddCommand(serveCmd(a))
	root.AddCommand(migrateCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Pretty: cfg.IsDev(),
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.closer = closer
	return nil
}

// close releases the database pool and the log file. It is safe to call
// more than once.
func (a *app) close() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	a.logger = zerolog.Nop()
	return err
}

// outputPath places a relative output path under OUTPUT_DIR. Empty and
// absolute paths are returned unchanged.
func (a *app) outputPath(path string) string {
	if path == "" || filepath.IsAbs(path) || a.cfg.OutputDir == "" {
		return path
	}
	return filepath.Join(a.cfg.OutputDir, path)
}

var errNoDatabase = errors.New("DATABASE_URL is not set")

// openPool connects to Postgres once per process.
func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	if !a.cfg.HasDatabase() {
		return nil, errNoDatabase
	}
	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Msg("connected to database")
	a.pool = pool
	return pool, nil
}

// claimsService builds the claims service, storing runs only when store is
// set.
func (a *app) claimsService(ctx context.Context, store bool) (*claims.Service, error) {
	parser, err := claims.NewParser()
	if err != nil {
		return nil, err
	}
	var runs claims.ReconciliationRepository
	if store {
		pool, err := a.openPool(ctx)
		if err != nil {
			return nil, err
		}
		runs = claims.NewReconciliationRepoPG(pool)
	}
	return claims.NewService(parser, runs, a.logger, a.metrics), nil
}

func (a *app) clinicalService(ctx context.Context, store bool) (*clinical.Service, error) {
	parser, err := clinical.NewParser()
	if err != nil {
		return nil, err
	}
	var messages clinical.MessageRepository
	if store {
		pool, err := a.openPool(ctx)
		if err != nil {
			return nil, err
		}
		messages = clinical.NewMessageRepoPG(pool)
	}
	return clinical.NewService(parser, messages, a.logger, a.metrics), nil
}
