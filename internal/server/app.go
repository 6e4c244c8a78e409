// Package server assembles the authkeeper server: it picks the user store,
// builds the credential primitives and services, and runs the HTTP API
// until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/uow"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	factory uow.Factory
	server  *httpapi.Server
}

// NewApp wires every component from c. Log lines go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, w)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}

	hasher, err := auth.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		app.Close()
		return nil, err
	}
	codec, err := auth.NewTokenCodec([]byte(c.SecretKey), c.Algorithm)
	if err != nil {
		app.Close()
		return nil, err
	}

	m := metrics.New()
	if app.db != nil {
		if err := registerDBStats(m, app.db); err != nil {
			app.Close()
			return nil, err
		}
	}
	as, err := services.NewAuthService(app.factory, hasher, codec, c, logger, services.WithObserver(m))
	if err != nil {
		app.Close()
		return nil, err
	}
	us := services.NewUserService(app.factory, logger)

	app.server = httpapi.NewServer(c, logger, as, us, m)
	return app, nil
}

func (app *App) initStorage(ctx context.Context) error {
	if app.config.UsesMemoryStore() {
		app.logger.Warn(ctx, "using in-memory user store, data is lost on exit")
		app.factory = uow.NewMemoryStore()
		return nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("db migration error: %w", err)
	}

	app.db = db
	app.factory = uow.NewSQLFactory(db, rm)
	return nil
}

// registerDBStats exports the connection pool statistics of db under the
// db_name="authkeeper" label.
func registerDBStats(m *metrics.Metrics, db *sql.DB) error {
	if err := m.Registerer().Register(collectors.NewDBStatsCollector(db, "authkeeper")); err != nil {
		return fmt.Errorf("db metrics init error: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// releases the store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...", "mode", app.config.AppMode)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

// Close releases the database pool and flushes buffered logs.
func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
		app.db = nil
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// Main loads configuration from args and runs the server; it returns the
// process exit code.
func Main(ctx context.Context, args []string) int {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	app, err := NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx); err != nil {
		return 1
	}
	return 0
}
