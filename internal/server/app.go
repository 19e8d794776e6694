// Package server wires configuration, storage, Redis fan-out and the gRPC
// transport into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/notifier"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophnotes/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	logOutput io.Writer = os.Stdout

	openDB = sql.Open

	runMigrations = func(ctx context.Context, m repomanager.RepositoryManager, db *sql.DB) error {
		return m.RunMigrations(ctx, db)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	server *gs.GRPCServer
	events *notifier.Notifier
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, logOutput)
	if err != nil {
		return nil, err
	}

	db, err := openDB("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := runMigrations(ctx, rm, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	redisOpts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	n := notifier.New(
		notifier.NewRedisPublisher(rdb),
		sessions.NewPostgresRepository(db),
		logger.With("module", "notifier"),
		notifier.WithTimeout(c.NotifyTimeout),
	)

	srv := gs.NewGRPCServer(logger, gs.Options{
		Address:       c.EndpointAddrGRPC,
		SecretKey:     c.SecretKey,
		WatchInterval: c.WatchInterval,
		Users:         services.NewUserService(db, rm, n, c),
		Notes:         services.NewNoteService(db, rm),
		Boards:        services.NewBoardService(db, rm),
		Backups:       services.NewBackupService(c),
		Events:        notifier.NewRedisSubscriber(rdb, logger.With("module", "account_events")),
	})

	return &App{config: c, logger: logger, db: db, redis: rdb, server: srv, events: n}, nil
}

// Run serves until ctx is done or a termination signal arrives, then
// releases the database and Redis connections.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})

	err := g.Wait()
	if cerr := app.close(); cerr != nil {
		app.logger.Warn(ctx, "closing resources", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close() error {
	if app.events != nil {
		app.events.Wait()
	}
	return errors.Join(app.redis.Close(), app.db.Close())
}
