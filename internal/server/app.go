// Package server initializes and runs the chat server: it opens the
// database, applies migrations, generates the transport keypair, and starts
// the TCP listener with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/logging"
	"github.com/classchat-io/classchat/internal/server/config"
	"github.com/classchat-io/classchat/internal/server/repositories/repomanager"
	"github.com/classchat-io/classchat/internal/server/router"
	"github.com/classchat-io/classchat/internal/server/store"
	"github.com/classchat-io/classchat/internal/server/tcp"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *tcp.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repos := repomanager.ForDSN(c.DatabaseDSN)

	db, err := sql.Open(repos.DriverName(), c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	keys, err := cryptox.GenerateServerKeys()
	if err != nil {
		db.Close()
		return nil, err
	}

	st := store.New(db, repos)
	r := router.New(st, logger, c.HistoryLimit, c.FlushPacing)
	srv := tcp.NewServer(c.BindAddr, c.BufferSize, c.MaxFileSize, r, keys, logger)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
