// Package server wires the progress store, the transfer planner and pump,
// the optional archiver and the TCP listener into one application.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/filex"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/archive"
	"github.com/dmitrijs2005/stableftp/internal/server/auth"
	"github.com/dmitrijs2005/stableftp/internal/server/config"
	"github.com/dmitrijs2005/stableftp/internal/server/store"
	"github.com/dmitrijs2005/stableftp/internal/server/tcp"
	"github.com/dmitrijs2005/stableftp/internal/server/transfer"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  *store.SQLStore
	server *tcp.Server
}

// NewApp opens (and migrates) the progress store, prepares the destination
// folder and builds the TCP server. The caller must Run the app to release
// the store.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSON(os.Stdout, level)

	destDir, err := filex.EnsureDir(c.DestDir)
	if err != nil {
		return nil, fmt.Errorf("destination folder: %w", err)
	}

	st, err := store.Open(ctx, c.DatabaseDSN, true)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var archiver tcp.Archiver
	if c.ArchiveEnabled() {
		a, err := archive.NewS3Archiver(ctx, archive.Settings{
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
		}, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		archiver = a
	}

	planner := transfer.NewPlanner(st, destDir, transfer.NewLocker(), logger)
	pump := transfer.NewPump(st, c.SyncWrites, logger)

	srv := tcp.NewServer(tcp.Settings{
		Address:        c.ListenAddress,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxConnections: c.MaxConnections,
		Version:        protocol.MustParseVersion(common.ProtocolVersion),
	}, logger, auth.NewGate(st), planner, pump, archiver)

	return &App{config: c, logger: logger, store: st, server: srv}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received, shutting down", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves uploads until ctx is cancelled or a termination signal
// arrives, then waits for open sessions and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"dest_dir", app.config.DestDir,
		"sync_writes", app.config.SyncWrites,
		"archive", app.config.ArchiveEnabled())

	app.initSignalHandler(ctx, cancelFunc)

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "closing store", "error", cerr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
