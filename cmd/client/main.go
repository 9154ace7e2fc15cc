package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/stableftp/internal/client/config"
	"github.com/dmitrijs2005/stableftp/internal/client/progress"
	"github.com/dmitrijs2005/stableftp/internal/client/uploader"
	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadConfig()
	logger := logging.NewText(os.Stderr, slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := cfg.ResolveToken(os.LookupEnv, config.TerminalPrompt(os.Stdin, os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := uploader.New(uploader.Settings{
		Address:         cfg.ServerAddress,
		Token:           cfg.Token,
		PacketSize:      cfg.PacketSize,
		DialTimeout:     cfg.DialTimeout,
		ResponseTimeout: cfg.ResponseTimeout,
		Version:         protocol.MustParseVersion(common.ProtocolVersion),
	}, progress.New(os.Stderr, logger), logger)

	res, err := c.Upload(ctx, cfg.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		return 1
	}

	if res.AlreadyComplete {
		fmt.Printf("%s is already on the server\n", res.Name)
		return 0
	}
	fmt.Printf("%s uploaded: %d of %d packets sent in this session\n", res.Name, res.PacketsSent, res.TotalPackets)
	return 0
}
