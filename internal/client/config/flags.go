package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Durations are
// given in whole seconds.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-token", "-p", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddress, "a", cfg.ServerAddress, "address and port of the server")
	fs.StringVar(&cfg.FilePath, "f", cfg.FilePath, "file to upload")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token")
	fs.Uint64Var(&cfg.PacketSize, "p", cfg.PacketSize, "packet size (in bytes)")
	dialTimeout := fs.Int("t", int(cfg.DialTimeout.Seconds()), "dial timeout (in seconds)")
	responseTimeout := fs.Int("r", int(cfg.ResponseTimeout.Seconds()), "response timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.DialTimeout = time.Duration(*dialTimeout) * time.Second
	cfg.ResponseTimeout = time.Duration(*responseTimeout) * time.Second
}
