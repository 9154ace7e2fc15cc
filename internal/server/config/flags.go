package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/flagx"
)

var serverFlags = []string{"-a", "-f", "-d", "-t", "-w", "-m", "-l", "-u", "-p", "-b", "-g", "-e"}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":7878")
//	-f string   destination folder
//	-d string   progress store DSN
//	-t int      read timeout, seconds
//	-w int      write timeout, seconds
//	-m int      max concurrent connections (0 = unlimited)
//	-s bool     fsync after every packet (-s=false to turn off)
//	-l string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name, enables archiving
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags, "-s")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddress, "a", config.ListenAddress, "address and port to listen on")
	fs.StringVar(&config.DestDir, "f", config.DestDir, "destination folder")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "progress store DSN")

	readTimeout := fs.Int("t", int(config.ReadTimeout.Seconds()), "read timeout (in seconds)")
	writeTimeout := fs.Int("w", int(config.WriteTimeout.Seconds()), "write timeout (in seconds)")

	fs.IntVar(&config.MaxConnections, "m", config.MaxConnections, "max concurrent connections")
	fs.BoolVar(&config.SyncWrites, "s", config.SyncWrites, "fsync after every packet")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ReadTimeout = time.Duration(*readTimeout) * time.Second
	config.WriteTimeout = time.Duration(*writeTimeout) * time.Second
}
