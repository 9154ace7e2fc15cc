// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the stableftp server.
//
// Fields:
//   - ListenAddress: TCP bind address for uploads.
//   - DestDir: folder completed and partial uploads are written to.
//   - DatabaseDSN: progress store. postgres:// URLs use pgx, anything else
//     is a SQLite path or file: URI.
//   - ReadTimeout / WriteTimeout: per-message deadlines on a connection.
//   - MaxConnections: cap on concurrent sessions, 0 means unlimited.
//   - SyncWrites: fsync the destination file after every packet.
//   - LogLevel: debug, info, warn or error.
//   - S3*: archive settings. Archiving is off while S3Bucket is empty.
type Config struct {
	ListenAddress  string
	DestDir        string
	DatabaseDSN    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	SyncWrites     bool
	LogLevel       string
	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddress = ":7878"
	c.DestDir = "."
	c.DatabaseDSN = "stable-ftp.sqlite"
	c.ReadTimeout = 5 * time.Second
	c.WriteTimeout = 5 * time.Second
	c.MaxConnections = 0
	c.SyncWrites = true
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// ArchiveEnabled reports whether completed uploads are copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
