package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/stableftp/internal/flagx"
	"github.com/dmitrijs2005/stableftp/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "5s" style
// strings as well as integer nanoseconds.
type JsonConfig struct {
	ListenAddress  string         `json:"listen_address"`
	DestDir        string         `json:"dest_dir"`
	DatabaseDSN    string         `json:"database_dsn"`
	ReadTimeout    timex.Duration `json:"read_timeout"`
	WriteTimeout   timex.Duration `json:"write_timeout"`
	MaxConnections int            `json:"max_connections"`
	SyncWrites     bool           `json:"sync_writes"`
	LogLevel       string         `json:"log_level"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
}

// parseJson overlays config with the file named by -c / -config. Keys
// missing from the file keep their current values. Unreadable files and
// invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		ListenAddress:  config.ListenAddress,
		DestDir:        config.DestDir,
		DatabaseDSN:    config.DatabaseDSN,
		ReadTimeout:    timex.Duration{Duration: config.ReadTimeout},
		WriteTimeout:   timex.Duration{Duration: config.WriteTimeout},
		MaxConnections: config.MaxConnections,
		SyncWrites:     config.SyncWrites,
		LogLevel:       config.LogLevel,
		S3RootUser:     config.S3RootUser,
		S3RootPassword: config.S3RootPassword,
		S3Bucket:       config.S3Bucket,
		S3Region:       config.S3Region,
		S3BaseEndpoint: config.S3BaseEndpoint,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ListenAddress = c.ListenAddress
	config.DestDir = c.DestDir
	config.DatabaseDSN = c.DatabaseDSN
	config.ReadTimeout = c.ReadTimeout.Duration
	config.WriteTimeout = c.WriteTimeout.Duration
	config.MaxConnections = c.MaxConnections
	config.SyncWrites = c.SyncWrites
	config.LogLevel = c.LogLevel
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
