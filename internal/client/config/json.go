package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/stableftp/internal/flagx"
	"github.com/dmitrijs2005/stableftp/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerAddress   string         `json:"server_address"`
	FilePath        string         `json:"file"`
	Token           string         `json:"token"`
	PacketSize      uint64         `json:"packet_size"`
	DialTimeout     timex.Duration `json:"dial_timeout"`
	ResponseTimeout timex.Duration `json:"response_timeout"`
}

// parseJson overlays cfg with the file named by -c / -config. Keys missing
// from the file keep their current values. Panics on read or unmarshal
// errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerAddress:   cfg.ServerAddress,
		FilePath:        cfg.FilePath,
		Token:           cfg.Token,
		PacketSize:      cfg.PacketSize,
		DialTimeout:     timex.Duration{Duration: cfg.DialTimeout},
		ResponseTimeout: timex.Duration{Duration: cfg.ResponseTimeout},
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerAddress = jc.ServerAddress
	cfg.FilePath = jc.FilePath
	cfg.Token = jc.Token
	cfg.PacketSize = jc.PacketSize
	cfg.DialTimeout = jc.DialTimeout.Duration
	cfg.ResponseTimeout = jc.ResponseTimeout.Duration
}
