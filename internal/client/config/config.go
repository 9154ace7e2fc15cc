package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/common"
)

// Config holds runtime settings for the uploader.
type Config struct {
	ServerAddress   string
	FilePath        string
	Token           string
	PacketSize      uint64
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddress = "127.0.0.1:7878"
	c.PacketSize = common.DefaultPacketSize
	c.DialTimeout = 5 * time.Second
	c.ResponseTimeout = 30 * time.Second
}

// Validate checks what can be checked before connecting. The token is not
// required here, see ResolveToken.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return errors.New("no file given, use -f")
	}
	if c.ServerAddress == "" {
		return errors.New("no server address given, use -a")
	}
	if c.PacketSize < common.MinPacketSize || c.PacketSize > common.MaxPacketSize {
		return fmt.Errorf("%w: %d, allowed %d..%d", common.ErrorInvalidPacketSize, c.PacketSize, common.MinPacketSize, common.MaxPacketSize)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
