// Package config handles configuration for the chat CLI, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the chat CLI.
//
// Fields:
//   - ServerAddr: host:port of the chat server.
//   - ReadTimeout: how long a blocking receive waits before re-checking
//     whether the client is still running.
//   - BufferSize: read buffer, bytes. One envelope must fit.
//   - MaxFileSize: largest file the client will send, bytes.
type Config struct {
	ServerAddr  string
	ReadTimeout time.Duration
	BufferSize  int
	MaxFileSize int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:5555"
	c.ReadTimeout = 1 * time.Second
	c.BufferSize = 128 * 1024
	c.MaxFileSize = 10 * 1024 * 1024
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
