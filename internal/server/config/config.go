// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the chat server.
//
// Fields:
//   - BindAddr: TCP bind address for the chat endpoint.
//   - DatabaseDSN: SQLite file path, or a postgres:// URL for pgx.
//   - HistoryLimit: maximum messages returned per history request.
//   - BufferSize: per-connection read buffer, bytes. One envelope must fit.
//   - MaxFileSize: maximum inline file payload, bytes (base64 form).
//   - FlushPacing: delay between consecutive offline-queue deliveries.
type Config struct {
	BindAddr     string
	DatabaseDSN  string
	HistoryLimit int
	BufferSize   int
	MaxFileSize  int
	FlushPacing  time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.BindAddr = ":5555"
	c.DatabaseDSN = "classchat.db"
	c.HistoryLimit = 20
	c.BufferSize = 128 * 1024
	c.MaxFileSize = 10 * 1024 * 1024
	c.FlushPacing = 200 * time.Millisecond
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
