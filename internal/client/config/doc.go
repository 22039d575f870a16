// Package config loads runtime configuration for the chat CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the chat server
//	-t int      receive timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "1s" or integer nanoseconds:
//
//	{
//	  "server_addr": "127.0.0.1:5555",
//	  "read_timeout": "1s",
//	  "buffer_size": 131072,
//	  "max_file_size": 10485760
//	}
//
// Primary API
//
//   - type Config                     — holds the server address and socket limits
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
