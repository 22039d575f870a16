package config

import (
	"encoding/json"
	"os"

	"github.com/classchat-io/classchat/internal/flagx"
	"github.com/classchat-io/classchat/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "200ms" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its non-zero fields are copied
// into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	BindAddr     string         `json:"bind_addr"`
	DatabaseDSN  string         `json:"database_dsn"`
	HistoryLimit int            `json:"history_limit"`
	BufferSize   int            `json:"buffer_size"`
	MaxFileSize  int            `json:"max_file_size"`
	FlushPacing  timex.Duration `json:"flush_pacing"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flag; if neither
// is set, no JSON file is loaded. Fields absent from the file keep their
// defaults. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.BindAddr != "" {
		config.BindAddr = c.BindAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.HistoryLimit != 0 {
		config.HistoryLimit = c.HistoryLimit
	}
	if c.BufferSize != 0 {
		config.BufferSize = c.BufferSize
	}
	if c.MaxFileSize != 0 {
		config.MaxFileSize = c.MaxFileSize
	}
	if c.FlushPacing.Duration != 0 {
		config.FlushPacing = c.FlushPacing.Duration
	}
}
