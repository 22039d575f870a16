package config

import (
	"encoding/json"
	"os"

	"github.com/classchat-io/classchat/internal/flagx"
	"github.com/classchat-io/classchat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "1s" or as integer nanoseconds. After parsing, non-zero
// values are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerAddr  string         `json:"server_addr"`
	ReadTimeout timex.Duration `json:"read_timeout"`
	BufferSize  int            `json:"buffer_size"`
	MaxFileSize int            `json:"max_file_size"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flag; if neither is set, nothing is loaded.
// Panics on read or unmarshal errors. Intended usage is: defaults ->
// parseJson -> parseFlags, where later stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.ReadTimeout.Duration != 0 {
		cfg.ReadTimeout = jc.ReadTimeout.Duration
	}
	if jc.BufferSize != 0 {
		cfg.BufferSize = jc.BufferSize
	}
	if jc.MaxFileSize != 0 {
		cfg.MaxFileSize = jc.MaxFileSize
	}
}
