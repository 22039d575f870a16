package config

import (
	"flag"
	"os"

	"github.com/classchat-io/classchat/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TCP bind address (e.g., ":5555")
//	-d string   database DSN (SQLite path or postgres:// URL)
//	-l int      history limit per request
//	-b int      read buffer size, bytes
//	-m int      max inline file size, bytes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l", "-b", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.BindAddr, "a", config.BindAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.HistoryLimit, "l", config.HistoryLimit, "history limit per request")
	fs.IntVar(&config.BufferSize, "b", config.BufferSize, "read buffer size in bytes")
	fs.IntVar(&config.MaxFileSize, "m", config.MaxFileSize, "max inline file size in bytes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
