// Package migrations embeds the goose schema migrations, one directory per
// supported SQL dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
