// Package repomanager vends dialect-specific repository implementations and
// owns schema migrations. The dialect is selected from the database DSN:
// postgres:// DSNs use pgx, anything else is treated as a SQLite file path.
package repomanager

import (
	"context"
	"database/sql"
	"strings"

	"github.com/classchat-io/classchat/internal/dbx"
	"github.com/classchat-io/classchat/internal/server/repositories/groups"
	"github.com/classchat-io/classchat/internal/server/repositories/messages"
	"github.com/classchat-io/classchat/internal/server/repositories/offline"
	"github.com/classchat-io/classchat/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// constructor works on a *sql.DB or inside a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Messages(db dbx.DBTX) messages.Repository
	Offline(db dbx.DBTX) offline.Repository
	Groups(db dbx.DBTX) groups.Repository

	// RunMigrations applies the embedded schema migrations.
	RunMigrations(ctx context.Context, db *sql.DB) error

	// DriverName returns the database/sql driver to open the DSN with.
	DriverName() string
}

// ForDSN picks the manager matching the DSN's dialect.
func ForDSN(dsn string) RepositoryManager {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresRepositoryManager()
	}
	return NewSQLiteRepositoryManager()
}
