package repomanager

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/classchat-io/classchat/internal/dbx"
	"github.com/classchat-io/classchat/internal/server/migrations"
	"github.com/classchat-io/classchat/internal/server/repositories/groups"
	"github.com/classchat-io/classchat/internal/server/repositories/messages"
	"github.com/classchat-io/classchat/internal/server/repositories/offline"
	"github.com/classchat-io/classchat/internal/server/repositories/users"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. This is the
// default store: the DSN is a database file path.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Messages(db dbx.DBTX) messages.Repository {
	return messages.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Offline(db dbx.DBTX) offline.Repository {
	return offline.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) DriverName() string {
	return "sqlite"
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	goose.SetBaseFS(sub)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
