// Package migrations embeds the SQL schema for both supported databases.
//
// The postgres files are plain up-scripts applied by the deployment (and by
// the integration tests as container init scripts). The sqlite files are
// goose migrations applied automatically when a sqlite store is opened.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed sqlite/*.sql
var SQLiteFS embed.FS

// RunSQLite applies all pending sqlite migrations to db.
func RunSQLite(db *sql.DB) error {
	sub, err := fs.Sub(SQLiteFS, "sqlite")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
