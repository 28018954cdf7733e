// SessionDB records when device sessions start and how they end.
// Readings themselves are never stored here.
package sessiondb

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Store struct {
	db *sql.DB
}

// Open the database at path and apply migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	// One writer keeps sqlite from returning SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
