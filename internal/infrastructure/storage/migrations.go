package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage/migrations"
	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// runMigrations applies every pending migration
func runMigrations(db *sql.DB) error {
	return migrateTo(db, -1)
}

// migrateTo applies migrations up to version; a negative version means all
func migrateTo(db *sql.DB, version int64) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	var err error
	if version < 0 {
		err = goose.Up(db, ".")
	} else {
		err = goose.UpTo(db, ".", version)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the current goose schema version
func (s *Storage) SchemaVersion() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(s.db)
}
