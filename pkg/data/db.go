package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	migrationDir = "sql"

	createSchemaVersionSQL = `CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`

	selectSchemaVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM schema_version`

	insertSchemaVersionSQL = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`
)

var (
	//go:embed sql/*.sql
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// Init creates the database file if needed and applies pending migrations.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	db, err := GetDB(dbFilePath)
	if err != nil {
		return fmt.Errorf("error opening database %s: %w", dbFilePath, err)
	}
	defer db.Close()

	if err := migrate(db, f); err != nil {
		return fmt.Errorf("failed to migrate database %s: %w", dbFilePath, err)
	}

	return nil
}

// GetDB opens the sqlite database at path.
func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return conn, nil
}

type migration struct {
	version int
	file    string
}

// migrate applies the sql/NNN_name.sql files of fsys newer than the recorded version.
func migrate(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(createSchemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRow(selectSchemaVersionSQL).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	list, err := migrations(fsys)
	if err != nil {
		return err
	}

	for _, m := range list {
		if m.version <= current {
			continue
		}

		b, err := fs.ReadFile(fsys, path.Join(migrationDir, m.file))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", m.file, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(string(b)); err != nil {
			rollback(tx)
			return fmt.Errorf("failed to apply migration %s: %w", m.file, err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.Exec(insertSchemaVersionSQL, m.version, now); err != nil {
			rollback(tx)
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		slog.Debug("migration applied", "version", m.version, "file", m.file)
	}

	return nil
}

// migrations lists the NNN_name.sql files in version order.
func migrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	list := make([]migration, 0, len(entries))
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok || path.Ext(e.Name()) != ".sql" {
			return nil, fmt.Errorf("invalid migration file name: %s", e.Name())
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", e.Name(), err)
		}
		list = append(list, migration{version: v, file: e.Name()})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	for i := 1; i < len(list); i++ {
		if list[i].version == list[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d: %s, %s", list[i].version, list[i-1].file, list[i].file)
		}
	}
	return list, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
