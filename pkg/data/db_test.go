package data

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaVersionLatest = 2

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), DataFileName)
	require.NoError(t, Init(dbPath))
	db, err := GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func schemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	require.NoError(t, db.QueryRow(selectSchemaVersionSQL).Scan(&v))
	return v
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n))
	return n == 1
}

func TestInit_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	assert.True(t, tableExists(t, db, "lead"))
	assert.True(t, tableExists(t, db, "import"))
	assert.Equal(t, schemaVersionLatest, schemaVersion(t, db))
}

func TestInit_EmptyPath(t *testing.T) {
	assert.Error(t, Init(""))
}

func TestInit_KeepsSnapshotOnRerun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DataFileName)
	require.NoError(t, Init(dbPath))

	db, err := GetDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = SaveLeads(db, "first.csv", testLeads())
	require.NoError(t, err)

	require.NoError(t, Init(dbPath))

	list, err := GetLeads(db)
	require.NoError(t, err)
	assert.Len(t, list, len(testLeads()))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&applied))
	assert.Equal(t, schemaVersionLatest, applied)
}

func TestInit_CompletesPartialSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DataFileName)
	db, err := GetDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	leadSQL, err := f.ReadFile("sql/001_lead.sql")
	require.NoError(t, err)
	require.NoError(t, migrate(db, fstest.MapFS{
		"sql/001_lead.sql": {Data: leadSQL},
	}))
	assert.Equal(t, 1, schemaVersion(t, db))
	assert.False(t, tableExists(t, db, "import"))

	require.NoError(t, Init(dbPath))
	assert.Equal(t, schemaVersionLatest, schemaVersion(t, db))
	assert.True(t, tableExists(t, db, "import"))
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	db, err := GetDB(filepath.Join(t.TempDir(), DataFileName))
	require.NoError(t, err)
	defer db.Close()

	err = migrate(db, fstest.MapFS{
		"sql/001_ok.sql":     {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"sql/002_broken.sql": {Data: []byte("CREATE TABLE b (")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_broken.sql")
	assert.Equal(t, 1, schemaVersion(t, db))
	assert.False(t, tableExists(t, db, "b"))
}

func TestMigrations_Embedded(t *testing.T) {
	list, err := migrations(f)
	require.NoError(t, err)
	assert.Equal(t, []migration{
		{version: 1, file: "001_lead.sql"},
		{version: 2, file: "002_import.sql"},
	}, list)
}

func TestMigrations_Ordering(t *testing.T) {
	list, err := migrations(fstest.MapFS{
		"sql/010_late.sql":  {},
		"sql/2_second.sql":  {},
		"sql/001_first.sql": {},
	})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{list[0].version, list[1].version, list[2].version})
	assert.Equal(t, "010_late.sql", list[2].file)
}

func TestMigrations_InvalidNames(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"no separator", "sql/001lead.sql"},
		{"non numeric", "sql/abc_lead.sql"},
		{"not sql", "sql/003_notes.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := migrations(fstest.MapFS{
				"sql/001_lead.sql": {},
				tt.file:            {},
			})
			assert.ErrorContains(t, err, "invalid migration")
		})
	}
}

func TestMigrations_DuplicateVersion(t *testing.T) {
	_, err := migrations(fstest.MapFS{
		"sql/001_lead.sql": {},
		"sql/01_again.sql": {},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestMigrations_MissingDir(t *testing.T) {
	_, err := migrations(fstest.MapFS{})
	assert.Error(t, err)
}

func TestInit_CreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DataFileName)
	require.NoError(t, Init(dbPath))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}
