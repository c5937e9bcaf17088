// Package testutil opens throwaway directory databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate bool
	onDisk  bool
	rows    []any
}

// WithAutoMigrate creates the directory schema after opening.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// WithOnDisk backs the database with a file under t.TempDir instead of shared memory.
func WithOnDisk() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.onDisk = true
	}
}

// WithRows migrates the schema and inserts rows verbatim, bypassing the repository layer.
// Use it for legacy or corrupt records the repositories refuse to write.
func WithRows(rows ...any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.rows = append(cfg.rows, rows...)
	}
}

// MustOpenTestDB opens a private SQLite database closed through t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	dbCfg := database.Config{Driver: "sqlite"}
	if cfg.onDisk {
		dbCfg.Path = filepath.Join(t.TempDir(), "directory.sqlite")
	}

	db, err := database.Open(dbCfg)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = database.Close(db) })

	if cfg.migrate {
		require.NoError(t, database.AutoMigrate(db), "migrate test database")
	}
	for _, row := range cfg.rows {
		require.NoError(t, db.Create(row).Error, "seed %T", row)
	}
	return db
}
