package database

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

func TestOpenSQLiteMemoryAndMigrate(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(db))
	require.NoError(t, AutoMigrate(db))

	for _, table := range []any{&models.ServiceRequest{}, &models.RequestMessage{}, &models.RequestReadState{}} {
		require.True(t, db.Migrator().HasTable(table))
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestTimestampsComeFromMonotonicClock(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, AutoMigrate(db))

	first := models.RequestMessage{RequestID: "req-1", Content: "a", SenderType: models.SenderUser}
	second := models.RequestMessage{RequestID: "req-1", Content: "b", SenderType: models.SenderUser}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	require.True(t, second.CreatedAt.After(first.CreatedAt))
	require.Equal(t, time.UTC, first.CreatedAt.Location())
}

func TestMonotonicClockNeverRepeats(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewMonotonicClock(func() time.Time { return frozen })

	a := clock.Now()
	b := clock.Now()
	c := clock.Now()
	require.Equal(t, frozen, a)
	require.Equal(t, frozen.Add(time.Microsecond), b)
	require.Equal(t, frozen.Add(2*time.Microsecond), c)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "directory", Name: "directory"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=directory dbname=directory TimeZone=UTC sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:     "u",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require"},
	})
	require.NoError(t, err)
	for _, part := range []string{"host=db.example.com", "port=6543", "password=pass", "sslmode=require"} {
		require.True(t, strings.Contains(dsn, part), "dsn %q missing %q", dsn, part)
	}

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "directory", Password: "secret", Name: "directory"})
	require.NoError(t, err)
	require.Equal(t, "directory:secret@tcp(127.0.0.1:3306)/directory?charset=utf8mb4&loc=UTC&parseTime=True", dsn)

	override, err := buildMySQLDSN(Config{DSN: "custom"})
	require.NoError(t, err)
	require.Equal(t, "custom", override)
}
