package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "tidy", Name: "tidylink"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=tidy dbname=tidylink TimeZone=UTC sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require", "search_path": "public"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.example.com port=6543 user=user dbname=db password=pass TimeZone=UTC search_path=public sslmode=require", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "tidy", Name: "tidylink"})
	require.NoError(t, err)
	require.Equal(t, "tidy@tcp(127.0.0.1:3306)/tidylink?charset=utf8mb4&loc=UTC&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify", "loc": "Local"},
	})
	require.NoError(t, err)
	require.Equal(t, "user:secret@tcp(db.example.com:3307)/db?charset=utf8mb4&loc=Local&parseTime=True&tls=skip-verify", dsn)
}

func TestDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)

	dsn, err := buildMySQLDSN(Config{DSN: "custom"})
	require.NoError(t, err)
	require.Equal(t, "custom", dsn)
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.Contains(t, dsn, "memory")

	path := filepath.Join(t.TempDir(), "nested", "tidy.sqlite")
	dsn, err = sqliteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, filepath.ToSlash(path))
	require.DirExists(t, filepath.Dir(path))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
