package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConnection(t *testing.T) *DatabaseConnection {
	t.Helper()
	conn, err := ConnectSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}
