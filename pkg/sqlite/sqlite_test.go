package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	db, err := Open(path, `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v INTEGER)`)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES ('20250102', 198)`)
	require.NoError(t, err)

	var v int
	require.NoError(t, db.QueryRow(`SELECT v FROM kv WHERE k = '20250102'`).Scan(&v))
	assert.Equal(t, 198, v)
	assert.FileExists(t, path)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)

	_, err = Open(":memory:", "NOT SQL")
	assert.Error(t, err)
}
