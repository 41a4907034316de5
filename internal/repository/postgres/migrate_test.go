package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrdersAndSkips(t *testing.T) {
	files := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/README.md":      {Data: []byte("docs")},
		"migrations/noversion.sql":  {Data: []byte("SELECT 0;")},
		"migrations/abc_bad.sql":    {Data: []byte("SELECT -1;")},
	}

	migrations, err := LoadMigrations(files)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, 10, migrations[1].Version)
	assert.Equal(t, "SELECT 10;", migrations[1].SQL)
}

func TestEmbeddedSchemaIsLoadable(t *testing.T) {
	migrations, err := LoadMigrations(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS appointments")
	assert.Contains(t, migrations[0].SQL, "get_doctors()")
}
