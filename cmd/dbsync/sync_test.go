package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/dbsync/internal/catalog"
	"github.com/openmined/dbsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDescriptors(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "datasources.txt")
	require.NoError(t, os.WriteFile(catalogPath, []byte("{data_folder}/ref.csv\n{data_folder}/geo/regions.csv\n"), 0o644))

	scripts := filepath.Join(dir, "sql")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "load.sql"),
		[]byte("COPY ref FROM '{data_folder}/ref.csv';\nCOPY tax FROM '{data_folder}/taxonomy.csv';\n"), 0o644))

	t.Run("catalog and scan", func(t *testing.T) {
		got, err := loadDescriptors(&config.Config{Catalog: catalogPath}, scripts)
		require.NoError(t, err)
		assert.Equal(t, []string{"{data_folder}/ref.csv", "{data_folder}/geo/regions.csv", "{data_folder}/taxonomy.csv"}, got)
	})

	t.Run("match", func(t *testing.T) {
		got, err := loadDescriptors(&config.Config{Catalog: catalogPath, Match: []string{"**/geo/*"}}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"{data_folder}/geo/regions.csv"}, got)
	})

	t.Run("nothing matches", func(t *testing.T) {
		_, err := loadDescriptors(&config.Config{Catalog: catalogPath, Match: []string{"*.tsv"}}, "")
		assert.ErrorIs(t, err, catalog.ErrEmpty)
	})

	t.Run("no source of descriptors", func(t *testing.T) {
		_, err := loadDescriptors(&config.Config{}, "")
		assert.ErrorIs(t, err, errNoCatalog)
	})
}
