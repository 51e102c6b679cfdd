package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadCSV(t *testing.T) {
	t.Run("reads header and rows", func(t *testing.T) {
		path := writeFile(t, "data.csv", "a,b\n1,2\n3,4\n")
		tbl, err := ReadCSV(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tbl.Headers)
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("pads ragged rows", func(t *testing.T) {
		path := writeFile(t, "ragged.csv", "a,b,c\n1,2\n")
		tbl, err := ReadCSV(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", ""}, tbl.Rows[0])
	})

	t.Run("strips BOM from first header", func(t *testing.T) {
		path := writeFile(t, "bom.csv", "\uFEFFtimestamp,x\n1,2\n")
		tbl, err := ReadCSV(path)
		require.NoError(t, err)
		assert.Equal(t, "timestamp", tbl.Headers[0])
	})

	t.Run("missing file maps to os.ErrNotExist", func(t *testing.T) {
		_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestTable_Column(t *testing.T) {
	tbl := &Table{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "x"}, {"2", "y"}}}

	t.Run("returns values", func(t *testing.T) {
		col, err := tbl.Column("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, col)
	})

	t.Run("unknown column errors", func(t *testing.T) {
		_, err := tbl.Column("z")
		assert.Error(t, err)
	})
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := &Table{Headers: []string{"a"}, Rows: [][]string{{"1"}}}
	path := filepath.Join(t.TempDir(), "out", "x.csv")
	require.NoError(t, tbl.WriteCSV(path))

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Headers, back.Headers)
	assert.Equal(t, tbl.Rows, back.Rows)
}
