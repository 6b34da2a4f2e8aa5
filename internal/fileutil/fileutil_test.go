package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "-Users-me-src-app", EncodePath("/Users/me/src/app"))
	assert.Equal(t, "-Users-me-src-app", EncodePath("/Users/me/src/app/"))
}

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestJSONL(t *testing.T) {
	type row struct {
		Name string `json:"name"`
	}
	path := filepath.Join(t.TempDir(), "rows.jsonl")

	require.NoError(t, WriteJSONL(path, []row{{"a"}, {"<b>"}}))
	got, err := ReadJSONL[row](path)
	require.NoError(t, err)
	assert.Equal(t, []row{{"a"}, {"<b>"}}, got)

	require.NoError(t, os.WriteFile(path, []byte("{\"name\":\"a\"}\n\n{broken\n"), 0644))
	_, err = ReadJSONL[row](path)
	assert.ErrorContains(t, err, "line 3")
}

func TestReadJSONMissing(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	assert.True(t, os.IsNotExist(err))
}
