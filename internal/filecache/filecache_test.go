package filecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/model"
)

func newTestCache(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	return NewManager(root, time.Hour, arbor.NewLogger()), root
}

func TestSave_ThenLoad(t *testing.T) {
	m, root := newTestCache(t)

	changed, err := m.Save(model.DirectoryInfo{
		Directory:  "/Users/me/project",
		Files:      []string{"/Users/me/project/main.go", "/Users/me/project/go.mod"},
		SearchMode: model.SearchModeRecursive,
	})
	require.NoError(t, err)
	assert.True(t, changed, "first save is a change")

	assert.FileExists(t, filepath.Join(root, "-Users-me-project", "metadata.json"))
	assert.FileExists(t, filepath.Join(root, "-Users-me-project", "files.jsonl"))

	// Fresh manager reads from disk rather than memory
	other := NewManager(root, time.Hour, arbor.NewLogger())
	entry, err := other.Load("/Users/me/project")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Metadata.FileCount)
	assert.Equal(t, []string{"/Users/me/project/main.go", "/Users/me/project/go.mod"}, entry.Files)
	assert.True(t, other.IsFresh(entry))
}

func TestSave_DetectsChanges(t *testing.T) {
	m, _ := newTestCache(t)
	dir := "/Users/me/project"

	_, err := m.Save(model.DirectoryInfo{Directory: dir, Files: []string{"a", "b"}})
	require.NoError(t, err)

	changed, err := m.Save(model.DirectoryInfo{Directory: dir, Files: []string{"b", "a"}})
	require.NoError(t, err)
	assert.False(t, changed, "reordering is not a change")

	changed, err = m.Save(model.DirectoryInfo{Directory: dir, Files: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestLoad_Miss(t *testing.T) {
	m, _ := newTestCache(t)
	entry, err := m.Load("/nowhere")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestIsFresh_TTL(t *testing.T) {
	m, _ := newTestCache(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	_, err := m.Save(model.DirectoryInfo{Directory: "/p", Files: []string{"x"}})
	require.NoError(t, err)

	entry, err := m.Load("/p")
	require.NoError(t, err)
	assert.True(t, m.IsFresh(entry))

	now = now.Add(2 * time.Hour)
	assert.False(t, m.IsFresh(entry))
	assert.False(t, m.IsFresh(nil))
}

func TestLoad_IgnoresOtherVersion(t *testing.T) {
	m, root := newTestCache(t)
	dir := filepath.Join(root, "-p")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`{"version":"0","directory":"/p"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files.jsonl"), []byte(`{"path":"x"}`+"\n"), 0644))

	entry, err := m.Load("/p")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestClearAndStats(t *testing.T) {
	m, _ := newTestCache(t)

	_, err := m.Save(model.DirectoryInfo{Directory: "/a", Files: []string{"1", "2"}})
	require.NoError(t, err)
	_, err = m.Save(model.DirectoryInfo{Directory: "/b", Files: []string{"3"}})
	require.NoError(t, err)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Directories)
	assert.Equal(t, 3, stats.Files)

	require.NoError(t, m.Clear("/a"))
	entry, err := m.Load("/a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, m.ClearAll())
	stats, err = m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Directories)
}

func TestSave_RequiresDirectory(t *testing.T) {
	m, _ := newTestCache(t)
	_, err := m.Save(model.DirectoryInfo{Files: []string{"x"}})
	assert.Error(t, err)
}
