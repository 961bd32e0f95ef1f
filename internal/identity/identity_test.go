package identity

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParentIDStableAcrossReads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "hello")

	first, err := ParentID(path)
	require.NoError(t, err)
	second, err := ParentID(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, ParentIDLength)
}

func TestParentIDChangesWithSize(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")

	before, err := ParentID(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	after, err := ParentID(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestParentIDChangesWithMtime(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "hello")

	before, err := ParentID(path)
	require.NoError(t, err)

	// Same size, different mtime.
	newTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, newTime, newTime))
	after, err := ParentID(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestParentIDMissingFile(t *testing.T) {
	_, err := ParentID(filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, qerrors.New(qerrors.ErrCodeFileUnavailable, "", nil)))
}

func TestMetadataEnvelope(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Report.PDF", "content")

	raw, err := Metadata(path, map[string]any{"chunk_index": 2, "total_chunks": 5})
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	assert.Equal(t, "Report.PDF", data["name"])
	assert.Equal(t, ".pdf", data["suffix"])
	assert.EqualValues(t, 7, data["size"])
	assert.EqualValues(t, 2, data["chunk_index"])
	assert.EqualValues(t, 5, data["total_chunks"])

	modified, ok := data["modified_utc"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, modified)
	assert.NoError(t, err)
}

func TestMetadataExtrasOverwriteDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "x")

	raw, err := Metadata(path, map[string]any{"name": "override"})
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, "override", data["name"])
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "a.txt", Title("/some/dir/a.txt"))
}
