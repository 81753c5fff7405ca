package fileutil

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagedFile_Commit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	defer sf.Abort()

	_, err = sf.Write([]byte("hello\n"))
	require.NoError(t, err)

	// nothing at the final path until Commit
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, sf.Commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	// temporary removed after publish
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStagedFile_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	_, err = sf.Write([]byte("partial"))
	require.NoError(t, err)

	sf.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStagedFile_AbortAfterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	_, err = sf.Write([]byte("kept"))
	require.NoError(t, err)
	require.NoError(t, sf.Commit())

	// deferred Abort after a successful Commit must not remove the output
	sf.Abort()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestStagedFile_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson.gz")

	sf, err := NewStaged(path, true)
	require.NoError(t, err)
	defer sf.Abort()

	_, err = sf.Write([]byte(`{"a":1}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, sf.Commit())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`+"\n", string(data))
}

func TestStagedFile_CommitReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	defer sf.Abort()

	// previous artifact stays readable during the write
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	_, err = sf.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, sf.Commit())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestStagedFile_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.txt")

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	defer sf.Abort()

	_, err = sf.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, sf.Commit())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestStagedFile_DoubleCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	sf, err := NewStaged(path, false)
	require.NoError(t, err)
	require.NoError(t, sf.Commit())
	assert.Error(t, sf.Commit())
}
