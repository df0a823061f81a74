package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_CreatesParents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "task_1")

	path, err := NewFileSink().Write(dir, "generated_code.py", "print(1)\n")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "generated_code.py"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", string(data))
}

func TestFileSink_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink()

	_, err := s.Write(dir, "generated_code.sh", "first")
	require.NoError(t, err)
	path, err := s.Write(dir, "generated_code.sh", "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestFileSink_RelativeDirResolved(t *testing.T) {
	t.Chdir(t.TempDir())

	path, err := NewFileSink().Write("task_7", "generated_code.txt", "x")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}

func TestFileSink_RejectsPathInName(t *testing.T) {
	_, err := NewFileSink().Write(t.TempDir(), "../escape.py", "x")
	assert.Error(t, err)
	_, err = NewFileSink().Write(t.TempDir(), "", "x")
	assert.Error(t, err)
}

func TestFileSink_DirIsFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewFileSink().Write(filepath.Join(blocker, "sub"), "generated_code.py", "x")
	assert.Error(t, err)
}
