package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestRemoveEmptyDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := filepath.FromSlash("/work/root")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, fs.MkdirAll(nested, 0o755))

	RemoveEmptyDirs(fs, root, nested)

	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		assert.False(t, exists(t, fs, filepath.Join(root, filepath.FromSlash(dir))), dir)
	}
	assert.True(t, exists(t, fs, root))

	// root/x/y/z with root/x/keep.txt: z and y go, x stays.
	xDir := filepath.Join(root, "x")
	zDir := filepath.Join(xDir, "y", "z")
	require.NoError(t, fs.MkdirAll(zDir, 0o755))
	keep := filepath.Join(xDir, "keep.txt")
	require.NoError(t, afero.WriteFile(fs, keep, []byte("keep"), 0o644))

	RemoveEmptyDirs(fs, root, zDir)

	assert.False(t, exists(t, fs, zDir))
	assert.False(t, exists(t, fs, filepath.Join(xDir, "y")))
	assert.True(t, exists(t, fs, xDir))
	assert.True(t, exists(t, fs, keep))
}

func TestRemoveEmptyDirs_KeepsNonEmptyLeaf(t *testing.T) {
	fs := afero.NewMemMapFs()
	out := filepath.FromSlash("/fw/extracted_files")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(out, "BOOT"), []byte("x"), 0o644))

	RemoveEmptyDirs(fs, filepath.Dir(out), out)
	assert.True(t, exists(t, fs, filepath.Join(out, "BOOT")))
}

func TestRemoveEmptyDirs_OutsideRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	other := filepath.FromSlash("/rootless/dir")
	require.NoError(t, fs.MkdirAll(other, 0o755))

	RemoveEmptyDirs(fs, filepath.FromSlash("/root"), other)
	RemoveEmptyDirs(fs, filepath.FromSlash("/root"), filepath.FromSlash("/root"))
	assert.True(t, exists(t, fs, other))
}

func TestRemoveEmptyDirs_RelativePaths(t *testing.T) {
	t.Chdir(t.TempDir())
	fs := afero.NewOsFs()
	require.NoError(t, fs.Mkdir("out", 0o755))

	RemoveEmptyDirs(fs, filepath.Dir("out"), "out")
	assert.False(t, exists(t, fs, "out"))

	require.NoError(t, fs.MkdirAll(filepath.Join("fw", "out"), 0o755))
	RemoveEmptyDirs(fs, ".", filepath.Join("fw", "out"))
	assert.False(t, exists(t, fs, "fw"))
	assert.True(t, exists(t, fs, "."))
}

func TestRemoveEmptyDirs_SiblingPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	sibling := filepath.FromSlash("/work/rootx/dir")
	require.NoError(t, fs.MkdirAll(sibling, 0o755))

	RemoveEmptyDirs(fs, filepath.FromSlash("/work/root"), sibling)
	assert.True(t, exists(t, fs, sibling))
}

func TestCheckDirectoryWritable(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := filepath.FromSlash("/var/log/fwunpack")

	require.NoError(t, CheckDirectoryWritable(fs, dir))
	assert.True(t, exists(t, fs, dir))
	assert.False(t, exists(t, fs, filepath.Join(dir, writeTestName)))

	assert.Error(t, CheckDirectoryWritable(fs, ""))
}

func TestCheckDirectoryWritable_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.FromSlash("/tmp/file")
	require.NoError(t, afero.WriteFile(fs, path, []byte("x"), 0o644))

	assert.Error(t, CheckDirectoryWritable(fs, path))
}

func TestCheckDirectoryWritable_ReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, CheckDirectoryWritable(fs, filepath.FromSlash("/ro")))
}

func TestCheckFileDirectoryWritable(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, CheckFileDirectoryWritable(fs, "", "log"))
	require.NoError(t, CheckFileDirectoryWritable(fs, filepath.FromSlash("/logs/fwunpack.log"), "log"))
	assert.True(t, exists(t, fs, filepath.FromSlash("/logs")))

	err := CheckFileDirectoryWritable(afero.NewReadOnlyFs(afero.NewMemMapFs()), filepath.FromSlash("/x/fwunpack.log"), "log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file directory check failed")
}
