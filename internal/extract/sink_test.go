package extract

import (
	"path/filepath"
	"testing"

	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFreshOutputDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, EnsureFreshOutputDir(fs, "/out/extracted_files"))
	isDir, err := afero.IsDir(fs, "/out/extracted_files")
	require.NoError(t, err)
	assert.True(t, isDir)

	err = EnsureFreshOutputDir(fs, "/out/extracted_files")
	require.Error(t, err)
	assert.True(t, fwerrors.IsPrecondition(err))
	assert.Equal(t, fwerrors.ExitPrecondition, fwerrors.ExitCode(err))
}

func TestEnsureFreshOutputDir_FileInTheWay(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out", []byte("x"), 0o644))

	err := EnsureFreshOutputDir(fs, "/out")
	assert.True(t, fwerrors.IsPrecondition(err))
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("fw", "extracted_files"), DefaultOutputPath(filepath.Join("fw", "UPDATE.APP")))
}

func TestDirSink_CreateThenAppend(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, EnsureFreshOutputDir(fs, "/out"))
	s := NewDirSink(fs, "/out")

	action, err := s.Write("SYSTEM", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)

	action, err = s.Write("BOOT", []byte("boot"))
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)

	action, err = s.Write("SYSTEM", []byte("def"))
	require.NoError(t, err)
	assert.Equal(t, ActionAppend, action)

	got, err := afero.ReadFile(fs, "/out/SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)

	assert.Equal(t, []FileInfo{
		{Name: "SYSTEM", Bytes: 6, Parts: 2},
		{Name: "BOOT", Bytes: 4, Parts: 1},
	}, s.Files())
}

func TestDirSink_FirstWriteTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/out/SYSTEM", []byte("stale data"), 0o644))

	s := NewDirSink(fs, "/out")
	_, err := s.Write("SYSTEM", []byte("new"))
	require.NoError(t, err)

	got, err := afero.ReadFile(fs, "/out/SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestDirSink_EmptyPayload(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewDirSink(fs, "/out")
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	_, err := s.Write("EMPTY", nil)
	require.NoError(t, err)

	info, err := fs.Stat("/out/EMPTY")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", "a\\b", "a\x00b"} {
		err := ValidateName(name)
		assert.True(t, fwerrors.IsMalformed(err), "name %q", name)
	}
	for _, name := range []string{"SYSTEM", "boot.img", "..hidden", "a b"} {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}
}

func TestDirSink_RejectsInvalidName(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewDirSink(fs, "/out")

	_, err := s.Write("../escape", []byte("x"))
	assert.Error(t, err)

	exists, _ := afero.Exists(fs, "/escape")
	assert.False(t, exists)
}
