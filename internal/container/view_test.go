package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MapsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UPDATE.APP")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, path, v.Path())
	assert.Equal(t, int64(10), v.Len())

	b, err := v.Slice(Range{Offset: 2, Length: 3})
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), b)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, int64(0), v.Len())
	assert.True(t, v.Contains(Range{}))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestView_SliceOutOfBounds(t *testing.T) {
	v := FromBytes([]byte("abc"))

	_, err := v.Slice(Range{Offset: 1, Length: 3})
	assert.Error(t, err)

	_, err = v.Slice(Range{Offset: -1, Length: 1})
	assert.Error(t, err)

	b, err := v.Slice(Range{Offset: 3, Length: 0})
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestView_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	v, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, v.Close())
	assert.NoError(t, v.Close())
}
