package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkolev/texturevault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_WriteRead(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	payload := []byte{0x89, 0x50, 0x4e, 0x47}

	err := store.Write("bark.png", payload)
	require.NoError(t, err)

	got, err := store.Read("bark.png")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDiskStore_WriteCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root)

	err := store.Write("published/forest/bark.png", []byte("data"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "published", "forest", "bark.png"))
	assert.NoError(t, err)
}

func TestDiskStore_Overwrite(t *testing.T) {
	store := NewDiskStore(t.TempDir())

	require.NoError(t, store.Write("bark.png", []byte("old")))
	require.NoError(t, store.Write("bark.png", []byte("new")))

	got, err := store.Read("bark.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestDiskStore_Read_Missing(t *testing.T) {
	store := NewDiskStore(t.TempDir())

	_, err := store.Read("missing.png")

	assert.Error(t, err)
}

func TestNew_DiskDriver(t *testing.T) {
	store, err := New(config.StorageConfig{Driver: "disk", DiskRoot: t.TempDir()})

	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, store)
}

func TestNew_DefaultsToDisk(t *testing.T) {
	store, err := New(config.StorageConfig{})

	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, store)
}

func TestNew_S3RequiresBucket(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "s3"})

	assert.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "tape"})

	assert.Error(t, err)
}
