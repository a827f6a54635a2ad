package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPhoto(t *testing.T) {
	assert.True(t, IsPhoto("dinner.jpg"))
	assert.True(t, IsPhoto("dinner.JPEG"))
	assert.True(t, IsPhoto("IMG_0042.HEIC"))
	assert.True(t, IsPhoto("plate.webp"))
	assert.False(t, IsPhoto("scan.tiff"), "intake rejects tiff")
	assert.False(t, IsPhoto("menu.txt"))
	assert.False(t, IsPhoto("noext"))
}

func TestCollectPhotos(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, PrepareOutputDir(filepath.Join(dir, "nested")))
	require.NoError(t, PrepareOutputDir(filepath.Join(dir, ".thumbs")))
	for _, name := range []string{
		"b.jpg",
		"notes.txt",
		".hidden.jpg",
		filepath.Join("nested", "a.png"),
		filepath.Join(".thumbs", "c.jpg"),
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	photos, err := CollectPhotos(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "nested", "a.png"),
	}, photos)

	_, err = CollectPhotos(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "dinner_compressed.jpg"), OutputPath("/photos/dinner.heic", "out", "_compressed", "jpg"))
	assert.Equal(t, filepath.Join("out", "lunch_plate.png"), OutputPath("lunch.png", "out", "_plate", ".png"))
	assert.Equal(t, filepath.Join("out", "noext_roast.jpg"), OutputPath("noext", "out", "_roast", ""))
}

func TestIsFileAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plate.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, IsFile(file))
	assert.False(t, IsFile(dir))
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(file))
	assert.False(t, IsFile(filepath.Join(dir, "missing")))
}

func TestByteSize(t *testing.T) {
	assert.Equal(t, "512 B", ByteSize(512))
	assert.Equal(t, "1.5 KB", ByteSize(1536))
	assert.Equal(t, "10.0 MB", ByteSize(10<<20))
	assert.Equal(t, "3.0 GB", ByteSize(3<<30))
}
