package imagedata_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice9innovations/api/internal/imagedata"
)

func writePNG(t *testing.T, dir, name string, w, h int, fill color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestMeasure(t *testing.T) {
	path := writePNG(t, t.TempDir(), "wide.png", 640, 480, color.White)

	dims, err := imagedata.Measure(path)
	require.NoError(t, err)
	assert.Equal(t, 640, dims.Width)
	assert.Equal(t, 480, dims.Height)
}

func TestMeasureFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := imagedata.Measure(filepath.Join(t.TempDir(), "absent.png"))
		assert.Error(t, err)
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.png")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
		_, err := imagedata.Measure(path)
		assert.Error(t, err)
	})
}

func TestRenderVariants(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "photo.png", 800, 600, color.White)

	imagedata.RenderVariants(path, []string{"320", "bogus"})

	variant := imagedata.VariantPath(path, "320")
	info, err := os.Stat(variant)
	require.NoError(t, err, "numeric size renders a variant")
	assert.Greater(t, info.Size(), int64(0))

	dims, err := imagedata.Measure(variant)
	require.NoError(t, err)
	assert.LessOrEqual(t, dims.Width, 320)
	assert.LessOrEqual(t, dims.Height, 320)

	_, err = os.Stat(imagedata.VariantPath(path, "bogus"))
	assert.True(t, os.IsNotExist(err), "non-numeric size is skipped")
}

func TestCleanVariants(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "photo.png", 100, 100, color.White)
	imagedata.RenderVariants(path, []string{"64"})

	require.NoError(t, imagedata.CleanVariants(path, []string{"64", "128"}))
	_, err := os.Stat(imagedata.VariantPath(path, "64"))
	assert.True(t, os.IsNotExist(err))
}

func TestHashIndex(t *testing.T) {
	dir := t.TempDir()
	white := writePNG(t, dir, "white.png", 64, 64, color.White)

	hash, err := imagedata.HashFile(white)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// The same pixels hash identically regardless of file name.
	again := writePNG(t, dir, "white2.png", 64, 64, color.White)
	hash2, err := imagedata.HashFile(again)
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)

	index := imagedata.NewHashIndex()
	_, found := index.Get(hash)
	assert.False(t, found)

	index.Set(hash, white)
	path, found := index.Get(hash2)
	require.True(t, found)
	assert.Equal(t, white, path)
	assert.Equal(t, 1, index.Len())
}

func TestHashFileRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	_, err := imagedata.HashFile(path)
	assert.Error(t, err)
}
