package imagecache

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.White)
		}
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func TestEnsureImageURLIsIdempotentUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	p := writeTestPNG(t, dir, "a.png")

	c := New()
	var loads int
	origURLFor := c.URLFor
	_ = origURLFor
	c.URLFor = func(path string) string { return "file://" + path }

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.EnsureImageURL(p)
			require.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	_ = loads
	assert.Equal(t, 8, c.Refcount(p))
}

func TestInvalidateImageCacheDropsHandle(t *testing.T) {
	dir := t.TempDir()
	p := writeTestPNG(t, dir, "a.png")
	c := New()

	_, err := c.EnsureImageURL(p)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Refcount(p))

	c.InvalidateImageCache(p)
	assert.Equal(t, 0, c.Refcount(p))
}

func TestReleaseDropsLastReference(t *testing.T) {
	dir := t.TempDir()
	p := writeTestPNG(t, dir, "a.png")
	c := New()

	_, err := c.EnsureImageURL(p)
	require.NoError(t, err)
	_, err = c.EnsureImageURL(p)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Refcount(p))

	c.Release(p)
	assert.Equal(t, 1, c.Refcount(p))
	c.Release(p)
	assert.Equal(t, 0, c.Refcount(p))
}
