// Package imagecache implements the shared decoded-image cache
// (spec.md §3 "Ownership", §4.1, §5 "ensureImageUrl is idempotent").
//
// Grounded on the teacher's image.go decode/encode pair, generalized
// from a single-pipeline resize tool into a refcounted multi-image
// cache; decode formats and compositing are carried from the teacher's
// disintegration/imaging + golang.org/x/image stack.
package imagecache

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Handle is a loaded image plus its externally-addressable URL.
type Handle struct {
	Path   string
	Img    image.Image
	URL    string
	Width  int
	Height int
}

// loadState tracks one in-flight or completed load, refcounted by the
// set of ImageItems referring to the path (spec.md §3 Ownership).
type loadState struct {
	mu       sync.Mutex
	handle   *Handle
	err      error
	done     chan struct{}
	refcount int
}

// Cache maps file path to a loaded handle, loading at most once per
// path concurrently (spec.md §5 "ensureImageUrl(path) is idempotent").
type Cache struct {
	mu    sync.Mutex
	state map[string]*loadState

	// URLFor produces the externally-addressable URL for a decoded
	// path; the real runtime would hand this to a local static file
	// server. Defaults to a file:// URL.
	URLFor func(path string) string
}

func New() *Cache {
	return &Cache{state: make(map[string]*loadState)}
}

func defaultURLFor(path string) string { return "file://" + path }

// EnsureImageURL loads path if not already cached (or in flight),
// returning its Handle. Concurrent callers for the same path share one
// load (spec.md §5).
func (c *Cache) EnsureImageURL(path string) (*Handle, error) {
	c.mu.Lock()
	st, exists := c.state[path]
	if !exists {
		st = &loadState{done: make(chan struct{})}
		c.state[path] = st
		c.mu.Unlock()

		handle, err := decode(path, c.urlFor())
		st.handle, st.err = handle, err
		close(st.done)
	} else {
		c.mu.Unlock()
		<-st.done
	}

	st.mu.Lock()
	st.refcount++
	st.mu.Unlock()

	if st.err != nil {
		return nil, st.err
	}
	return st.handle, nil
}

func (c *Cache) urlFor() func(string) string {
	if c.URLFor != nil {
		return c.URLFor
	}
	return defaultURLFor
}

// Release decrements path's refcount; InvalidateImageCache is used when
// the last reference is dropped explicitly instead.
func (c *Cache) Release(path string) {
	c.mu.Lock()
	st, ok := c.state[path]
	c.mu.Unlock()
	if !ok {
		return
	}
	st.mu.Lock()
	st.refcount--
	dead := st.refcount <= 0
	st.mu.Unlock()
	if dead {
		c.InvalidateImageCache(path)
	}
}

// InvalidateImageCache revokes the backing URL and drops the cached
// handle for path (spec.md §5).
func (c *Cache) InvalidateImageCache(path string) {
	c.mu.Lock()
	delete(c.state, path)
	c.mu.Unlock()
}

// Refcount reports the current reference count for path (0 if absent).
func (c *Cache) Refcount(path string) int {
	c.mu.Lock()
	st, ok := c.state[path]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.refcount
}

func decode(path string, urlFor func(string) string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagecache: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imagecache: decode %s: %w", path, err)
	}
	b := img.Bounds()
	return &Handle{
		Path:   path,
		Img:    img,
		URL:    urlFor(path),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
