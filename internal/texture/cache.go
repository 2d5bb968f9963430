package texture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
)

// Resolver resolves a texture reference to a decoded image.
type Resolver interface {
	Resolve(texName string) (*image.NRGBA, string, error)
}

// Cache is a concurrency-safe texture cache. Several materials often point
// at the same image; each file is decoded once.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	index *Index
	base  string
}

type cacheEntry struct {
	img *image.NRGBA
	err error
}

// NewCache creates a texture cache resolving names relative to baseDir,
// falling back to the stem index of that directory.
func NewCache(baseDir string) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		index: BuildIndex(baseDir),
		base:  baseDir,
	}
}

// Resolve loads and caches a texture by name and returns the image and the
// path it was read from.
func (c *Cache) Resolve(texName string) (*image.NRGBA, string, error) {
	path, ok := c.locate(texName)
	if !ok {
		return nil, "", fmt.Errorf("texture: %s not found in %s", texName, c.base)
	}

	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.img, path, entry.err
	}
	c.mu.RUnlock()

	// Slow path: load from disk
	img, err := LoadTexture(path)

	// Write lock with double-check
	c.mu.Lock()
	if entry, exists := c.items[path]; exists {
		c.mu.Unlock()
		return entry.img, path, entry.err
	}
	c.items[path] = &cacheEntry{img: img, err: err}
	c.mu.Unlock()

	return img, path, err
}

func (c *Cache) locate(texName string) (string, bool) {
	direct := texName
	if !filepath.IsAbs(direct) {
		direct = filepath.Join(c.base, filepath.FromSlash(texName))
	}
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, true
	}
	return c.index.ResolvePath(texName)
}
