package texture

import (
	"os"
	"path/filepath"
	"strings"
)

// supported lists the image extensions the index picks up, in priority
// order: for the same stem an earlier extension wins.
var supported = []string{".png", ".tga", ".tif", ".tiff", ".bmp", ".webp", ".jpg", ".jpeg"}

// Index maps lowercase texture stems to filesystem paths. Material files
// written on other systems often reference textures with foreign path
// separators or the wrong letter case; the index resolves them by stem.
type Index struct {
	entries map[string]string // stem.lower() → full path
}

// BuildIndex scans dir and its immediate subdirectories for images.
func BuildIndex(dir string) *Index {
	idx := &Index{entries: make(map[string]string)}

	searchDirs := []string{dir}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.IsDir() {
			searchDirs = append(searchDirs, filepath.Join(dir, e.Name()))
		}
	}

	for _, d := range searchDirs {
		files, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			path := filepath.Join(d, f.Name())
			ext := strings.ToLower(filepath.Ext(path))
			rank := extRank(ext)
			if rank < 0 {
				continue
			}
			stem := strings.ToLower(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())))
			existing, exists := idx.entries[stem]
			if !exists || rank < extRank(strings.ToLower(filepath.Ext(existing))) {
				idx.entries[stem] = path
			}
		}
	}

	return idx
}

func extRank(ext string) int {
	for i, e := range supported {
		if e == ext {
			return i
		}
	}
	return -1
}

// ResolvePath returns the filesystem path for a texture name, or ("", false).
func (idx *Index) ResolvePath(texName string) (string, bool) {
	// Strip path prefix (e.g., "C:\\scans\\tex_0.jpg" → "tex_0")
	texName = strings.ReplaceAll(texName, "\\", "/")
	base := filepath.Base(texName)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	path, ok := idx.entries[stem]
	return path, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	return len(idx.entries)
}
