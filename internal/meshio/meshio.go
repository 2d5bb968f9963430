// Package meshio reads and writes textured triangle meshes (Wavefront OBJ
// with MTL materials, glTF and GLB) together with their texture images.
package meshio

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"texdefrag/internal/mesh"
	"texdefrag/internal/texture"
)

var (
	// ErrNonTriangle is returned for faces with more than three corners.
	ErrNonTriangle = errors.New("meshio: non-triangle face")
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("meshio: unsupported format")
	// ErrTextureLoad is returned when a referenced texture cannot be read.
	ErrTextureLoad = errors.New("meshio: texture not loaded")
)

// SaveOptions controls SaveMesh.
type SaveOptions struct {
	TextureFormat string // png or webp
}

// LoadMesh reads a mesh and the textures its materials reference. Texture
// coordinates are returned normalized, with v pointing down the image.
func LoadMesh(path string, log *zap.Logger) (*mesh.Mesh, *texture.Object, mesh.LoadMask, error) {
	var (
		m   *mesh.Mesh
		tex *texture.Object
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		m, tex, err = loadOBJ(path, log)
	case ".gltf", ".glb":
		m, tex, err = loadGLTF(path, log)
	default:
		return nil, nil, 0, fmt.Errorf("meshio: load %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, nil, 0, err
	}
	return m, tex, m.LoadMask, nil
}

// SaveMesh writes m with the given atlas sheets. Texture coordinates are
// expected in texel units of the sheet each face refers to.
func SaveMesh(path string, m *mesh.Mesh, images []*image.NRGBA, opt SaveOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("meshio: save %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return saveOBJ(path, m, images, opt)
	case ".gltf", ".glb":
		return saveGLTF(path, m, images)
	}
	return fmt.Errorf("meshio: save %s: %w", path, ErrUnsupportedFormat)
}

// OutputName returns the path results are written to: output if set,
// otherwise out_<name> next to the input. FBX output is not supported and
// gets an .obj suffix.
func OutputName(input, output string) string {
	name := output
	if name == "" {
		name = filepath.Join(filepath.Dir(input), "out_"+filepath.Base(input))
	}
	if strings.EqualFold(filepath.Ext(name), ".fbx") {
		name += ".obj"
	}
	return name
}

// normalizedUV returns the wedge coordinates of face f divided by the size
// of its sheet.
func normalizedUV(m *mesh.Mesh, f int, images []*image.NRGBA) [3][2]float64 {
	var out [3][2]float64
	face := &m.Faces[f]
	w, h := 1.0, 1.0
	if face.Tex >= 0 && face.Tex < len(images) && images[face.Tex] != nil {
		s := images[face.Tex].Rect.Size()
		if s.X > 0 && s.Y > 0 {
			w, h = float64(s.X), float64(s.Y)
		}
	}
	for k := 0; k < 3; k++ {
		out[k] = [2]float64{face.WT[k][0] / w, face.WT[k][1] / h}
	}
	return out
}

// textureName returns the file name of sheet i for the mesh file at path.
func textureName(path string, i int, format string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := ".png"
	if strings.EqualFold(format, "webp") {
		ext = ".webp"
	}
	return fmt.Sprintf("%s_%d%s", base, i, ext)
}
