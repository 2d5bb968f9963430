package mesh

import (
	"image"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
)

// PrepareMesh removes faces with repeated vertex indices and unreferenced
// vertices, rebuilds topology and returns the number of duplicated
// vertices implied by the wedge texture coordinates.
func PrepareMesh(m *Mesh) int {
	faces := m.Faces[:0]
	for _, f := range m.Faces {
		if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[2] == f.V[0] {
			continue
		}
		faces = append(faces, f)
	}
	m.Faces = faces

	remap := make([]int, len(m.Positions))
	for i := range remap {
		remap[i] = -1
	}
	var positions []vec3.T
	for fi := range m.Faces {
		for i := 0; i < 3; i++ {
			v := m.Faces[fi].V[i]
			if remap[v] < 0 {
				remap[v] = len(positions)
				positions = append(positions, m.Positions[v])
			}
			m.Faces[fi].V[i] = remap[v]
		}
	}
	m.Positions = positions
	m.storage = nil

	m.UpdateTopology()
	return m.DuplicatedVertexCount()
}

// DuplicatedVertexCount returns how many extra vertices a renderer needs
// because wedges of the same vertex carry different texture coordinates.
func (m *Mesh) DuplicatedVertexCount() int {
	type key struct {
		v    int
		u, w float64
		tex  int
	}
	seen := make(map[key]struct{}, len(m.Faces)*3)
	referenced := make(map[int]struct{}, len(m.Positions))
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			seen[key{f.V[i], f.WT[i][0], f.WT[i][1], f.Tex}] = struct{}{}
			referenced[f.V[i]] = struct{}{}
		}
	}
	return len(seen) - len(referenced)
}

// ScaleTexCoordsToImage converts normalized texture coordinates into texel
// units of each face's texture.
func (m *Mesh) ScaleTexCoordsToImage(sizes []image.Point) {
	for fi := range m.Faces {
		f := &m.Faces[fi]
		sz := sizeOf(sizes, f.Tex)
		for i := 0; i < 3; i++ {
			f.WT[i] = vec2.T{f.WT[i][0] * float64(sz.X), f.WT[i][1] * float64(sz.Y)}
		}
	}
}

func sizeOf(sizes []image.Point, tex int) image.Point {
	if tex < 0 || tex >= len(sizes) {
		return image.Point{X: 1, Y: 1}
	}
	return sizes[tex]
}
