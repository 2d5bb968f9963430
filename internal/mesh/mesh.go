// Package mesh holds the triangle mesh with per-wedge texture coordinates
// that every stage of the defragmentation pipeline reads and rewrites.
//
// Wedge texture coordinates are kept in texel units of the texture the
// face samples from, with v growing downwards like image rows.
package mesh

import (
	"errors"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
)

// LoadMask records which attributes a loader found in the input file.
type LoadMask uint32

const (
	MaskVertexTexCoord LoadMask = 1 << iota
	MaskWedgeTexCoord
	MaskVertexNormal
)

// ErrNoWedgeTexCoords is returned when the input carries no per-wedge
// texture coordinates.
var ErrNoWedgeTexCoords = errors.New("mesh: missing per-wedge texture coordinates")

// Face is a triangle. Edge i joins V[i] and V[(i+1)%3]; FF[i] is the face
// across that edge (-1 on borders and non-manifold edges) and FFi[i] the
// edge index on that face.
type Face struct {
	V   [3]int
	WT  [3]vec2.T
	Tex int
	FF  [3]int
	FFi [3]int
}

// WedgeTexCoord is a snapshot of a face's input parameterization.
type WedgeTexCoord struct {
	WT  [3]vec2.T
	Tex int
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Name      string
	Positions []vec3.T
	Faces     []Face
	LoadMask  LoadMask

	storage []WedgeTexCoord
}

// New builds a mesh from faces carrying wedge texture coordinates and
// computes its topology.
func New(name string, positions []vec3.T, faces []Face) *Mesh {
	m := &Mesh{Name: name, Positions: positions, Faces: faces, LoadMask: MaskWedgeTexCoord}
	m.UpdateTopology()
	return m
}

// VN returns the number of vertices.
func (m *Mesh) VN() int { return len(m.Positions) }

// FN returns the number of faces.
func (m *Mesh) FN() int { return len(m.Faces) }

// CheckTexCoords fails with ErrNoWedgeTexCoords unless the loader found
// per-wedge texture coordinates.
func (m *Mesh) CheckTexCoords() error {
	if m.LoadMask&MaskWedgeTexCoord == 0 {
		return ErrNoWedgeTexCoords
	}
	return nil
}

// StoreWedgeTexCoords snapshots the current wedge texture coordinates and
// texture indices. The resampler reads them back as the source mapping.
func (m *Mesh) StoreWedgeTexCoords() {
	m.storage = make([]WedgeTexCoord, len(m.Faces))
	for i := range m.Faces {
		m.storage[i] = WedgeTexCoord{WT: m.Faces[i].WT, Tex: m.Faces[i].Tex}
	}
}

// HasWedgeTexCoordStorage reports whether StoreWedgeTexCoords was called.
func (m *Mesh) HasWedgeTexCoordStorage() bool {
	return len(m.storage) == len(m.Faces) && m.storage != nil
}

// Stored returns the stored input parameterization of face f.
func (m *Mesh) Stored(f int) WedgeTexCoord {
	return m.storage[f]
}

// Corner returns the 3D position of corner i of face f.
func (m *Mesh) Corner(f, i int) vec3.T {
	return m.Positions[m.Faces[f].V[i]]
}

// Area3D returns the 3D area of face f.
func (m *Mesh) Area3D(f int) float64 {
	p0 := m.Corner(f, 0)
	p1 := m.Corner(f, 1)
	p2 := m.Corner(f, 2)
	e1 := vec3.Sub(&p1, &p0)
	e2 := vec3.Sub(&p2, &p0)
	c := vec3.Cross(&e1, &e2)
	return 0.5 * c.Length()
}

// SignedAreaUV returns the signed texture-space area of face f.
func (m *Mesh) SignedAreaUV(f int) float64 {
	return SignedArea(m.Faces[f].WT)
}

// SignedArea returns the signed area of a 2D triangle.
func SignedArea(t [3]vec2.T) float64 {
	e1 := vec2.Sub(&t[1], &t[0])
	e2 := vec2.Sub(&t[2], &t[0])
	return 0.5 * (e1[0]*e2[1] - e1[1]*e2[0])
}

// EdgeLengthUV returns the texture-space length of edge i of face f.
func (m *Mesh) EdgeLengthUV(f, i int) float64 {
	wt := m.Faces[f].WT
	d := vec2.Sub(&wt[(i+1)%3], &wt[i])
	return d.Length()
}

// EdgeLength3D returns the 3D length of edge i of face f.
func (m *Mesh) EdgeLength3D(f, i int) float64 {
	a := m.Corner(f, i)
	b := m.Corner(f, (i+1)%3)
	d := vec3.Sub(&b, &a)
	return d.Length()
}

// BBox returns the 3D bounding box of the vertices.
func (m *Mesh) BBox() vec3.Box {
	box := vec3.MinBox
	for _, p := range m.Positions {
		pb := vec3.Box{Min: p, Max: p}
		box.Join(&pb)
	}
	return box
}

// DegenerateArea returns the 3D area below which a face is considered
// degenerate, scaled to the size of the model.
func (m *Mesh) DegenerateArea() float64 {
	if len(m.Positions) == 0 {
		return 0
	}
	box := m.BBox()
	diag := vec3.Sub(&box.Max, &box.Min)
	d := diag.Length()
	return 1e-12 * d * d
}
