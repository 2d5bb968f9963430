package arap

import (
	"errors"

	"github.com/flywave/go3d/float64/vec2"

	"texdefrag/internal/mesh"
)

// ErrConflict is returned when stitching would force two corners that
// must keep their position onto one vertex with different coordinates.
var ErrConflict = errors.New("arap: conflicting pinned corners")

const conflictEpsilon = 1e-6

// Patch is a set of faces whose corners are welded into shared texture
// vertices. Optimization moves the free vertices and leaves the rest.
type Patch struct {
	Mesh  *mesh.Mesh
	Faces []int
	UV    []vec2.T

	corner [][3]int // local vertex of each face corner, parallel to Faces
	free   []bool
	local  map[int]int // face -> position in Faces
}

// NewPatch welds the corners of faces across every edge for which
// connected(f, i) holds, both faces being in the patch. A welded vertex
// takes the coordinates of a corner of a preferred face if it has one.
func NewPatch(m *mesh.Mesh, faces []int, connected func(f, i int) bool, preferred func(f int) bool) (*Patch, error) {
	p := &Patch{
		Mesh:   m,
		Faces:  faces,
		corner: make([][3]int, len(faces)),
		local:  make(map[int]int, len(faces)),
	}
	for i, f := range faces {
		p.local[f] = i
	}

	parent := make([]int, 3*len(faces))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for li, f := range faces {
		face := &m.Faces[f]
		for i := 0; i < 3; i++ {
			n := face.FF[i]
			if n < 0 {
				continue
			}
			ln, ok := p.local[n]
			if !ok || !connected(f, i) {
				continue
			}
			nf := &m.Faces[n]
			for _, c := range [2]int{i, (i + 1) % 3} {
				for k := 0; k < 3; k++ {
					if nf.V[k] == face.V[c] {
						union(3*li+c, 3*ln+k)
					}
				}
			}
		}
	}

	index := make(map[int]int)
	var hasPreferred []bool
	for li, f := range faces {
		pref := preferred != nil && preferred(f)
		for c := 0; c < 3; c++ {
			r := find(3*li + c)
			v, ok := index[r]
			wt := m.Faces[f].WT[c]
			if !ok {
				v = len(p.UV)
				index[r] = v
				p.UV = append(p.UV, wt)
				hasPreferred = append(hasPreferred, pref)
			} else if pref {
				if hasPreferred[v] {
					d := vec2.Sub(&p.UV[v], &wt)
					if d.Length() > conflictEpsilon {
						return nil, ErrConflict
					}
				} else {
					p.UV[v] = wt
					hasPreferred[v] = true
				}
			}
			p.corner[li][c] = v
		}
	}
	p.free = make([]bool, len(p.UV))
	return p, nil
}

// VN returns the number of welded vertices.
func (p *Patch) VN() int { return len(p.UV) }

// SetFree marks as free every vertex touched only by faces in freeFaces.
// Vertices shared with a face outside the set stay fixed.
func (p *Patch) SetFree(freeFaces []int) {
	inFree := make(map[int]bool, len(freeFaces))
	for _, f := range freeFaces {
		inFree[f] = true
	}
	for v := range p.free {
		p.free[v] = false
	}
	touchedFixed := make([]bool, len(p.UV))
	for li, f := range p.Faces {
		for c := 0; c < 3; c++ {
			v := p.corner[li][c]
			if inFree[f] {
				p.free[v] = true
			} else {
				touchedFixed[v] = true
			}
		}
	}
	for v := range p.free {
		if touchedFixed[v] {
			p.free[v] = false
		}
	}
}

// Free reports whether vertex v may move.
func (p *Patch) Free(v int) bool { return p.free[v] }

// Corner returns the welded vertex of corner c of face f.
func (p *Patch) Corner(f, c int) int {
	return p.corner[p.local[f]][c]
}

// Apply writes the vertex coordinates back into the wedges of the mesh.
func (p *Patch) Apply() {
	for li, f := range p.Faces {
		for c := 0; c < 3; c++ {
			p.Mesh.Faces[f].WT[c] = p.UV[p.corner[li][c]]
		}
	}
}

// Snapshot returns a copy of the vertex coordinates.
func (p *Patch) Snapshot() []vec2.T {
	return append([]vec2.T(nil), p.UV...)
}

// Restore resets the vertex coordinates to a snapshot.
func (p *Patch) Restore(uv []vec2.T) {
	copy(p.UV, uv)
}
