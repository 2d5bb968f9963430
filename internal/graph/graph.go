// Package graph builds the chart graph of a textured mesh: charts are
// maximal UV-connected face sets, edges join charts that share a seam.
package graph

import (
	"fmt"
	"math"
	"slices"

	"texdefrag/internal/mesh"
	"texdefrag/internal/texture"
)

// Edge joins two charts that share at least one mesh edge.
type Edge struct {
	A, B ChartID // A < B

	// LenA and LenB are the seam lengths measured in the texture space of
	// A and B. Merging the pair removes both from the total border.
	LenA, LenB float64
	Len3D      float64
}

// LenUV returns the seam length on both sides.
func (e *Edge) LenUV() float64 { return e.LenA + e.LenB }

// SideLen returns the seam length measured in chart id.
func (e *Edge) SideLen(id ChartID) float64 {
	if id == e.A {
		return e.LenA
	}
	return e.LenB
}

// Other returns the endpoint that is not id.
func (e *Edge) Other(id ChartID) ChartID {
	if id == e.A {
		return e.B
	}
	return e.A
}

// Graph is an arena of charts plus their adjacency.
type Graph struct {
	Mesh     *mesh.Mesh
	Textures *texture.Object

	charts    []*Chart
	faceChart []ChartID
	adj       map[ChartID]map[ChartID]*Edge
}

// ComputeGraph groups faces into maximal UV-connected charts and links
// charts sharing a mesh edge. The mesh topology must be up to date.
func ComputeGraph(m *mesh.Mesh, textures *texture.Object) (*Graph, error) {
	if err := m.CheckTexCoords(); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	g := &Graph{
		Mesh:      m,
		Textures:  textures,
		faceChart: make([]ChartID, m.FN()),
		adj:       make(map[ChartID]map[ChartID]*Edge),
	}
	for i := range g.faceChart {
		g.faceChart[i] = -1
	}

	var stack []int
	for seed := range m.Faces {
		if g.faceChart[seed] >= 0 {
			continue
		}
		id := ChartID(len(g.charts))
		c := &Chart{ID: id, Tex: m.Faces[seed].Tex, Alive: true}
		g.charts = append(g.charts, c)

		g.faceChart[seed] = id
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c.Faces = append(c.Faces, f)
			for i := 0; i < 3; i++ {
				n := m.Faces[f].FF[i]
				if n < 0 || g.faceChart[n] >= 0 || !UVConnected(m, f, i) {
					continue
				}
				g.faceChart[n] = id
				stack = append(stack, n)
			}
		}
		slices.Sort(c.Faces)
	}

	for _, c := range g.charts {
		g.rebuildBoundary(c)
		g.Refresh(c.ID)
		if c.area3D > 0 && c.areaUV > 0 {
			c.Scale = math.Sqrt(c.areaUV / c.area3D)
		} else {
			c.Scale = 1
		}
	}
	for _, c := range g.charts {
		g.rebuildEdges(c.ID)
	}
	return g, nil
}

const uvEpsilon = 1e-4

// UVConnected reports whether face f and the face across its edge i share
// the edge in texture space: same texture and matching wedge coordinates
// at both endpoints.
func UVConnected(m *mesh.Mesh, f, i int) bool {
	ff := &m.Faces[f]
	n := ff.FF[i]
	if n < 0 {
		return false
	}
	nf := &m.Faces[n]
	if nf.Tex != ff.Tex {
		return false
	}
	j := ff.FFi[i]
	// the shared edge runs V[i]->V[i+1] on f and V[j]->V[j+1] on n with
	// opposite orientation for consistently wound meshes
	a0, a1 := ff.WT[i], ff.WT[(i+1)%3]
	var b0, b1 = nf.WT[(j+1)%3], nf.WT[j]
	if nf.V[j] == ff.V[i] {
		b0, b1 = nf.WT[j], nf.WT[(j+1)%3]
	}
	return near(a0[0], b0[0]) && near(a0[1], b0[1]) && near(a1[0], b1[0]) && near(a1[1], b1[1])
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= uvEpsilon
}

// Count returns the number of live charts.
func (g *Graph) Count() int {
	n := 0
	for _, c := range g.charts {
		if c.Alive {
			n++
		}
	}
	return n
}

// Area3D returns the total surface area of all live charts.
func (g *Graph) Area3D() float64 {
	var a float64
	for _, c := range g.charts {
		if c.Alive {
			a += c.area3D
		}
	}
	return a
}

// BorderUV returns the total texture-space perimeter of all live charts.
func (g *Graph) BorderUV() float64 {
	var l float64
	for _, c := range g.charts {
		if c.Alive {
			l += c.borderUV
		}
	}
	return l
}

// Chart returns the chart with the given id, dead or alive.
func (g *Graph) Chart(id ChartID) *Chart {
	if id < 0 || int(id) >= len(g.charts) {
		return nil
	}
	return g.charts[id]
}

// Charts returns the live charts ordered by id.
func (g *Graph) Charts() []*Chart {
	out := make([]*Chart, 0, len(g.charts))
	for _, c := range g.charts {
		if c.Alive {
			out = append(out, c)
		}
	}
	return out
}

// ChartOf returns the chart owning face f.
func (g *Graph) ChartOf(f int) ChartID {
	return g.faceChart[f]
}

// Neighbors returns the ids adjacent to id in ascending order.
func (g *Graph) Neighbors(id ChartID) []ChartID {
	out := make([]ChartID, 0, len(g.adj[id]))
	for n := range g.adj[id] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Edge returns the edge joining a and b, or nil.
func (g *Graph) Edge(a, b ChartID) *Edge {
	return g.adj[a][b]
}

// Edges returns every edge once, ordered by (A, B).
func (g *Graph) Edges() []*Edge {
	var out []*Edge
	for a, m := range g.adj {
		for b, e := range m {
			if a < b {
				out = append(out, e)
			}
		}
	}
	slices.SortFunc(out, func(x, y *Edge) int {
		if x.A != y.A {
			return int(x.A - y.A)
		}
		return int(x.B - y.B)
	})
	return out
}

// Seam returns the half-edges of a whose opposite face belongs to b.
func (g *Graph) Seam(a, b ChartID) []HalfEdge {
	var out []HalfEdge
	for _, h := range g.charts[a].Boundary {
		n := g.Mesh.Faces[h.Face].FF[h.Edge]
		if n >= 0 && g.faceChart[n] == b {
			out = append(out, h)
		}
	}
	return out
}

// Refresh recomputes the cached area, perimeter and bounding box of a
// chart from the current wedge texture coordinates.
func (g *Graph) Refresh(id ChartID) {
	c := g.charts[id]
	m := g.Mesh
	c.areaUV, c.signedUV, c.area3D = 0, 0, 0
	c.min, c.max = emptyBox()
	for _, f := range c.Faces {
		a := m.SignedAreaUV(f)
		c.signedUV += a
		c.areaUV += math.Abs(a)
		c.area3D += m.Area3D(f)
		for _, p := range m.Faces[f].WT {
			c.min[0] = math.Min(c.min[0], p[0])
			c.min[1] = math.Min(c.min[1], p[1])
			c.max[0] = math.Max(c.max[0], p[0])
			c.max[1] = math.Max(c.max[1], p[1])
		}
	}
	c.borderUV = 0
	for _, h := range c.Boundary {
		c.borderUV += m.EdgeLengthUV(h.Face, h.Edge)
	}
}

// Merge lets a absorb b. b is tombstoned, both versions are bumped, the
// seam between them disappears and b's neighbors now point at a. The
// caller must already have written the merged parameterization into the
// mesh.
func (g *Graph) Merge(a, b ChartID) {
	ca, cb := g.charts[a], g.charts[b]

	for _, f := range cb.Faces {
		g.faceChart[f] = a
	}
	ca.Faces = append(ca.Faces, cb.Faces...)

	boundary := make([]HalfEdge, 0, len(ca.Boundary)+len(cb.Boundary))
	for _, h := range append(ca.Boundary, cb.Boundary...) {
		n := g.Mesh.Faces[h.Face].FF[h.Edge]
		if n >= 0 && g.faceChart[n] == a {
			continue
		}
		boundary = append(boundary, h)
	}
	ca.Boundary = boundary

	cb.Alive = false
	cb.Faces = nil
	cb.Boundary = nil
	cb.Version++
	ca.Version++

	for n := range g.adj[b] {
		delete(g.adj[n], b)
	}
	delete(g.adj, b)

	g.Refresh(a)
	g.rebuildEdges(a)
}

// Touch bumps the version of a chart whose parameterization changed
// without a merge.
func (g *Graph) Touch(id ChartID) {
	g.charts[id].Version++
	g.Refresh(id)
	g.rebuildEdges(id)
}

func (g *Graph) rebuildBoundary(c *Chart) {
	c.Boundary = c.Boundary[:0]
	for _, f := range c.Faces {
		for i := 0; i < 3; i++ {
			n := g.Mesh.Faces[f].FF[i]
			if n < 0 || g.faceChart[n] != c.ID {
				c.Boundary = append(c.Boundary, HalfEdge{f, i})
			}
		}
	}
}

// rebuildEdges recomputes every edge incident to id from its boundary.
func (g *Graph) rebuildEdges(id ChartID) {
	for n := range g.adj[id] {
		delete(g.adj[n], id)
	}
	g.adj[id] = make(map[ChartID]*Edge)

	m := g.Mesh
	for _, h := range g.charts[id].Boundary {
		f := m.Faces[h.Face]
		n := f.FF[h.Edge]
		if n < 0 {
			continue
		}
		other := g.faceChart[n]
		if other == id {
			continue
		}
		e := g.adj[id][other]
		if e == nil {
			a, b := id, other
			if a > b {
				a, b = b, a
			}
			e = &Edge{A: a, B: b}
			g.adj[id][other] = e
			if g.adj[other] == nil {
				g.adj[other] = make(map[ChartID]*Edge)
			}
			g.adj[other][id] = e
		}
		mine := m.EdgeLengthUV(h.Face, h.Edge)
		theirs := m.EdgeLengthUV(n, f.FFi[h.Edge])
		if e.A == id {
			e.LenA += mine
			e.LenB += theirs
		} else {
			e.LenB += mine
			e.LenA += theirs
		}
		e.Len3D += m.EdgeLength3D(h.Face, h.Edge)
	}
}
