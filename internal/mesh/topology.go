package mesh

// UpdateTopology rebuilds face-face adjacency. Edges shared by exactly two
// faces are linked; border and non-manifold edges get FF = -1.
func (m *Mesh) UpdateTopology() {
	type half struct {
		face, edge int
	}
	edges := make(map[[2]int][]half, len(m.Faces)*3/2)
	for fi := range m.Faces {
		f := &m.Faces[fi]
		for i := 0; i < 3; i++ {
			f.FF[i] = -1
			f.FFi[i] = -1
			edges[edgeKey(f.V[i], f.V[(i+1)%3])] = append(edges[edgeKey(f.V[i], f.V[(i+1)%3])], half{fi, i})
		}
	}
	for _, hs := range edges {
		if len(hs) != 2 {
			continue
		}
		a, b := hs[0], hs[1]
		if a.face == b.face {
			continue
		}
		m.Faces[a.face].FF[a.edge] = b.face
		m.Faces[a.face].FFi[a.edge] = b.edge
		m.Faces[b.face].FF[b.edge] = a.face
		m.Faces[b.face].FFi[b.edge] = a.edge
	}
}

// IsBorder reports whether edge i of face f has no adjacent face.
func (m *Mesh) IsBorder(f, i int) bool {
	return m.Faces[f].FF[i] < 0
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}
