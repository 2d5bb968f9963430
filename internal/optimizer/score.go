package optimizer

import "texdefrag/internal/graph"

// Candidate describes a merge candidate to a ScoreFunc. A is the chart
// that would absorb B.
type Candidate struct {
	Edge          *graph.Edge
	A, B          *graph.Chart
	MatchingError float64
}

// ScoreFunc ranks candidates; higher scores are merged first.
type ScoreFunc func(c Candidate) float64

// DefaultScore prefers pairs whose seam covers a large part of the smaller
// chart's border and whose seams line up well:
//
//	(seam length in B / border of B) / (1 + matching error)
func DefaultScore(c Candidate) float64 {
	border := c.B.BorderUV()
	if border <= 0 {
		return 0
	}
	return c.Edge.SideLen(c.B.ID) / border / (1 + c.MatchingError)
}
