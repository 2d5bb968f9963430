package optimizer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"texdefrag/internal/graph"
	"texdefrag/internal/logger"
)

// GreedyOptimization pops the best candidate pair, merges it when every
// tolerance holds and requeues the pairs around the merged chart, until
// no candidate is left, the border reduction target is met or the time
// limit expires. The time limit is checked between iterations.
func GreedyOptimization(ctx context.Context, g *graph.Graph, s *State, p Params, log *zap.Logger) (Outcome, error) {
	start := time.Now()
	trace := logger.Trace(log)
	target := -1.0
	if p.UVReduction > 0 {
		target = (1 - p.UVReduction) * s.InitialBorder
	}

	log.Debug("optimizer started",
		zap.Int("charts", g.Count()),
		zap.Int("candidates", s.queue.Len()),
		zap.Float64("border", s.InitialBorder))

	outcome := Converged
	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if p.TimeLimit > 0 && time.Since(start) > p.TimeLimit {
			outcome = TimedOut
			break
		}
		if target >= 0 && g.BorderUV() <= target {
			break
		}

		e := s.queue.pop()
		ca, cb := g.Chart(e.A), g.Chart(e.B)
		if !ca.Alive || !cb.Alive || ca.Version != e.VA || cb.Version != e.VB {
			continue
		}
		if _, done := s.rejected[e.candidateKey]; done {
			continue
		}
		s.Iterations++

		ev, err := s.tryMerge(ctx, g, p, e.A, e.B)
		if err != nil {
			return outcome, err
		}
		if ev.reason != "" {
			s.reject(e.candidateKey, ev.reason)
			if trace {
				log.Debug("merge rejected",
					zap.Int("a", int(e.A)),
					zap.Int("b", int(e.B)),
					zap.String("reason", ev.reason),
					zap.Float64("matching", ev.change.MatchingError),
					zap.Float64("local", ev.change.LocalDistortion))
			}
			continue
		}

		s.apply(g, ev)
		if trace {
			c := ev.change
			log.Debug("merged",
				zap.Int("a", int(c.A)),
				zap.Int("b", int(c.B)),
				zap.Float64("matching", c.MatchingError),
				zap.Float64("local", c.LocalDistortion),
				zap.Float64("global", c.GlobalDistortion),
				zap.Float64("boundary", c.BoundaryRatio),
				zap.Bool("expanded", c.Expanded))
		}
		for _, n := range g.Neighbors(e.A) {
			s.enqueue(g, p, e.A, n)
		}
	}

	log.Debug("optimizer finished",
		zap.Stringer("outcome", outcome),
		zap.Int("iterations", s.Iterations),
		zap.Int("merges", len(s.Changes)),
		zap.Int("charts", g.Count()),
		zap.Float64("border", g.BorderUV()),
		zap.Float64("global_distortion", s.GlobalDistortion()),
		zap.Duration("elapsed", time.Since(start)))
	return outcome, nil
}

func (s *State) apply(g *graph.Graph, ev *evaluation) {
	for f, e := range ev.energy {
		s.energy[f] = e
	}
	s.excess = ev.excess
	g.Merge(ev.change.A, ev.change.B)
	s.Changes = append(s.Changes, ev.change)
}

// Finalize makes every face carry the texture index of its chart and
// returns the duplicated-vertex count of the resulting parameterization.
func Finalize(g *graph.Graph) int {
	m := g.Mesh
	for _, c := range g.Charts() {
		for _, f := range c.Faces {
			m.Faces[f].Tex = c.Tex
		}
		g.Refresh(c.ID)
	}
	return m.DuplicatedVertexCount()
}
