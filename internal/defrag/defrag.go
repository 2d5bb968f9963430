// Package defrag runs the full atlas defragmentation of one mesh: chart
// merging, reorientation, packing and texture resampling.
package defrag

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/flywave/go3d/float64/vec2"
	"go.uber.org/zap"

	"texdefrag/internal/config"
	"texdefrag/internal/graph"
	"texdefrag/internal/mesh"
	"texdefrag/internal/optimizer"
	"texdefrag/internal/orient"
	"texdefrag/internal/packing"
	"texdefrag/internal/postprocess"
	"texdefrag/internal/raster"
	"texdefrag/internal/texture"
)

// ErrMissingTexture is returned when a face does not sample a loaded
// texture sheet. Such faces have no content to carry into the new atlas.
var ErrMissingTexture = errors.New("defrag: face without texture")

// Run defragments m in place and returns the report and the new atlas
// sheets. m must carry normalized wedge texture coordinates as returned by
// the loader; on success they are in texel units of the returned sheets.
func Run(ctx context.Context, m *mesh.Mesh, textures *texture.Object, cfg config.Config, log *zap.Logger) (*Report, []*image.NRGBA, error) {
	start := time.Now()
	rep := &Report{Mesh: m.Name}

	if err := m.CheckTexCoords(); err != nil {
		return nil, nil, err
	}
	if err := checkTextures(m, textures); err != nil {
		return nil, nil, err
	}
	filter, err := raster.ParseFilter(cfg.Render.Filter)
	if err != nil {
		return nil, nil, err
	}
	background, err := config.ParseColor(cfg.Render.Background)
	if err != nil {
		return nil, nil, err
	}

	log.Info("Preparing mesh...")
	m.UpdateTopology()
	m.ScaleTexCoordsToImage(textures.Sizes())
	rep.InputVertDup = mesh.PrepareMesh(m)
	rep.InputVert = m.VN()
	m.StoreWedgeTexCoords()

	g, err := graph.ComputeGraph(m, textures)
	if err != nil {
		return nil, nil, err
	}
	flipped := make(map[graph.ChartID]bool, g.Count())
	for _, c := range g.Charts() {
		flipped[c.ID] = c.UVFlipped()
	}
	rep.InputMP = textures.ResolutionMP()
	rep.InputCharts = g.Count()
	rep.InputUVLen = g.BorderUV()
	rep.MirroredCharts = orient.ReorientCharts(g)
	rep.Timings.Prepare = time.Since(start).Seconds()

	log.Info("Optimizing atlas...",
		zap.Int("charts", rep.InputCharts),
		zap.Float64("border", rep.InputUVLen))
	t := time.Now()
	params := optimizer.ParamsFromConfig(cfg.Algorithm)
	state := optimizer.InitializeState(g, params)
	outcome, err := optimizer.GreedyOptimization(ctx, g, state, params, log)
	if err != nil {
		return nil, nil, err
	}
	rep.OutputVertDup = optimizer.Finalize(g)
	rep.Merges = len(state.Changes)
	rep.Rejected = state.Rejected
	rep.Outcome = outcome.String()
	rep.Timings.Optimize = time.Since(t).Seconds()
	log.Info("Optimization finished",
		zap.Stringer("outcome", outcome),
		zap.Int("merges", rep.Merges),
		zap.Int("iterations", state.Iterations),
		zap.Float64("seconds", rep.Timings.Optimize))

	log.Info("Rotating charts...")
	ropt := orient.DefaultOptions()
	ropt.RotationStep = cfg.Algorithm.RotationStep
	anchors := make(orient.AnchorMap)
	var zeroArea float64
	for _, c := range g.Charts() {
		anchor, area := orient.RotateChartForResampling(g, c, flipped, ropt)
		if anchor >= 0 {
			anchors[c.ID] = anchor
			zeroArea += area
		}
	}
	rep.AnchoredCharts = len(anchors)
	if a := g.Area3D(); a > 0 {
		rep.ZeroResamplingFraction = zeroArea / a
	}
	rep.OutputCharts = g.Count()
	rep.OutputUVLen = g.BorderUV()

	// Charts without texture area are dropped from the atlas.
	var charts []*graph.Chart
	for _, c := range g.Charts() {
		if c.AreaUV() != 0 {
			charts = append(charts, c)
			continue
		}
		for _, f := range c.Faces {
			m.Faces[f].WT = [3]vec2.T{}
			m.Faces[f].Tex = 0
		}
	}

	log.Info("Packing atlas", zap.Int("charts", len(charts)))
	t = time.Now()
	popt := packing.Options{
		Gutter:       cfg.Packing.Gutter,
		MaxSheetSize: cfg.Packing.MaxSheetSize,
		MaxSheets:    cfg.Packing.MaxSheets,
	}
	sizes, packed := packing.Pack(g, charts, anchors, popt)
	if packed < len(charts) {
		return nil, nil, fmt.Errorf("%w: %d charts, %d packed", packing.ErrPackFailed, len(charts), packed)
	}
	log.Info("Trimming texture...")
	sizes = packing.TrimTexture(g, charts, sizes, cfg.Packing.Gutter, cfg.Packing.Granularity)
	log.Info("Shifting charts...")
	rep.MisalignedAnchors = packing.IntegerShift(g, charts, sizes, anchors)
	rep.Sheets = len(sizes)
	rep.Timings.Pack = time.Since(t).Seconds()
	log.Info("Packed charts",
		zap.Int("packed", packed),
		zap.Int("sheets", len(sizes)),
		zap.Float64("seconds", rep.Timings.Pack))

	log.Info("Rendering texture...")
	t = time.Now()
	atlas, err := raster.RenderTexture(ctx, m, textures, sizes, raster.Options{
		Filter:     filter,
		Background: background,
		Workers:    cfg.Render.Workers,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	var px int64
	for i, img := range atlas.Sheets {
		rep.DilatedTexels += postprocess.Dilate(img, atlas.Coverage[i], cfg.Render.Dilation)
		s := img.Rect.Size()
		px += int64(s.X) * int64(s.Y)
	}
	rep.Timings.Render = time.Since(t).Seconds()

	rep.OutputMP = float64(px) / 1e6
	if rep.InputMP > 0 {
		rep.RelativeMPChange = (rep.OutputMP - rep.InputMP) / rep.InputMP
	}
	rep.Timings.Total = time.Since(start).Seconds()
	rep.Log(log)
	return rep, atlas.Sheets, nil
}

func checkTextures(m *mesh.Mesh, textures *texture.Object) error {
	n := textures.Count()
	if n == 0 {
		return fmt.Errorf("%w: mesh has no textures", ErrMissingTexture)
	}
	for i := 0; i < n; i++ {
		if s := textures.Size(i); s.X == 0 || s.Y == 0 {
			return fmt.Errorf("%w: sheet %d is empty", ErrMissingTexture, i)
		}
	}
	for f := range m.Faces {
		if t := m.Faces[f].Tex; t < 0 || t >= n {
			return fmt.Errorf("%w: face %d uses sheet %d of %d", ErrMissingTexture, f, t, n)
		}
	}
	return nil
}
