package defrag

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"texdefrag/internal/config"
	"texdefrag/internal/mesh"
	"texdefrag/internal/packing"
	"texdefrag/internal/texture"
)

// fixture is two adjacent unit squares split into two charts of one 64×64
// texture, plus a detached square whose texture coordinates collapse to a
// point.
func fixture() (*mesh.Mesh, *texture.Object) {
	pos := []vec3.T{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0},
		{0, 1, 0}, {1, 1, 0}, {2, 1, 0},
		{5, 0, 0}, {6, 0, 0}, {6, 1, 0}, {5, 1, 0},
	}
	const s = 0.25
	uv := func(x, y, ox float64) vec2.T { return vec2.T{ox + x*s, y * s} }
	type tri struct {
		v  [3]int
		wt [3]vec2.T
	}
	tris := []tri{
		{[3]int{0, 1, 4}, [3]vec2.T{uv(0, 0, 0), uv(1, 0, 0), uv(1, 1, 0)}},
		{[3]int{0, 4, 3}, [3]vec2.T{uv(0, 0, 0), uv(1, 1, 0), uv(0, 1, 0)}},
		{[3]int{1, 2, 5}, [3]vec2.T{uv(0, 0, 0.5), uv(1, 0, 0.5), uv(1, 1, 0.5)}},
		{[3]int{1, 5, 4}, [3]vec2.T{uv(0, 0, 0.5), uv(1, 1, 0.5), uv(0, 1, 0.5)}},
		{[3]int{6, 7, 8}, [3]vec2.T{{0.9, 0.9}, {0.9, 0.9}, {0.9, 0.9}}},
		{[3]int{6, 8, 9}, [3]vec2.T{{0.9, 0.9}, {0.9, 0.9}, {0.9, 0.9}}},
	}
	faces := make([]mesh.Face, len(tris))
	for i, t := range tris {
		faces[i] = mesh.Face{V: t.v, WT: t.wt}
	}

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 4), uint8(y * 4), 90, 255})
		}
	}
	tex := &texture.Object{}
	tex.Add("fixture.png", img)
	return mesh.New("fixture", pos, faces), tex
}

func TestRun(t *testing.T) {
	m, tex := fixture()
	core, logs := observer.New(zapcore.InfoLevel)
	rep, sheets, err := Run(context.Background(), m, tex, config.Default(), zap.New(core))
	if err != nil {
		t.Fatal(err)
	}

	if rep.InputVert != 10 || rep.InputCharts != 3 {
		t.Errorf("InputVert = %d, InputCharts = %d", rep.InputVert, rep.InputCharts)
	}
	if rep.OutputCharts < 2 || rep.OutputCharts > rep.InputCharts {
		t.Errorf("OutputCharts = %d", rep.OutputCharts)
	}
	if rep.OutputUVLen > rep.InputUVLen+1e-9 {
		t.Errorf("border grew from %g to %g", rep.InputUVLen, rep.OutputUVLen)
	}
	if math.Abs(rep.InputMP-64*64/1e6) > 1e-12 {
		t.Errorf("InputMP = %g", rep.InputMP)
	}
	if rep.ZeroResamplingFraction < 0 || rep.ZeroResamplingFraction > 1 {
		t.Errorf("ZeroResamplingFraction = %g", rep.ZeroResamplingFraction)
	}
	if rep.Outcome == "" || rep.Sheets != len(sheets) || len(sheets) == 0 {
		t.Errorf("outcome %q, %d sheets, report says %d", rep.Outcome, len(sheets), rep.Sheets)
	}

	var px int
	for _, img := range sheets {
		px += img.Rect.Dx() * img.Rect.Dy()
	}
	if want := float64(px) / 1e6; math.Abs(rep.OutputMP-want) > 1e-12 {
		t.Errorf("OutputMP = %g, want %g", rep.OutputMP, want)
	}

	for f := 0; f < 4; f++ {
		face := m.Faces[f]
		if face.Tex < 0 || face.Tex >= len(sheets) {
			t.Fatalf("face %d on sheet %d", f, face.Tex)
		}
		b := sheets[face.Tex].Rect
		for _, p := range face.WT {
			if p[0] < 0 || p[1] < 0 || p[0] > float64(b.Dx()) || p[1] > float64(b.Dy()) {
				t.Errorf("face %d corner %v outside %v", f, p, b)
			}
		}
	}
	for f := 4; f < 6; f++ {
		if m.Faces[f].Tex != 0 || m.Faces[f].WT != ([3]vec2.T{}) {
			t.Errorf("zero-area face %d = %+v", f, m.Faces[f])
		}
	}

	var opaque int
	for _, img := range sheets {
		for i := 3; i < len(img.Pix); i += 4 {
			if img.Pix[i] != 0 {
				opaque++
			}
		}
	}
	if opaque < 400 {
		t.Errorf("only %d texels rendered", opaque)
	}

	for _, name := range []string{"InputVert", "OutputCharts", "RelativeMPChange", "ZeroResamplingFraction"} {
		if logs.FilterMessage(name).Len() != 1 {
			t.Errorf("metric %s not logged once", name)
		}
	}
}

func TestRunPackFailure(t *testing.T) {
	m, tex := fixture()
	cfg := config.Default()
	cfg.Packing.MaxSheetSize = 8
	cfg.Packing.MaxSheets = 1
	_, _, err := Run(context.Background(), m, tex, cfg, zap.NewNop())
	if !errors.Is(err, packing.ErrPackFailed) {
		t.Fatalf("err = %v, want ErrPackFailed", err)
	}
}

func TestRunRejectsBadSettings(t *testing.T) {
	m, tex := fixture()
	cfg := config.Default()
	cfg.Render.Filter = "sinc"
	if _, _, err := Run(context.Background(), m, tex, cfg, zap.NewNop()); err == nil {
		t.Error("expected filter error")
	}

	m.LoadMask = 0
	if _, _, err := Run(context.Background(), m, tex, config.Default(), zap.NewNop()); !errors.Is(err, mesh.ErrNoWedgeTexCoords) {
		t.Errorf("err = %v, want ErrNoWedgeTexCoords", err)
	}
}

func TestRunMissingTexture(t *testing.T) {
	m, _ := fixture()
	_, _, err := Run(context.Background(), m, &texture.Object{}, config.Default(), zap.NewNop())
	if !errors.Is(err, ErrMissingTexture) {
		t.Fatalf("no sheets: err = %v, want ErrMissingTexture", err)
	}

	m, tex := fixture()
	m.Faces[2].Tex = -1
	_, _, err = Run(context.Background(), m, tex, config.Default(), zap.NewNop())
	if !errors.Is(err, ErrMissingTexture) {
		t.Fatalf("untextured face: err = %v, want ErrMissingTexture", err)
	}
}
