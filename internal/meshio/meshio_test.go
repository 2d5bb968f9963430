package meshio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

const quadOBJ = `# two triangles
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl mat
f 1/1 2/2 3/3
f 1/1 3/3 4/4
`

const quadMTL = `newmtl mat
Kd 1 1 1
map_Kd tex.png
`

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 30), uint8(y * 60), 0, 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "tex.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOBJ(t *testing.T) {
	path := writeFixture(t, t.TempDir())
	m, tex, mask, err := LoadMesh(path, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	if m.VN() != 4 || m.FN() != 2 {
		t.Fatalf("got %d vertices %d faces, want 4 and 2", m.VN(), m.FN())
	}
	if tex.Count() != 1 || tex.Size(0) != image.Pt(8, 4) {
		t.Fatalf("textures = %d, size %v", tex.Count(), tex.Size(0))
	}
	if err := m.CheckTexCoords(); err != nil || mask == 0 {
		t.Fatalf("wedge texcoords missing: mask=%v err=%v", mask, err)
	}
	if m.Faces[0].Tex != 0 {
		t.Errorf("face texture = %d, want 0", m.Faces[0].Tex)
	}
	// vt 0 0 is the bottom-left corner of the image.
	if got := m.Faces[0].WT[0]; got[0] != 0 || got[1] != 1 {
		t.Errorf("WT[0] = %v, want (0, 1)", got)
	}
}

func TestLoadOBJNonTriangle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poly.obj")
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := LoadMesh(path, zap.NewNop())
	if !errors.Is(err, ErrNonTriangle) {
		t.Fatalf("err = %v, want ErrNonTriangle", err)
	}
}

func TestLoadOBJWithoutTexCoords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.obj")
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 3\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	m, _, _, err := LoadMesh(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if m.CheckTexCoords() == nil {
		t.Fatal("expected missing wedge texcoords")
	}
}

func TestLoadOBJUnreadableTexture(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "tex.png"), []byte("truncated"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := LoadMesh(path, zap.NewNop())
	if !errors.Is(err, ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
}

func TestLoadOBJMissingLibrary(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir)
	if err := os.Remove(filepath.Join(dir, "quad.mtl")); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := LoadMesh(path, zap.NewNop())
	if !errors.Is(err, ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, _, _, err := LoadMesh("model.ply", zap.NewNop())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in, out, want string
	}{
		{filepath.Join("data", "mesh.obj"), "", filepath.Join("data", "out_mesh.obj")},
		{"mesh.obj", "result.glb", "result.glb"},
		{"mesh.fbx", "", "out_mesh.fbx.obj"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in, tt.out); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func roundTrip(t *testing.T, ext, format string) {
	t.Helper()
	dir := t.TempDir()
	m, tex, _, err := LoadMesh(writeFixture(t, dir), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	m.ScaleTexCoordsToImage(tex.Sizes())
	want := m.Faces[1].WT

	out := filepath.Join(dir, "out", "quad"+ext)
	if err := SaveMesh(out, m, tex.Images, SaveOptions{TextureFormat: format}); err != nil {
		t.Fatalf("SaveMesh: %v", err)
	}
	back, btex, _, err := LoadMesh(out, zap.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.FN() != 2 || btex.Count() != 1 {
		t.Fatalf("reloaded %d faces %d textures", back.FN(), btex.Count())
	}
	if btex.Size(0) != image.Pt(8, 4) {
		t.Fatalf("texture size %v", btex.Size(0))
	}
	back.ScaleTexCoordsToImage(btex.Sizes())
	for k := 0; k < 3; k++ {
		for c := 0; c < 2; c++ {
			if math.Abs(back.Faces[1].WT[k][c]-want[k][c]) > 1e-4 {
				t.Fatalf("WT = %v, want %v", back.Faces[1].WT, want)
			}
		}
	}
}

func TestRoundTripOBJ(t *testing.T)     { roundTrip(t, ".obj", "png") }
func TestRoundTripOBJWebP(t *testing.T) { roundTrip(t, ".obj", "webp") }
func TestRoundTripGLB(t *testing.T)     { roundTrip(t, ".glb", "png") }
