package batch

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"texdefrag/internal/config"
)

const quadOBJ = `mtllib quad.mtl
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

func writeQuad(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetNRGBA(3, 3, color.NRGBA{255, 0, 0, 255})
	f, err := os.Create(filepath.Join(dir, "tex.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte("newmtl mat\nmap_Kd tex.png\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	good := writeQuad(t, dir)
	missing := filepath.Join(dir, "missing.obj")

	cfg := Config{Settings: config.Default(), Workers: 2, Log: zap.NewNop()}
	results := Run(context.Background(), cfg, []string{good, missing})
	if len(results) != 2 {
		t.Fatalf("%d results", len(results))
	}

	r := results[0]
	if !r.Success || r.Report == nil {
		t.Fatalf("first mesh failed: %s", r.Error)
	}
	if want := filepath.Join(dir, "out_quad.obj"); r.Output != want {
		t.Errorf("output = %s, want %s", r.Output, want)
	}
	for _, name := range []string{"out_quad.obj", "out_quad.mtl", "out_quad_0.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if r.Report.InputCharts != 1 || r.Report.OutputCharts != 1 {
		t.Errorf("charts %d -> %d", r.Report.InputCharts, r.Report.OutputCharts)
	}

	if results[1].Success || results[1].Error == "" {
		t.Errorf("missing mesh reported %+v", results[1])
	}
	n, err := Failed(results)
	if n != 1 || err == nil {
		t.Errorf("Failed = %d, %v", n, err)
	}
}

func TestRunUnreadableTexture(t *testing.T) {
	dir := t.TempDir()
	path := writeQuad(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "tex.png"), []byte{0x89, 'P', 'N', 'G'}, 0644); err != nil {
		t.Fatal(err)
	}
	results := Run(context.Background(), Config{Settings: config.Default(), Log: zap.NewNop()}, []string{path})
	if results[0].Success || results[0].Error == "" {
		t.Fatalf("mesh with a broken texture reported %+v", results[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "out_quad.obj")); err == nil {
		t.Error("output written for a mesh whose texture was not read")
	}
	if n, _ := Failed(results); n != 1 {
		t.Errorf("Failed = %d", n)
	}
}

func TestRunIgnoresOutputForMany(t *testing.T) {
	dir := t.TempDir()
	a := writeQuad(t, dir)
	sub := filepath.Join(dir, "b")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	b := writeQuad(t, sub)

	settings := config.Default()
	settings.Output.Path = filepath.Join(dir, "fixed.obj")
	results := Run(context.Background(), Config{Settings: settings, Workers: 1}, []string{a, b})
	for _, r := range results {
		if !r.Success {
			t.Fatalf("%s failed: %s", r.Input, r.Error)
		}
		if filepath.Base(r.Output) != "out_quad.obj" {
			t.Errorf("output = %s", r.Output)
		}
	}
	if _, err := os.Stat(settings.Output.Path); err == nil {
		t.Error("fixed output written for several inputs")
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	results := []Result{
		{Input: "a.obj", Output: "out_a.obj", Success: true},
		{Input: "b.obj", Error: "boom"},
	}
	if err := WriteManifest(path, results); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		t.Fatal(err)
	}
	if man.Meshes != 2 || man.Succeeded != 1 || man.Results[1].Error != "boom" {
		t.Errorf("manifest = %+v", man)
	}
}
