package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.Resolve(Flags{})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Render.Workers < 1 {
		t.Errorf("workers = %d after Resolve", cfg.Render.Workers)
	}
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"c.yaml": "algorithm:\n  matching_threshold: 4.5\npacking:\n  gutter: 3\n",
		"c.toml": "[algorithm]\nmatching_threshold = 4.5\n[packing]\ngutter = 3\n",
		"c.json": `{"algorithm": {"matching_threshold": 4.5}, "packing": {"gutter": 3}}`,
	}
	dir := t.TempDir()
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Algorithm.MatchingThreshold != 4.5 || cfg.Packing.Gutter != 3 {
				t.Errorf("got matching %g gutter %d", cfg.Algorithm.MatchingThreshold, cfg.Packing.Gutter)
			}
			// unset keys keep their defaults
			if cfg.Algorithm.OffsetFactor != Default().Algorithm.OffsetFactor {
				t.Errorf("offset factor = %g", cfg.Algorithm.OffsetFactor)
			}
		})
	}
}

func TestLoadUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveOverrides(t *testing.T) {
	cfg := Default()
	m, tl, out := 7.0, 30.0, "result.obj"
	cfg.Resolve(Flags{Matching: &m, TimeLimit: &tl, Output: &out})
	if cfg.Algorithm.MatchingThreshold != 7 || cfg.Algorithm.TimeLimit != 30 || cfg.Output.Path != out {
		t.Fatalf("overrides not applied: %+v", cfg.Algorithm)
	}
	if cfg.Algorithm.BoundaryTolerance != Default().Algorithm.BoundaryTolerance {
		t.Error("nil flag changed a setting")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative matching", func(c *Config) { c.Algorithm.MatchingThreshold = -1 }, "matching"},
		{"boundary above one", func(c *Config) { c.Algorithm.BoundaryTolerance = 1.5 }, "boundary"},
		{"reduction above one", func(c *Config) { c.Algorithm.UVBorderLengthReduction = 2 }, "reduction"},
		{"negative time", func(c *Config) { c.Algorithm.TimeLimit = -1 }, "time limit"},
		{"zero gutter", func(c *Config) { c.Packing.Gutter = 0 }, "gutter"},
		{"sheet not pow2", func(c *Config) { c.Packing.MaxSheetSize = 1000 }, "power of two"},
		{"filter", func(c *Config) { c.Render.Filter = "sinc" }, "filter"},
		{"format", func(c *Config) { c.Output.TextureFormat = "gif" }, "format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#102030")
	if err != nil || c != (color.NRGBA{0x10, 0x20, 0x30, 0xff}) {
		t.Fatalf("ParseColor = %v, %v", c, err)
	}
	c, err = ParseColor("10203040")
	if err != nil || c != (color.NRGBA{0x10, 0x20, 0x30, 0x40}) {
		t.Fatalf("ParseColor = %v, %v", c, err)
	}
	if _, err := ParseColor("#12"); err == nil {
		t.Error("expected error for short color")
	}
	if _, err := ParseColor("#zzzzzz"); err == nil {
		t.Error("expected error for bad hex")
	}
}
