// Package config holds the tolerances and output settings of a
// defragmentation run. Values come from Default(), then an optional config
// file, then CLI flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all configurable settings.
type Config struct {
	Algorithm AlgorithmConfig `yaml:"algorithm" toml:"algorithm" json:"algorithm"`
	Packing   PackingConfig   `yaml:"packing" toml:"packing" json:"packing"`
	Render    RenderConfig    `yaml:"render" toml:"render" json:"render"`
	Output    OutputConfig    `yaml:"output" toml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" json:"logging"`
}

// AlgorithmConfig holds the merge tolerances (-m -b -d -g -u -a -t).
type AlgorithmConfig struct {
	MatchingThreshold         float64 `yaml:"matching_threshold" toml:"matching_threshold" json:"matching_threshold"`
	BoundaryTolerance         float64 `yaml:"boundary_tolerance" toml:"boundary_tolerance" json:"boundary_tolerance"`
	DistortionTolerance       float64 `yaml:"distortion_tolerance" toml:"distortion_tolerance" json:"distortion_tolerance"`
	GlobalDistortionThreshold float64 `yaml:"global_distortion_threshold" toml:"global_distortion_threshold" json:"global_distortion_threshold"`
	UVBorderLengthReduction   float64 `yaml:"uv_border_length_reduction" toml:"uv_border_length_reduction" json:"uv_border_length_reduction"`
	OffsetFactor              float64 `yaml:"offset_factor" toml:"offset_factor" json:"offset_factor"`
	TimeLimit                 float64 `yaml:"time_limit" toml:"time_limit" json:"time_limit"` // seconds, 0 = unbounded
	RotationStep              float64 `yaml:"rotation_step" toml:"rotation_step" json:"rotation_step"` // degrees
	ARAPIterations            int     `yaml:"arap_iterations" toml:"arap_iterations" json:"arap_iterations"`
}

// PackingConfig controls atlas sheet allocation.
type PackingConfig struct {
	Gutter       int `yaml:"gutter" toml:"gutter" json:"gutter"`
	MaxSheetSize int `yaml:"max_sheet_size" toml:"max_sheet_size" json:"max_sheet_size"`
	Granularity  int `yaml:"granularity" toml:"granularity" json:"granularity"`
	MaxSheets    int `yaml:"max_sheets" toml:"max_sheets" json:"max_sheets"` // 0 = unlimited
}

// RenderConfig controls texture resampling.
type RenderConfig struct {
	Filter     string `yaml:"filter" toml:"filter" json:"filter"` // nearest, linear, cubic
	Background string `yaml:"background" toml:"background" json:"background"` // #RRGGBBAA
	Dilation   int    `yaml:"dilation" toml:"dilation" json:"dilation"`
	Workers    int    `yaml:"workers" toml:"workers" json:"workers"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Path          string `yaml:"path" toml:"path" json:"path"`
	TextureFormat string `yaml:"texture_format" toml:"texture_format" json:"texture_format"` // png, webp
	Report        string `yaml:"report" toml:"report" json:"report"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level int    `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// Default returns the stock tolerances of the tool.
func Default() Config {
	return Config{
		Algorithm: AlgorithmConfig{
			MatchingThreshold:         2.0,
			BoundaryTolerance:         0.2,
			DistortionTolerance:       0.5,
			GlobalDistortionThreshold: 0.025,
			UVBorderLengthReduction:   0.0,
			OffsetFactor:              5.0,
			TimeLimit:                 0.0,
			RotationStep:              90,
			ARAPIterations:            10,
		},
		Packing: PackingConfig{
			Gutter:       2,
			MaxSheetSize: 16384,
			Granularity:  4,
		},
		Render: RenderConfig{
			Filter:     "linear",
			Background: "#00000000",
			Dilation:   2,
		},
		Output: OutputConfig{
			TextureFormat: "png",
		},
	}
}

// Load reads a config file on top of Default(). The format is chosen by
// extension: .yaml/.yml, .toml or .json.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config: unsupported format %s", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings. Nil
// pointers mean the flag was not given.
type Flags struct {
	Matching   *float64
	Boundary   *float64
	Distortion *float64
	Global     *float64
	Reduction  *float64
	Offset     *float64
	TimeLimit  *float64
	Output     *string
	Level      *int
	Workers    *int
	Format     *string
	Report     *string
}

// Resolve applies CLI overrides and fills in derived defaults.
func (c *Config) Resolve(flags Flags) {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&c.Algorithm.MatchingThreshold, flags.Matching)
	setF(&c.Algorithm.BoundaryTolerance, flags.Boundary)
	setF(&c.Algorithm.DistortionTolerance, flags.Distortion)
	setF(&c.Algorithm.GlobalDistortionThreshold, flags.Global)
	setF(&c.Algorithm.UVBorderLengthReduction, flags.Reduction)
	setF(&c.Algorithm.OffsetFactor, flags.Offset)
	setF(&c.Algorithm.TimeLimit, flags.TimeLimit)

	if flags.Output != nil && *flags.Output != "" {
		c.Output.Path = *flags.Output
	}
	if flags.Format != nil && *flags.Format != "" {
		c.Output.TextureFormat = *flags.Format
	}
	if flags.Report != nil && *flags.Report != "" {
		c.Output.Report = *flags.Report
	}
	if flags.Level != nil {
		c.Logging.Level = *flags.Level
	}
	if flags.Workers != nil && *flags.Workers > 0 {
		c.Render.Workers = *flags.Workers
	}

	if c.Render.Workers <= 0 {
		c.Render.Workers = runtime.NumCPU()
	}
	if c.Algorithm.RotationStep <= 0 {
		c.Algorithm.RotationStep = 90
	}
	if c.Algorithm.ARAPIterations <= 0 {
		c.Algorithm.ARAPIterations = 10
	}
	if c.Packing.Granularity <= 0 {
		c.Packing.Granularity = 1
	}
	if c.Render.Dilation < 0 {
		c.Render.Dilation = c.Packing.Gutter
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	a := c.Algorithm
	var errs []error
	if a.MatchingThreshold < 0 {
		errs = append(errs, fmt.Errorf("matching threshold must be non-negative, got %g", a.MatchingThreshold))
	}
	if a.BoundaryTolerance < 0 || a.BoundaryTolerance > 1 {
		errs = append(errs, fmt.Errorf("boundary tolerance must be in [0,1], got %g", a.BoundaryTolerance))
	}
	if a.DistortionTolerance < 0 {
		errs = append(errs, fmt.Errorf("distortion tolerance must be non-negative, got %g", a.DistortionTolerance))
	}
	if a.GlobalDistortionThreshold < 0 {
		errs = append(errs, fmt.Errorf("global distortion threshold must be non-negative, got %g", a.GlobalDistortionThreshold))
	}
	if a.UVBorderLengthReduction < 0 || a.UVBorderLengthReduction > 1 {
		errs = append(errs, fmt.Errorf("UV border reduction must be in [0,1], got %g", a.UVBorderLengthReduction))
	}
	if a.OffsetFactor < 0 {
		errs = append(errs, fmt.Errorf("offset factor must be non-negative, got %g", a.OffsetFactor))
	}
	if a.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("time limit must be non-negative, got %g", a.TimeLimit))
	}
	if c.Logging.Level < 0 {
		errs = append(errs, fmt.Errorf("logging level must be non-negative, got %d", c.Logging.Level))
	}
	p := c.Packing
	if p.Gutter < 1 {
		errs = append(errs, fmt.Errorf("gutter must be at least 1 pixel, got %d", p.Gutter))
	}
	if p.MaxSheetSize <= 0 || p.MaxSheetSize&(p.MaxSheetSize-1) != 0 {
		errs = append(errs, fmt.Errorf("max sheet size must be a power of two, got %d", p.MaxSheetSize))
	}
	switch c.Render.Filter {
	case "nearest", "linear", "cubic":
	default:
		errs = append(errs, fmt.Errorf("unknown filter %q", c.Render.Filter))
	}
	if _, err := ParseColor(c.Render.Background); err != nil {
		errs = append(errs, err)
	}
	switch c.Output.TextureFormat {
	case "png", "webp":
	default:
		errs = append(errs, fmt.Errorf("unknown texture format %q", c.Output.TextureFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
