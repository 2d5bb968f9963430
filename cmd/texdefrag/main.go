package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"texdefrag/internal/batch"
	"texdefrag/internal/config"
	"texdefrag/internal/logger"
)

const usageText = `Usage: texdefrag MESHFILE... [options]

Merges the texture atlas charts of textured triangle meshes, then packs and
resamples a new atlas. Output goes to out_<MESHFILE> unless -o is given.

Options:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options are the parsed command line.
type options struct {
	flags  config.Flags
	config string
	jobs   int
	inputs []string
}

func newFlagSet(stderr io.Writer, opts *options) (*flag.FlagSet, func()) {
	fs := flag.NewFlagSet("texdefrag", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	d := config.Default()
	m := fs.Float64("m", d.Algorithm.MatchingThreshold, "Matching error tolerance when attempting merge operations")
	b := fs.Float64("b", d.Algorithm.BoundaryTolerance, "Maximum tolerance on the seam-to-chart boundary ratio")
	dist := fs.Float64("d", d.Algorithm.DistortionTolerance, "Local ARAP distortion tolerance when performing merge operations")
	g := fs.Float64("g", d.Algorithm.GlobalDistortionThreshold, "Global ARAP distortion tolerance")
	u := fs.Float64("u", d.Algorithm.UVBorderLengthReduction, "UV border reduction target in percentage relative to the input")
	a := fs.Float64("a", d.Algorithm.OffsetFactor, "Alpha parameter to control the UV optimization area size")
	t := fs.Float64("t", d.Algorithm.TimeLimit, "Time-limit for the atlas clustering (seconds)")
	o := fs.String("o", "", "Output mesh file. Supported formats are obj, gltf and glb")
	l := fs.Int("l", 0, "Logging level. 0 for minimal verbosity, 1 for verbose output, 2 for debug output")
	workers := fs.Int("workers", 0, "Render worker goroutines (default: NumCPU)")
	format := fs.String("format", "", "Texture file format for obj output: png or webp")
	report := fs.String("report", "", "Write a JSON report of all processed meshes")
	fs.StringVar(&opts.config, "config", "", "Config file (yaml, toml or json)")
	fs.IntVar(&opts.jobs, "jobs", 1, "Meshes processed concurrently")

	// Only flags given on the command line override the config file.
	collect := func() {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "m":
				opts.flags.Matching = m
			case "b":
				opts.flags.Boundary = b
			case "d":
				opts.flags.Distortion = dist
			case "g":
				opts.flags.Global = g
			case "u":
				opts.flags.Reduction = u
			case "a":
				opts.flags.Offset = a
			case "t":
				opts.flags.TimeLimit = t
			case "o":
				opts.flags.Output = o
			case "l":
				opts.flags.Level = l
			case "workers":
				opts.flags.Workers = workers
			case "format":
				opts.flags.Format = format
			case "report":
				opts.flags.Report = report
			}
		})
	}
	return fs, collect
}

// parseArgs parses the command line. Flags may follow the mesh files.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs, collect := newFlagSet(stderr, opts)
	if err := fs.Parse(reorderArgs(fs, args)); err != nil {
		return nil, err
	}
	collect()
	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 {
		fs.Usage()
		return nil, fmt.Errorf("no input mesh")
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	cfg := config.Default()
	if opts.config != "" {
		if cfg, err = config.Load(opts.config); err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	cfg.Resolve(opts.flags)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.File)
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results := batch.Run(ctx, batch.Config{
		Settings: cfg,
		Workers:  opts.jobs,
		Log:      log,
	}, opts.inputs)

	if cfg.Output.Report != "" {
		if err := batch.WriteManifest(cfg.Output.Report, results); err != nil {
			log.Error("Report not written", zap.Error(err))
		}
	}

	failed, first := batch.Failed(results)
	log.Info("Processing took", zap.Float64("seconds", time.Since(start).Seconds()))
	if failed > 0 {
		log.Error("Some meshes failed",
			zap.Int("failed", failed),
			zap.Int("total", len(results)),
			zap.Error(first))
		return 1
	}
	return 0
}
