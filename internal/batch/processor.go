// Package batch defragments several meshes with a worker pool.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"texdefrag/internal/config"
	"texdefrag/internal/defrag"
	"texdefrag/internal/meshio"
)

// Config holds all shared resources for a batch run.
type Config struct {
	Settings config.Config
	Workers  int
	Log      *zap.Logger

	// Progress is the interval of progress log lines; 0 selects 2s.
	Progress time.Duration
}

// Result holds the outcome of processing one mesh.
type Result struct {
	Input   string         `json:"input"`
	Output  string         `json:"output,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Report  *defrag.Report `json:"report,omitempty"`
	Seconds float64        `json:"seconds"`
}

// Run processes all inputs using a worker pool. Results are returned in
// input order.
func Run(ctx context.Context, cfg Config, inputs []string) []Result {
	total := len(inputs)
	results := make([]Result, total)
	var processed atomic.Int64
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	interval := cfg.Progress
	if interval <= 0 {
		interval = 2 * time.Second
	}

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					log.Info("Progress",
						zap.Int64("done", p),
						zap.Int("total", total),
						zap.Float64("meshes_per_sec", float64(p)/elapsed))
				}
			}
		}
	}()

	// Worker pool
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = processMesh(ctx, cfg, log, inputs[idx], total > 1)
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range inputs {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(done)

	return results
}

func processMesh(ctx context.Context, cfg Config, log *zap.Logger, input string, many bool) Result {
	start := time.Now()
	res := Result{Input: input}
	log = log.With(zap.String("mesh", input))

	fail := func(err error) Result {
		res.Error = err.Error()
		res.Seconds = time.Since(start).Seconds()
		log.Error("Mesh failed", zap.Error(err))
		return res
	}

	log.Info("Loading mesh")
	m, tex, _, err := meshio.LoadMesh(input, log)
	if err != nil {
		return fail(err)
	}

	rep, sheets, err := defrag.Run(ctx, m, tex, cfg.Settings, log)
	if err != nil {
		return fail(err)
	}
	res.Report = rep

	out := cfg.Settings.Output.Path
	if many {
		// A fixed output name only makes sense for a single input.
		out = ""
	}
	res.Output = meshio.OutputName(input, out)
	log.Info("Saving mesh file...", zap.String("output", res.Output))
	if err := meshio.SaveMesh(res.Output, m, sheets, meshio.SaveOptions{TextureFormat: cfg.Settings.Output.TextureFormat}); err != nil {
		return fail(err)
	}

	res.Success = true
	res.Seconds = time.Since(start).Seconds()
	log.Info("Processing finished", zap.Float64("seconds", res.Seconds))
	return res
}

// Failed returns the number of unsuccessful results and the first error.
func Failed(results []Result) (int, error) {
	n := 0
	var first error
	for _, r := range results {
		if r.Success {
			continue
		}
		n++
		if first == nil {
			first = errors.New(r.Input + ": " + r.Error)
		}
	}
	return n, first
}
