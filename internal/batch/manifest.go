package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest is the JSON summary of a batch run.
type Manifest struct {
	Created   time.Time `json:"created"`
	Meshes    int       `json:"meshes"`
	Succeeded int       `json:"succeeded"`
	Results   []Result  `json:"results"`
}

// WriteManifest writes the results of a run to path.
func WriteManifest(path string, results []Result) error {
	man := Manifest{
		Created: time.Now().UTC(),
		Meshes:  len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			man.Succeeded++
		}
	}

	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("batch: write manifest: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
