package defrag

import (
	"go.uber.org/zap"
)

// Report holds the metrics of one run. Lengths are in texels, resolutions
// in megapixels and durations in seconds.
type Report struct {
	Mesh string `json:"mesh"`

	InputVert     int `json:"input_vert"`
	InputVertDup  int `json:"input_vert_dup"`
	OutputVertDup int `json:"output_vert_dup"`

	InputCharts  int     `json:"input_charts"`
	OutputCharts int     `json:"output_charts"`
	InputUVLen   float64 `json:"input_uv_len"`
	OutputUVLen  float64 `json:"output_uv_len"`

	InputMP                float64 `json:"input_mp"`
	OutputMP               float64 `json:"output_mp"`
	RelativeMPChange       float64 `json:"relative_mp_change"`
	ZeroResamplingFraction float64 `json:"zero_resampling_fraction"`

	Merges            int            `json:"merges"`
	Rejected          map[string]int `json:"rejected,omitempty"`
	Outcome           string         `json:"outcome"`
	Sheets            int            `json:"sheets"`
	MirroredCharts    int            `json:"mirrored_charts"`
	AnchoredCharts    int            `json:"anchored_charts"`
	MisalignedAnchors int            `json:"misaligned_anchors"`
	DilatedTexels     int            `json:"dilated_texels"`

	Timings Timings `json:"timings"`
}

// Timings records the wall time of each stage.
type Timings struct {
	Prepare  float64 `json:"prepare"`
	Optimize float64 `json:"optimize"`
	Pack     float64 `json:"pack"`
	Render   float64 `json:"render"`
	Total    float64 `json:"total"`
}

// Log writes the report, one metric per line.
func (r *Report) Log(log *zap.Logger) {
	log.Info("InputVert", zap.Int("value", r.InputVert))
	log.Info("InputVertDup", zap.Int("value", r.InputVertDup))
	log.Info("OutputVertDup", zap.Int("value", r.OutputVertDup))
	log.Info("InputCharts", zap.Int("value", r.InputCharts))
	log.Info("OutputCharts", zap.Int("value", r.OutputCharts))
	log.Info("InputUVLen", zap.Float64("value", r.InputUVLen))
	log.Info("OutputUVLen", zap.Float64("value", r.OutputUVLen))
	log.Info("InputMP", zap.Float64("value", r.InputMP))
	log.Info("OutputMP", zap.Float64("value", r.OutputMP))
	log.Info("RelativeMPChange", zap.Float64("value", r.RelativeMPChange))
	log.Info("ZeroResamplingFraction", zap.Float64("value", r.ZeroResamplingFraction))
}
