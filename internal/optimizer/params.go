// Package optimizer runs the greedy chart merging loop over a chart graph.
package optimizer

import (
	"time"

	"texdefrag/internal/config"
)

// Params are the read-only tolerances of one optimization run.
type Params struct {
	MatchingThreshold         float64 // max RMS seam misalignment, texels
	BoundaryTolerance         float64 // max fraction of the merged border allowed to move
	DistortionTolerance       float64 // max local ARAP energy of the re-optimized region
	GlobalDistortionThreshold float64 // max area-weighted ARAP energy increase of the atlas
	UVReduction               float64 // stop once the border shrank by this fraction, 0 = off
	OffsetFactor              float64 // free region growth, in units of the smaller chart's area
	TimeLimit                 time.Duration
	ARAPIterations            int

	// Score ranks merge candidates; nil selects DefaultScore.
	Score ScoreFunc
}

// ParamsFromConfig converts the algorithm section of a config.
func ParamsFromConfig(c config.AlgorithmConfig) Params {
	return Params{
		MatchingThreshold:         c.MatchingThreshold,
		BoundaryTolerance:         c.BoundaryTolerance,
		DistortionTolerance:       c.DistortionTolerance,
		GlobalDistortionThreshold: c.GlobalDistortionThreshold,
		UVReduction:               c.UVBorderLengthReduction,
		OffsetFactor:              c.OffsetFactor,
		TimeLimit:                 time.Duration(c.TimeLimit * float64(time.Second)),
		ARAPIterations:            c.ARAPIterations,
	}
}

func (p Params) score() ScoreFunc {
	if p.Score == nil {
		return DefaultScore
	}
	return p.Score
}
