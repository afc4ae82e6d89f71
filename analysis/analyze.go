package analysis

import (
	"math"

	"github.com/cwbudde/algo-sketchsynth/curve"
)

// Complexity buckets a harmonic richness score.
type Complexity string

const (
	Low    Complexity = "Low"
	Medium Complexity = "Medium"
	High   Complexity = "High"
)

// Result holds the informational metrics for a drawn curve.
type Result struct {
	HarmonicRichness float64    `json:"harmonic_richness"`
	Complexity       Complexity `json:"complexity"`
	// FundamentalFreq is half the number of centre-line crossings. It counts
	// cycles across the drawing, not Hz.
	FundamentalFreq float64 `json:"fundamental_freq"`
}

// ClassifyRichness maps a richness score to its complexity bucket.
func ClassifyRichness(richness float64) Complexity {
	switch {
	case richness > 70:
		return High
	case richness > 30:
		return Medium
	default:
		return Low
	}
}

// Analyze scores a curve from the spread of its Y values and how often it
// crosses the centre line. Points are taken in the order given.
func Analyze(c curve.Curve) Result {
	if len(c) == 0 {
		return Result{Complexity: Low}
	}
	n := float64(len(c))

	var mean float64
	for _, p := range c {
		mean += p.Y
	}
	mean /= n

	var variance float64
	for _, p := range c {
		d := p.Y - mean
		variance += d * d
	}
	variance /= n

	crossings := 0
	for i := 1; i < len(c); i++ {
		if (c[i].Y-50)*(c[i-1].Y-50) < 0 {
			crossings++
		}
	}

	richness := math.Min(100, variance/100*50+float64(crossings)/n*50)
	return Result{
		HarmonicRichness: math.Floor(richness + 0.5),
		Complexity:       ClassifyRichness(richness),
		FundamentalFreq:  float64(crossings) / 2,
	}
}
