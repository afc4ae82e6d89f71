package analysis

import (
	"testing"

	"github.com/cwbudde/algo-sketchsynth/curve"
)

func ys(values ...float64) curve.Curve {
	c := make(curve.Curve, len(values))
	for i, y := range values {
		c[i] = curve.Point{X: float64(i) * 100 / float64(max(1, len(values)-1)), Y: y}
	}
	return c
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name        string
		in          curve.Curve
		richness    float64
		complexity  Complexity
		fundamental float64
	}{
		{"empty", nil, 0, Low, 0},
		{"flat", ys(50, 50, 50, 50), 0, Low, 0},
		{"zigzag", ys(40, 60, 40, 60), 88, High, 1.5},
		{"gentle", ys(45, 55), 38, Medium, 0.5},
		{"no crossing", ys(50, 60), 13, Low, 0},
		{"square", curve.Square(), 100, High, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.in)
			if got.HarmonicRichness != tt.richness || got.Complexity != tt.complexity || got.FundamentalFreq != tt.fundamental {
				t.Fatalf("Analyze() = %+v, want richness=%v complexity=%s fundamental=%v",
					got, tt.richness, tt.complexity, tt.fundamental)
			}
		})
	}
}

func TestAnalyzeRichnessIsBounded(t *testing.T) {
	for _, name := range curve.PresetNames() {
		c, err := curve.Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		for _, in := range []curve.Curve{c, curve.Prepare(c)} {
			r := Analyze(in)
			if r.HarmonicRichness < 0 || r.HarmonicRichness > 100 || r.FundamentalFreq < 0 {
				t.Fatalf("%s: out-of-range result %+v", name, r)
			}
		}
	}
}

func TestClassifyRichnessThresholds(t *testing.T) {
	tests := []struct {
		richness float64
		want     Complexity
	}{
		{0, Low},
		{30, Low},
		{30.5, Medium},
		{70, Medium},
		{70.01, High},
		{100, High},
	}
	for _, tt := range tests {
		if got := ClassifyRichness(tt.richness); got != tt.want {
			t.Fatalf("ClassifyRichness(%v) = %s, want %s", tt.richness, got, tt.want)
		}
	}
}

func TestAnalyzeUsesPointOrder(t *testing.T) {
	ordered := Analyze(curve.Curve{{X: 0, Y: 40}, {X: 50, Y: 60}, {X: 100, Y: 40}})
	shuffled := Analyze(curve.Curve{{X: 0, Y: 40}, {X: 100, Y: 40}, {X: 50, Y: 60}})
	if ordered.FundamentalFreq != 1 || shuffled.FundamentalFreq != 0.5 {
		t.Fatalf("crossings should follow the stored order: %+v %+v", ordered, shuffled)
	}
}
