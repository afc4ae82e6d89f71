package synth

import (
	"math"
	"reflect"
	"testing"

	"github.com/cwbudde/algo-sketchsynth/curve"
)

func TestNoteFrequency(t *testing.T) {
	tests := []struct {
		name     string
		expected float64
		tol      float64
	}{
		{"A4", 440.0, 1.0},
		{"A3", 220.0, 0.5},
		{"C4", 261.63, 1.0},
		{"Bb5", 932.33, 3.0},
		{"a#5", 932.33, 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NoteFrequency(tt.name)
			if err != nil {
				t.Fatalf("NoteFrequency(%q): %v", tt.name, err)
			}
			if math.Abs(got-tt.expected) > tt.tol {
				t.Fatalf("NoteFrequency(%q) = %.2f, want %.2f", tt.name, got, tt.expected)
			}
		})
	}
	for _, bad := range []string{"", "H4", "C", "4", "C99"} {
		if _, err := NoteFrequency(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got := NoteName(69); got != "A4" {
		t.Fatalf("NoteName(69) = %q, want A4", got)
	}
}

func TestResampleEdgeCases(t *testing.T) {
	if got := Resample(nil, 8); !reflect.DeepEqual(got, make([]float64, 8)) {
		t.Fatalf("empty curve should resample to zeros, got %v", got)
	}

	single := Resample(curve.Curve{{X: 40, Y: 75}}, 4)
	for i, v := range single {
		if v != 0.5 {
			t.Fatalf("single point: sample %d = %f, want 0.5", i, v)
		}
	}

	// Outside the drawn range the nearest endpoint holds.
	ramp := Resample(curve.Curve{{X: 80, Y: 0}, {X: 20, Y: 100}}, 10)
	if ramp[0] != 1 || ramp[9] != -1 || math.Abs(ramp[5]) > 1e-12 {
		t.Fatalf("ramp: got %v", ramp)
	}

	// A vertical pair takes its first point's value.
	step := Resample(curve.Curve{{X: 50, Y: 80}, {X: 50, Y: 20}}, 10)
	if math.Abs(step[5]-0.6) > 1e-12 || math.Abs(step[0]-0.6) > 1e-12 || math.Abs(step[9]+0.6) > 1e-12 {
		t.Fatalf("vertical pair: got %v", step)
	}
}

func TestSineRoundTripIsFundamentalDominant(t *testing.T) {
	tone := RebuildTone(curve.Sine())
	h1 := tone.Magnitude(1)
	if h1 < 0.5 {
		t.Fatalf("fundamental too weak: %f", h1)
	}
	for h := 2; h <= Harmonics; h++ {
		if m := tone.Magnitude(h); m > 0.02*h1 {
			t.Fatalf("harmonic %d = %f exceeds 2%% of fundamental %f", h, m, h1)
		}
	}
	if tone.Real[0] != 0 || tone.Imag[0] != 0 {
		t.Fatalf("DC must stay zero")
	}
}

func TestSquareHasOddHarmonics(t *testing.T) {
	tone := RebuildTone(curve.Square())
	h1, h2, h3 := tone.Magnitude(1), tone.Magnitude(2), tone.Magnitude(3)
	if h2 >= 0.1*h1 {
		t.Fatalf("square h2=%f should be < 0.1*h1=%f", h2, 0.1*h1)
	}
	if h3 <= 0.2*h1 {
		t.Fatalf("square h3=%f should be > 0.2*h1=%f", h3, 0.2*h1)
	}
}

func TestHarmonicBoost(t *testing.T) {
	if HarmonicBoost(1) != 1.5 || HarmonicBoost(7) != 1.5 {
		t.Fatalf("low harmonics should be boosted by 1.5")
	}
	if math.Abs(HarmonicBoost(8)-math.Sqrt(1.5)) > 1e-12 {
		t.Fatalf("upper harmonics should be boosted by sqrt(1.5)")
	}
}

func TestRebuildToneIsDeterministicAndPure(t *testing.T) {
	c := curve.Complex()
	before := c.Clone()
	a := RebuildTone(c)
	b := RebuildTone(c)
	if !reflect.DeepEqual(a.Real, b.Real) || !reflect.DeepEqual(a.Imag, b.Imag) {
		t.Fatalf("RebuildTone must be deterministic")
	}
	if !reflect.DeepEqual(c, before) {
		t.Fatalf("RebuildTone must not modify its curve")
	}
}

func TestWavetablesAreBandLimitedAndNormalized(t *testing.T) {
	tone := RebuildTone(curve.Square())
	full := tone.Wavetable(Harmonics)
	peak := 0.0
	for _, v := range full {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if math.Abs(peak-1) > 1e-4 {
		t.Fatalf("full table peak = %f, want 1", peak)
	}

	// One harmonic is a pure sinusoid.
	one := tone.Wavetable(1)
	amp := tone.Magnitude(1) / maxAbsCoeffSum(tone)
	for i, v := range one {
		phase := 2 * math.Pi * float64(i) / TableSize
		want := (tone.Real[1]*math.Cos(phase) + tone.Imag[1]*math.Sin(phase)) / maxAbsCoeffSum(tone)
		if math.Abs(float64(v)-want) > 1e-3 || math.Abs(float64(v)) > amp+1e-3 {
			t.Fatalf("table(1)[%d] = %f, want %f", i, v, want)
		}
	}

	if len(tone.Wavetable(0)) != TableSize || len(tone.Wavetable(99)) != TableSize {
		t.Fatalf("out-of-range harmonic counts must clamp")
	}
}

// maxAbsCoeffSum recomputes the full table's peak from the coefficients.
func maxAbsCoeffSum(tone *ToneTable) float64 {
	peak := 0.0
	for i := 0; i < TableSize; i++ {
		v := 0.0
		for h := 1; h <= Harmonics; h++ {
			phase := 2 * math.Pi * float64(h*i) / TableSize
			v += tone.Real[h]*math.Cos(phase) + tone.Imag[h]*math.Sin(phase)
		}
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

func TestDefaultToneIsSawtooth(t *testing.T) {
	tone := DefaultToneTable()
	if rms(tone.Wavetable(Harmonics)) < 0.1 {
		t.Fatalf("default tone must not be silent")
	}
	for h := 1; h <= 4; h++ {
		want := 2 / (math.Pi * float64(h))
		if math.Abs(tone.Magnitude(h)-want) > 1e-12 {
			t.Fatalf("harmonic %d magnitude = %f, want %f", h, tone.Magnitude(h), want)
		}
	}
	if len(tone.Cycle) != CycleSize {
		t.Fatalf("default cycle length = %d", len(tone.Cycle))
	}
}

func TestFlatCurveGivesSilentButValidTone(t *testing.T) {
	tone := RebuildTone(curve.Curve{{X: 0, Y: 50}, {X: 100, Y: 50}})
	for _, v := range tone.Wavetable(Harmonics) {
		if v != 0 {
			t.Fatalf("flat curve should produce a silent table")
		}
	}
}
