package synth

import (
	"math"

	"github.com/cwbudde/algo-sketchsynth/curve"
)

// Tone table geometry.
const (
	CycleSize = 1024 // samples in the resampled drawing
	Harmonics = 32   // harmonic pairs kept per table
	TableSize = 2048 // samples in each playback wavetable
)

// ToneTable is one waveform cycle plus its harmonic description. It is
// immutable once built and may be shared by any number of voices.
type ToneTable struct {
	// Cycle is the resampled drawing in [-1,1].
	Cycle []float64
	// Real and Imag hold the cosine and sine coefficients, indexed by
	// harmonic number. Index 0 (DC) is always zero.
	Real []float64
	Imag []float64

	// tables[k-1] is the cycle rebuilt from harmonics 1..k.
	tables [][]float32
}

// Magnitude returns the amplitude of harmonic h (1..Harmonics).
func (t *ToneTable) Magnitude(h int) float64 {
	if h < 1 || h >= len(t.Real) {
		return 0
	}
	return math.Hypot(t.Real[h], t.Imag[h])
}

// Wavetable returns the playback cycle limited to the first maxHarmonic
// harmonics, clamped to [1, Harmonics].
func (t *ToneTable) Wavetable(maxHarmonic int) []float32 {
	if maxHarmonic < 1 {
		maxHarmonic = 1
	}
	if maxHarmonic > len(t.tables) {
		maxHarmonic = len(t.tables)
	}
	return t.tables[maxHarmonic-1]
}

// tableFor picks the richest wavetable that stays below Nyquist at freq.
func (t *ToneTable) tableFor(freq float64, sampleRate int) []float32 {
	return t.Wavetable(int(0.5 * float64(sampleRate) / freq))
}

// HarmonicBoost is the perceptual emphasis applied to harmonic h. Low
// harmonics are lifted more than the upper ones so drawn shapes sound
// clearly different from each other.
func HarmonicBoost(h int) float64 {
	if h < 8 {
		return 1.5
	}
	return math.Sqrt(1.5)
}

// Resample maps a curve onto n evenly spaced cycle positions. Each position
// interpolates linearly between the first pair of points bracketing it;
// positions outside the drawn range take the nearest endpoint. Output
// amplitudes are in [-1,1].
func Resample(c curve.Curve, n int) []float64 {
	out := make([]float64, n)
	if len(c) == 0 || n <= 0 {
		return out
	}
	pts := c.Sorted()
	first, last := pts[0], pts[len(pts)-1]
	for i := range out {
		x := float64(i) / float64(n) * 100
		p1, p2 := first, last
		for j := 0; j < len(pts)-1; j++ {
			if pts[j].X <= x && pts[j+1].X >= x {
				p1, p2 = pts[j], pts[j+1]
				break
			}
		}
		var y float64
		switch {
		case x < first.X:
			y = first.Y
		case x > last.X:
			y = last.Y
		case p1.X == p2.X:
			y = p1.Y
		default:
			t := (x - p1.X) / (p2.X - p1.X)
			y = p1.Y + t*(p2.Y-p1.Y)
		}
		out[i] = (y - 50) / 50
	}
	return out
}

// ExtractHarmonics correlates the cycle against cosine and sine at each
// harmonic 1..Harmonics with a direct DFT sum, scales by 1/N and applies
// HarmonicBoost. The returned slices are indexed by harmonic number.
func ExtractHarmonics(cycle []float64) (real, imag []float64) {
	real = make([]float64, Harmonics+1)
	imag = make([]float64, Harmonics+1)
	n := len(cycle)
	if n == 0 {
		return real, imag
	}
	for h := 1; h <= Harmonics; h++ {
		var re, im float64
		for i, x := range cycle {
			angle := 2 * math.Pi * float64(h*i) / float64(n)
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		boost := HarmonicBoost(h)
		real[h] = re / float64(n) * boost
		imag[h] = im / float64(n) * boost
	}
	return real, imag
}

// RebuildTone converts a drawn curve into a new ToneTable. The curve is
// read, never modified.
func RebuildTone(c curve.Curve) *ToneTable {
	cycle := Resample(c, CycleSize)
	real, imag := ExtractHarmonics(cycle)
	return newToneTable(cycle, real, imag)
}

// DefaultToneTable is the sawtooth used before any curve has been drawn.
func DefaultToneTable() *ToneTable {
	real := make([]float64, Harmonics+1)
	imag := make([]float64, Harmonics+1)
	for h := 1; h <= Harmonics; h++ {
		sign := 1.0
		if h%2 == 0 {
			sign = -1.0
		}
		imag[h] = sign * 2 / (math.Pi * float64(h))
	}
	t := newToneTable(nil, real, imag)
	full := t.Wavetable(Harmonics)
	t.Cycle = make([]float64, CycleSize)
	for i := range t.Cycle {
		t.Cycle[i] = float64(full[i*TableSize/CycleSize])
	}
	return t
}

var defaultTone = DefaultToneTable()

// newToneTable synthesizes the band-limited playback tables. All tables share
// one scale factor, chosen so the full table peaks at 1.
func newToneTable(cycle, real, imag []float64) *ToneTable {
	acc := make([]float64, TableSize)
	partial := make([][]float64, Harmonics)
	for h := 1; h <= Harmonics; h++ {
		re, im := real[h], imag[h]
		if re != 0 || im != 0 {
			for i := range acc {
				angle := 2 * math.Pi * float64(h*i) / TableSize
				acc[i] += re*math.Cos(angle) + im*math.Sin(angle)
			}
		}
		partial[h-1] = append([]float64(nil), acc...)
	}

	peak := 0.0
	for _, v := range acc {
		peak = math.Max(peak, math.Abs(v))
	}
	scale := 1.0
	if peak > 1e-12 {
		scale = 1 / peak
	}

	tables := make([][]float32, Harmonics)
	for k, p := range partial {
		tbl := make([]float32, TableSize)
		for i, v := range p {
			tbl[i] = float32(v * scale)
		}
		tables[k] = tbl
	}
	return &ToneTable{Cycle: cycle, Real: real, Imag: imag, tables: tables}
}
