package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// HarmonicProfile returns the amplitudes of harmonics 1..harmonics of one
// waveform cycle. The cycle length must be a size the FFT planner accepts;
// harmonics beyond Nyquist are reported as zero.
func HarmonicProfile(cycle []float64, harmonics int) ([]float64, error) {
	n := len(cycle)
	if n < 4 {
		return nil, fmt.Errorf("cycle too short: %d", n)
	}
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	bins := make([]complex128, n/2+1)
	buf := append([]float64(nil), cycle...)
	plan.Forward(bins, buf)

	out := make([]float64, harmonics)
	for h := 1; h <= harmonics && h < len(bins); h++ {
		out[h-1] = 2 * cmplx.Abs(bins[h]) / float64(n)
	}
	return out, nil
}

// SignalProfile measures harmonics 1..harmonics of a recorded tone with
// fundamental f0. Hann-windowed frames are averaged and each harmonic takes
// the strongest bin within two bins of its nominal position.
func SignalProfile(samples []float64, sampleRate int, f0 float64, harmonics int) ([]float64, error) {
	const fftSize = 8192
	const hop = 4096
	if sampleRate <= 0 || f0 <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d or fundamental %.2f", sampleRate, f0)
	}
	if len(samples) < fftSize {
		return nil, fmt.Errorf("need at least %d samples, got %d", fftSize, len(samples))
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}

	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}
	bins := make([]complex128, fftSize/2+1)
	buf := make([]float64, fftSize)
	avg := make([]float64, fftSize/2+1)
	frames := 0
	for pos := 0; pos+fftSize <= len(samples); pos += hop {
		for i := range buf {
			buf[i] = samples[pos+i] * hann[i]
		}
		plan.Forward(bins, buf)
		for k := range avg {
			avg[k] += cmplx.Abs(bins[k])
		}
		frames++
	}

	// Hann coherent gain is 0.5.
	scale := 2 / (0.5 * float64(fftSize) * float64(frames))
	binHz := float64(sampleRate) / fftSize
	out := make([]float64, harmonics)
	for h := 1; h <= harmonics; h++ {
		center := int(math.Round(float64(h) * f0 / binHz))
		if center+2 >= len(avg) {
			break
		}
		best := 0.0
		for k := max(1, center-2); k <= center+2; k++ {
			best = math.Max(best, avg[k])
		}
		out[h-1] = best * scale
	}
	return out, nil
}

// ProfileDistance is the RMS difference in dB between two harmonic profiles,
// each normalized to its own strongest harmonic. Harmonics more than 60 dB
// down in both profiles are ignored.
func ProfileDistance(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	peakA, peakB := maxAbs(a[:n]), maxAbs(b[:n])
	if peakA <= 1e-12 && peakB <= 1e-12 {
		return 0
	}
	var sum float64
	count := 0
	for i := 0; i < n; i++ {
		da := relDB(a[i], peakA)
		db := relDB(b[i], peakB)
		if da < -60 && db < -60 {
			continue
		}
		d := math.Max(da, -60) - math.Max(db, -60)
		sum += d * d
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

func relDB(v, peak float64) float64 {
	if peak <= 1e-12 {
		return linToDB(0)
	}
	return linToDB(math.Abs(v) / peak)
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
