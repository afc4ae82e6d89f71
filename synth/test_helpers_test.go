package synth

import (
	"context"
	"math"
	"testing"
)

const testSampleRate = 44100

// newTestEngine returns a started engine with a short diffusion impulse.
func newTestEngine(t *testing.T, sampleRate int) *Engine {
	t.Helper()
	e, err := NewEngine(sampleRate, WithDiffusion(0.05, 7))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(context.Background(), Offline{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func leftChannel(stereo []float32) []float32 {
	out := make([]float32, len(stereo)/2)
	for i := range out {
		out[i] = stereo[2*i]
	}
	return out
}

// zeroCrossingHz estimates the pitch of a periodic signal from its sign
// changes, skipping the first tenth where the attack is still running.
func zeroCrossingHz(samples []float32, sampleRate int) float64 {
	skip := len(samples) / 10
	body := samples[skip:]
	changes := 0
	for i := 1; i < len(body); i++ {
		if (body[i-1] < 0) != (body[i] < 0) {
			changes++
		}
	}
	seconds := float64(len(body)) / float64(sampleRate)
	return float64(changes) / 2 / seconds
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// dftMagnitudeAt correlates samples against a complex tone at freq.
func dftMagnitudeAt(samples []float32, sampleRate int, freq float64) float64 {
	var re, im float64
	for i, s := range samples {
		phase := -2.0 * math.Pi * freq * float64(i) / float64(sampleRate)
		re += float64(s) * math.Cos(phase)
		im += float64(s) * math.Sin(phase)
	}
	return math.Hypot(re, im) / float64(len(samples))
}

func hasNonFinite(samples []float32) bool {
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return true
		}
	}
	return false
}
