package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// DiffusionConfig controls the randomized impulse behind the diffusion stage.
type DiffusionConfig struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	// DecayPower shapes the envelope (1-i/n)^DecayPower.
	DecayPower float64
	// NormalizePeak rescales both channels to this peak. Zero leaves the
	// raw noise amplitude in [-1,1].
	NormalizePeak float64
	// FadeS applies a cosine fade over the tail end.
	FadeS float64
}

func DefaultDiffusionConfig() DiffusionConfig {
	return DiffusionConfig{
		SampleRate: 44100,
		DurationS:  2.0,
		Seed:       1,
		DecayPower: 2.0,
	}
}

func (c *DiffusionConfig) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.DecayPower <= 0 {
		return fmt.Errorf("decay power must be > 0")
	}
	if c.NormalizePeak < 0 {
		return fmt.Errorf("normalize peak must be >= 0")
	}
	if c.FadeS < 0 || c.FadeS > c.DurationS {
		return fmt.Errorf("fade must be within [0, duration]")
	}
	return nil
}

// GenerateDiffusion returns a stereo impulse of uniform noise under a
// polynomial decay. Each channel draws its own noise from one seeded source,
// left first, so equal configs always give equal impulses.
func GenerateDiffusion(cfg DiffusionConfig) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	left := decayingNoise(rng, n, cfg.DecayPower)
	right := decayingNoise(rng, n, cfg.DecayPower)

	applyFadeOut(left, cfg.FadeS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeS, cfg.SampleRate)

	if cfg.NormalizePeak > 0 {
		peak := math.Max(maxAbs(left), maxAbs(right))
		if peak > 0 {
			g := cfg.NormalizePeak / peak
			for i := range left {
				left[i] *= g
				right[i] *= g
			}
		}
	}
	return toFloat32(left), toFloat32(right), nil
}

func decayingNoise(rng *rand.Rand, n int, power float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		env := math.Pow(1-float64(i)/float64(n), power)
		out[i] = (rng.Float64()*2 - 1) * env
	}
	return out
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		a := math.Abs(v)
		if a > m {
			m = a
		}
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(buf) {
		fadeSamples = len(buf)
	}
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}

func toFloat32(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}
