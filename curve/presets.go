package curve

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// ErrUnknownPreset is returned by Preset for names that have no generator.
var ErrUnknownPreset = errors.New("unknown preset")

var presets = map[string]func() Curve{
	"sine":     Sine,
	"square":   Square,
	"sawtooth": Sawtooth,
	"triangle": Triangle,
	"noise":    func() Curve { return Noise(1) },
	"pulse":    Pulse,
	"complex":  Complex,
	"bass":     Bass,
}

// PresetNames lists the built-in shapes in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset generates the named built-in shape.
func Preset(name string) (Curve, error) {
	gen, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return gen(), nil
}

func sampled(step float64, fn func(x float64) float64) Curve {
	c := make(Curve, 0, int(100/step)+1)
	for x := 0.0; x <= 100; x += step {
		c = append(c, Point{X: x, Y: fn(x)})
	}
	return c
}

func clampY(y float64) float64 {
	return math.Max(10, math.Min(90, y))
}

// Sine is a single sine cycle with 40% swing.
func Sine() Curve {
	return sampled(2, func(x float64) float64 {
		return 50 + 40*math.Sin(x/100*2*math.Pi)
	})
}

// Square is low for the first half of the cycle and high for the second.
func Square() Curve {
	return sampled(1, func(x float64) float64 {
		if x < 50 {
			return 20
		}
		return 80
	})
}

// Sawtooth rises linearly over the whole cycle.
func Sawtooth() Curve {
	return sampled(2, func(x float64) float64 {
		return 20 + x/100*60
	})
}

// Triangle rises for half a cycle and falls for the other half.
func Triangle() Curve {
	return sampled(2, func(x float64) float64 {
		if x <= 50 {
			return 20 + x/50*60
		}
		return 80 - (x-50)/50*60
	})
}

// Pulse is high for the first quarter of the cycle.
func Pulse() Curve {
	return sampled(1, func(x float64) float64 {
		if x < 25 {
			return 80
		}
		return 20
	})
}

// Complex mixes the first three harmonics.
func Complex() Curve {
	return sampled(2, func(x float64) float64 {
		ph := x / 100 * 2 * math.Pi
		return clampY(50 + 25*(math.Sin(ph)+0.5*math.Sin(2*ph)+0.3*math.Sin(3*ph)))
	})
}

// Bass adds a half-cycle sub component under the fundamental.
func Bass() Curve {
	return sampled(2, func(x float64) float64 {
		ph := x / 100 * 2 * math.Pi
		return clampY(50 + 30*(math.Sin(ph)+0.7*math.Sin(ph/2)))
	})
}

// Noise draws random amplitudes every third step. The seed makes the shape
// reproducible.
func Noise(seed int64) Curve {
	rng := rand.New(rand.NewSource(seed))
	return sampled(3, func(float64) float64 {
		return 20 + rng.Float64()*60
	})
}
