// Package curve holds the freehand waveform representation and the
// preprocessing applied when a drawing gesture ends or a preset is loaded.
package curve

import "sort"

// Point is one drawn sample. X is the position within the cycle and Y the
// amplitude, both in [0,100]; Y=50 is the zero crossing.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is an ordered list of points. Points are expected roughly in X order,
// but duplicates and backtracking are tolerated.
type Curve []Point

// Clone returns an independent copy of c.
func (c Curve) Clone() Curve {
	if c == nil {
		return nil
	}
	out := make(Curve, len(c))
	copy(out, c)
	return out
}

// Sorted returns a copy of c ordered by X. Points sharing an X keep their
// drawing order.
func (c Curve) Sorted() Curve {
	out := c.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// Smooth applies a 3-tap moving average to the interior amplitudes.
// Endpoints are kept; curves shorter than 3 points are returned unchanged.
func Smooth(c Curve) Curve {
	if len(c) < 3 {
		return c
	}
	out := make(Curve, len(c))
	out[0] = c[0]
	for i := 1; i < len(c)-1; i++ {
		out[i] = Point{X: c[i].X, Y: (c[i-1].Y + c[i].Y + c[i+1].Y) / 3}
	}
	out[len(c)-1] = c[len(c)-1]
	return out
}

// Normalize rescales Y so the lowest point maps to 0 and the highest to 100.
// A flat (or empty) curve has no range to stretch and is returned unchanged.
func Normalize(c Curve) Curve {
	if len(c) == 0 {
		return c
	}
	minY, maxY := c[0].Y, c[0].Y
	for _, p := range c[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	span := maxY - minY
	if span == 0 {
		return c
	}
	out := make(Curve, len(c))
	for i, p := range c {
		out[i] = Point{X: p.X, Y: (p.Y - minY) / span * 100}
	}
	return out
}

// Prepare runs the end-of-gesture pipeline: smoothing, then normalization.
func Prepare(c Curve) Curve {
	return Normalize(Smooth(c))
}
