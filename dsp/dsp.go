// Package dsp holds the small per-sample building blocks the synth graph is
// made of: a retunable biquad, a fractional delay line, cubic table lookup
// and a one-pole parameter smoother.
package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// FilterKind selects the response of a Biquad designed with Design.
type FilterKind int

const (
	Lowpass FilterKind = iota
	Highpass
	Bandpass
	Notch
)

// minQ keeps alpha finite when a caller asks for zero resonance.
const minQ = 0.0001

// Coefficients are normalized biquad coefficients (a0 == 1).
type Coefficients struct {
	B0, B1, B2 float32
	A1, A2     float32
}

// Biquad is a direct-form-I second-order section. Process does not allocate.
type Biquad struct {
	c Coefficients

	xPrev, xPrev2 float32
	yPrev, yPrev2 float32
}

// NewBiquad returns a filter running the given coefficients from silence.
func NewBiquad(c Coefficients) *Biquad {
	return &Biquad{c: c}
}

// Process filters one sample.
func (b *Biquad) Process(x float32) float32 {
	c := &b.c
	y := c.B0*x + c.B1*b.xPrev + c.B2*b.xPrev2 - c.A1*b.yPrev - c.A2*b.yPrev2
	y = float32(dspcore.FlushDenormals(float64(y)))

	b.xPrev2, b.xPrev = b.xPrev, x
	b.yPrev2, b.yPrev = b.yPrev, y
	return y
}

// Coefficients returns the active coefficient set.
func (b *Biquad) Coefficients() Coefficients { return b.c }

// SetCoefficients swaps the coefficients and keeps the history.
func (b *Biquad) SetCoefficients(c Coefficients) { b.c = c }

// Redesign recomputes the coefficients for a new response in place.
func (b *Biquad) Redesign(kind FilterKind, cutoff, sampleRate, q float32) {
	b.c = DesignCoefficients(kind, cutoff, sampleRate, q)
}

// Reset zeroes the history.
func (b *Biquad) Reset() {
	b.xPrev, b.xPrev2 = 0, 0
	b.yPrev, b.yPrev2 = 0, 0
}

// Design returns a biquad of the given kind.
func Design(kind FilterKind, cutoff, sampleRate, q float32) *Biquad {
	return NewBiquad(DesignCoefficients(kind, cutoff, sampleRate, q))
}

// NewLowpass is Design(Lowpass, ...).
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	return Design(Lowpass, cutoff, sampleRate, q)
}

// DesignCoefficients computes RBJ cookbook coefficients. Unknown kinds fall
// back to lowpass.
func DesignCoefficients(kind FilterKind, cutoff, sampleRate, q float32) Coefficients {
	q = max(q, minQ)
	w0 := 2 * math.Pi * float64(cutoff) / float64(sampleRate)
	sin, cos := math.Sincos(w0)
	alpha := sin / (2 * float64(q))

	var num [3]float64
	switch kind {
	case Highpass:
		num = [3]float64{(1 + cos) / 2, -(1 + cos), (1 + cos) / 2}
	case Bandpass:
		num = [3]float64{alpha, 0, -alpha}
	case Notch:
		num = [3]float64{1, -2 * cos, 1}
	default:
		num = [3]float64{(1 - cos) / 2, 1 - cos, (1 - cos) / 2}
	}
	inv := 1 / (1 + alpha)
	return Coefficients{
		B0: float32(num[0] * inv),
		B1: float32(num[1] * inv),
		B2: float32(num[2] * inv),
		A1: float32(-2 * cos * inv),
		A2: float32((1 - alpha) * inv),
	}
}

// DelayLine is a ring buffer read back at integer or fractional delays.
// Delays count from the most recent Write: a delay of 1 is that sample.
type DelayLine struct {
	buf  []float32
	head int // next write index
}

// NewDelayLine allocates a line holding size samples (at least 2).
func NewDelayLine(size int) *DelayLine {
	return &DelayLine{buf: make([]float32, max(size, 2))}
}

// Size is the capacity in samples.
func (d *DelayLine) Size() int { return len(d.buf) }

// Write pushes one sample.
func (d *DelayLine) Write(x float32) {
	d.buf[d.head] = x
	d.head++
	if d.head == len(d.buf) {
		d.head = 0
	}
}

// Read returns the sample written delay writes ago.
func (d *DelayLine) Read(delay int) float32 {
	n := len(d.buf)
	return d.buf[((d.head-delay)%n+n)%n]
}

// ReadFractional reads between two taps with linear interpolation. The delay
// is clamped to [1, Size()-2].
func (d *DelayLine) ReadFractional(delay float32) float32 {
	delay = min(max(delay, 1), float32(len(d.buf)-2))
	whole := int(delay)
	frac := delay - float32(whole)
	a, b := d.Read(whole), d.Read(whole+1)
	return a + frac*(b-a)
}

// Reset silences the line.
func (d *DelayLine) Reset() {
	clear(d.buf)
	d.head = 0
}

// Cubic evaluates the third-order Lagrange polynomial through w[0..3] at
// w[1] + frac, with frac in [0,1).
func Cubic(w [4]float32, frac float32) float32 {
	c1 := w[2] - w[0]/3 - w[1]/2 - w[3]/6
	c2 := (w[0]+w[2])/2 - w[1]
	c3 := (w[1]-w[2])/2 + (w[3]-w[0])/6
	return w[1] + frac*(c1+frac*(c2+frac*c3))
}

// Smoother glides a control value toward its target with a one-pole lowpass.
type Smoother struct {
	current float64
	target  float64
	coef    float64
}

// NewSmoother creates a smoother with the given time constant.
func NewSmoother(initial float64, timeConstantS float64, sampleRate int) *Smoother {
	s := &Smoother{current: initial, target: initial}
	s.SetTimeConstant(timeConstantS, sampleRate)
	return s
}

// SetTimeConstant changes how fast the smoother converges. A non-positive
// time constant makes it jump.
func (s *Smoother) SetTimeConstant(seconds float64, sampleRate int) {
	if seconds <= 0 || sampleRate <= 0 {
		s.coef = 0
		return
	}
	s.coef = math.Exp(-1.0 / (seconds * float64(sampleRate)))
}

func (s *Smoother) SetTarget(v float64) { s.target = v }

func (s *Smoother) Target() float64 { return s.target }

// Jump sets both current and target, skipping the glide.
func (s *Smoother) Jump(v float64) {
	s.current = v
	s.target = v
}

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float64 {
	s.current = s.target + (s.current-s.target)*s.coef
	if math.Abs(s.current-s.target) < 1e-9 {
		s.current = s.target
	}
	return dspcore.FlushDenormals(s.current)
}
