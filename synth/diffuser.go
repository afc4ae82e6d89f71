package synth

import (
	"fmt"
	"math"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
)

const diffuserPartSize = 128

// Impulse normalization matching a browser ConvolverNode.
const (
	irGainCalibration = 0.00125
	irCalibrationRate = 44100.0
	irMinPower        = 0.000125
)

// diffuser convolves the mono wet signal with a stereo impulse using
// partitioned overlap-add. Output trails input by one partition.
type diffuser struct {
	sampleRate int
	partSize   int
	irLen      int
	normalize  bool

	leftOLA  *dspconv.StreamingOverlapAddT[float32, complex64]
	rightOLA *dspconv.StreamingOverlapAddT[float32, complex64]

	block    []float32
	leftOut  []float32
	rightOut []float32
	pos      int
}

func newDiffuser(sampleRate int) *diffuser {
	d := &diffuser{
		sampleRate: sampleRate,
		partSize:   diffuserPartSize,
		block:      make([]float32, diffuserPartSize),
		leftOut:    make([]float32, diffuserPartSize),
		rightOut:   make([]float32, diffuserPartSize),
	}
	// Unit impulse until a real one is installed; left unscaled.
	_ = d.SetIR([]float32{1.0}, []float32{1.0})
	d.normalize = true
	return d
}

// Latency is the delay in frames between input and convolved output.
func (d *diffuser) Latency() int { return d.partSize }

// IRLen is the length of the active impulse in frames.
func (d *diffuser) IRLen() int { return d.irLen }

// Process convolves in and writes the stereo result to outL and outR, which
// must be at least len(in) long.
func (d *diffuser) Process(in, outL, outR []float32) {
	for i, x := range in {
		outL[i] = d.leftOut[d.pos]
		outR[i] = d.rightOut[d.pos]
		d.block[d.pos] = x
		d.pos++
		if d.pos < d.partSize {
			continue
		}
		d.pos = 0
		errL := d.leftOLA.ProcessBlockTo(d.leftOut, d.block)
		errR := d.rightOLA.ProcessBlockTo(d.rightOut, d.block)
		if errL != nil || errR != nil {
			// Pass the block through rather than emit garbage.
			copy(d.leftOut, d.block)
			copy(d.rightOut, d.block)
		}
	}
}

// SetIR installs left/right impulses, normalizing them when enabled.
func (d *diffuser) SetIR(leftIR, rightIR []float32) error {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = leftIR
	}
	if d.normalize {
		leftIR, rightIR = normalizeIR(leftIR, rightIR, d.sampleRate)
	}

	leftOLA, err := dspconv.NewStreamingOverlapAdd32(leftIR, d.partSize)
	if err != nil {
		return fmt.Errorf("left impulse: %w", err)
	}
	rightOLA, err := dspconv.NewStreamingOverlapAdd32(rightIR, d.partSize)
	if err != nil {
		return fmt.Errorf("right impulse: %w", err)
	}
	d.leftOLA = leftOLA
	d.rightOLA = rightOLA
	d.irLen = max(len(leftIR), len(rightIR))
	d.Reset()
	return nil
}

// SetIRFromWAV installs the impulse stored in a WAV file, resampled to the
// engine rate. Mono files feed both channels; channels past the second are
// ignored.
func (d *diffuser) SetIRFromWAV(path string) error {
	clip, err := wavio.Read(path)
	if err != nil {
		return err
	}
	left, err := wavio.Resample32(clip.Channel(0), clip.SampleRate, d.sampleRate)
	if err != nil {
		return err
	}
	right, err := wavio.Resample32(clip.Channel(1), clip.SampleRate, d.sampleRate)
	if err != nil {
		return err
	}
	return d.SetIR(left, right)
}

// Reset clears convolver history and the partition buffers.
func (d *diffuser) Reset() {
	if d.leftOLA != nil {
		d.leftOLA.Reset()
	}
	if d.rightOLA != nil {
		d.rightOLA.Reset()
	}
	clear(d.block)
	clear(d.leftOut)
	clear(d.rightOut)
	d.pos = 0
}

// normalizeIR scales both channels by one factor derived from their joint
// RMS, calibrated so a loud room impulse lands near unity gain.
func normalizeIR(left, right []float32, sampleRate int) ([]float32, []float32) {
	power := 0.0
	for _, v := range left {
		power += float64(v) * float64(v)
	}
	for _, v := range right {
		power += float64(v) * float64(v)
	}
	power = math.Sqrt(power / float64(len(left)+len(right)))
	if !isFinite(power) || power < irMinPower {
		power = irMinPower
	}
	scale := 1 / power * irGainCalibration
	if sampleRate > 0 {
		scale *= irCalibrationRate / float64(sampleRate)
	}

	l := make([]float32, len(left))
	for i, v := range left {
		l[i] = v * float32(scale)
	}
	r := make([]float32, len(right))
	for i, v := range right {
		r[i] = v * float32(scale)
	}
	return l, r
}
