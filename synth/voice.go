package synth

import (
	"math"

	"github.com/cwbudde/algo-sketchsynth/dsp"
)

// Stage is the envelope phase of a voice at a given frame.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Voice is one sounding note: a wavetable oscillator with its own envelope.
// The tone and envelope are snapshots taken at note-on.
type Voice struct {
	key        string
	freq       float64
	sampleRate int
	tone       *ToneTable
	wave       []float32
	window     [4]float32

	phase    float64 // cycle position in [0,1)
	phaseInc float64

	startFrame    int64
	attackFrames  int64
	decayFrames   int64
	releaseFrames int64
	sustain       float64

	released     bool
	releaseFrame int64
	releaseGain  float64
}

func newVoice(key string, freq float64, sampleRate int, tone *ToneTable, env EnvelopeParams, start int64) *Voice {
	env = env.Sanitize()
	return &Voice{
		key:           key,
		freq:          freq,
		sampleRate:    sampleRate,
		tone:          tone,
		wave:          tone.tableFor(freq, sampleRate),
		phaseInc:      freq / float64(sampleRate),
		startFrame:    start,
		attackFrames:  msToFrames(env.AttackMs, sampleRate),
		decayFrames:   msToFrames(env.DecayMs, sampleRate),
		releaseFrames: msToFrames(env.ReleaseMs, sampleRate),
		sustain:       env.SustainPct / 100,
	}
}

// Key returns the key name the voice was started with.
func (v *Voice) Key() string { return v.key }

// Frequency returns the oscillator frequency in Hz.
func (v *Voice) Frequency() float64 { return v.freq }

// heldGain is the attack/decay/sustain contour, ignoring any release.
func (v *Voice) heldGain(frame int64) float64 {
	t := frame - v.startFrame
	if t < 0 {
		return 0
	}
	if t < v.attackFrames {
		return float64(t) / float64(v.attackFrames)
	}
	t -= v.attackFrames
	if t < v.decayFrames {
		return 1 + (v.sustain-1)*float64(t)/float64(v.decayFrames)
	}
	return v.sustain
}

// GainAt returns the envelope gain at an absolute engine frame.
func (v *Voice) GainAt(frame int64) float64 {
	if !v.released || frame < v.releaseFrame {
		return v.heldGain(frame)
	}
	t := frame - v.releaseFrame
	if t >= v.releaseFrames {
		return 0
	}
	return v.releaseGain * (1 - float64(t)/float64(v.releaseFrames))
}

// StageAt returns the envelope stage at an absolute engine frame.
func (v *Voice) StageAt(frame int64) Stage {
	if v.released && frame >= v.releaseFrame {
		if frame-v.releaseFrame >= v.releaseFrames {
			return StageDone
		}
		return StageRelease
	}
	t := frame - v.startFrame
	switch {
	case t < 0:
		return StageIdle
	case t < v.attackFrames:
		return StageAttack
	case t < v.attackFrames+v.decayFrames:
		return StageDecay
	default:
		return StageSustain
	}
}

// release starts the linear fade from whatever gain the envelope holds at now.
func (v *Voice) release(now int64) {
	if v.released {
		return
	}
	v.releaseGain = v.heldGain(now)
	v.releaseFrame = now
	v.released = true
}

// stop silences the voice at now with no tail.
func (v *Voice) stop(now int64) {
	v.released = true
	v.releaseFrame = now
	v.releaseGain = 0
	v.releaseFrames = 0
}

func (v *Voice) finished(frame int64) bool {
	return v.released && frame-v.releaseFrame >= v.releaseFrames
}

// Process adds the voice's output for frames [start, start+len(out)) into out.
func (v *Voice) Process(out []float32, start int64) {
	n := len(v.wave)
	for i := range out {
		frame := start + int64(i)
		if v.finished(frame) {
			return
		}
		g := v.GainAt(frame)

		pos := v.phase * float64(n)
		idx := int(pos)
		frac := float32(pos - float64(idx))
		for k := range v.window {
			v.window[k] = v.wave[(idx+k-1+n)%n]
		}
		out[i] += dsp.Cubic(v.window, frac) * float32(g)

		v.phase += v.phaseInc
		if v.phase >= 1 {
			v.phase -= math.Floor(v.phase)
		}
	}
}
