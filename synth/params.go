package synth

import (
	"math"
	"strings"

	"github.com/cwbudde/algo-sketchsynth/dsp"
)

// EnvelopeParams is the ADSR snapshot a voice is created with.
type EnvelopeParams struct {
	AttackMs   float64 `json:"attack_ms"`
	DecayMs    float64 `json:"decay_ms"`
	SustainPct float64 `json:"sustain_pct"`
	ReleaseMs  float64 `json:"release_ms"`
}

// DefaultReleaseMs is the fixed release of the browser synth this engine
// reproduces, used when no envelope has been set.
const DefaultReleaseMs = 100

// DefaultEnvelope is the envelope NoteOn uses until SetEnvelope is called: a
// short attack, a 300 ms decay to 70 % and the DefaultReleaseMs release.
func DefaultEnvelope() EnvelopeParams {
	return EnvelopeParams{
		AttackMs:   10,
		DecayMs:    300,
		SustainPct: 70,
		ReleaseMs:  DefaultReleaseMs,
	}
}

// Sanitize clamps every field into its valid range. Non-finite values fall
// back to the defaults.
func (p EnvelopeParams) Sanitize() EnvelopeParams {
	d := DefaultEnvelope()
	p.AttackMs = nonNegative(p.AttackMs, d.AttackMs)
	p.DecayMs = nonNegative(p.DecayMs, d.DecayMs)
	p.ReleaseMs = nonNegative(p.ReleaseMs, d.ReleaseMs)
	if !isFinite(p.SustainPct) {
		p.SustainPct = d.SustainPct
	}
	p.SustainPct = clamp(p.SustainPct, 0, 100)
	return p
}

// FilterKind names the response of the shared filter.
type FilterKind string

const (
	FilterLowpass  FilterKind = "lowpass"
	FilterHighpass FilterKind = "highpass"
	FilterBandpass FilterKind = "bandpass"
	FilterNotch    FilterKind = "notch"
)

// ParseFilterKind maps a name onto a FilterKind. Unknown names report false
// and resolve to lowpass.
func ParseFilterKind(s string) (FilterKind, bool) {
	switch k := FilterKind(strings.ToLower(strings.TrimSpace(s))); k {
	case FilterLowpass, FilterHighpass, FilterBandpass, FilterNotch:
		return k, true
	default:
		return FilterLowpass, false
	}
}

func (k FilterKind) dspKind() dsp.FilterKind {
	switch k {
	case FilterHighpass:
		return dsp.Highpass
	case FilterBandpass:
		return dsp.Bandpass
	case FilterNotch:
		return dsp.Notch
	default:
		return dsp.Lowpass
	}
}

// Filter limits.
const (
	MinCutoffHz = 20.0
	MaxCutoffHz = 20000.0
	MaxQ        = 30.0
)

// FilterParams configures the single filter every voice passes through.
type FilterParams struct {
	CutoffHz float64    `json:"cutoff_hz"`
	Q        float64    `json:"resonance"`
	Kind     FilterKind `json:"kind"`
}

// DefaultFilter is a gentle lowpass at 2 kHz.
func DefaultFilter() FilterParams {
	return FilterParams{CutoffHz: 2000, Q: 1, Kind: FilterLowpass}
}

// Sanitize clamps cutoff and resonance and resolves unknown kinds to lowpass.
func (p FilterParams) Sanitize() FilterParams {
	d := DefaultFilter()
	if !isFinite(p.CutoffHz) {
		p.CutoffHz = d.CutoffHz
	}
	if !isFinite(p.Q) {
		p.Q = d.Q
	}
	p.CutoffHz = clamp(p.CutoffHz, MinCutoffHz, MaxCutoffHz)
	p.Q = clamp(p.Q, 0, MaxQ)
	p.Kind, _ = ParseFilterKind(string(p.Kind))
	return p
}

// EffectsParams holds the send-effect amounts, each a percentage.
type EffectsParams struct {
	ReverbPct     float64 `json:"reverb_pct"`
	DelayPct      float64 `json:"delay_pct"`
	DistortionPct float64 `json:"distortion_pct"`
	ChorusPct     float64 `json:"chorus_pct"`
}

// Sanitize clamps every amount into [0,100].
func (p EffectsParams) Sanitize() EffectsParams {
	p.ReverbPct = pct(p.ReverbPct)
	p.DelayPct = pct(p.DelayPct)
	p.DistortionPct = pct(p.DistortionPct)
	p.ChorusPct = pct(p.ChorusPct)
	return p
}

// Wet/dry derivation constants.
const (
	dryCut       = 0.7
	wetCeiling   = 0.8
	MaxDelayTime = 0.3 // seconds
)

// MixGains derives the dry and wet gains. The dry path never drops below
// 1-dryCut, so some direct signal survives with every effect fully up.
func (p EffectsParams) MixGains() (dry, wet float64) {
	p = p.Sanitize()
	totalWet := math.Max(p.ReverbPct, math.Max(p.DelayPct, p.DistortionPct)) / 100
	return 1 - dryCut*totalWet, wetCeiling * totalWet
}

// DelaySeconds is the delay time for the current delay amount.
func (p EffectsParams) DelaySeconds() float64 {
	return pct(p.DelayPct) / 100 * MaxDelayTime
}

// DistortionAmount is the waveshaper drive k derived from the distortion amount.
func (p EffectsParams) DistortionAmount() float64 {
	return pct(p.DistortionPct) * 50
}

// DefaultMasterVolume is the master gain percentage at start-up.
const DefaultMasterVolume = 30

func pct(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return clamp(v, 0, 100)
}

func nonNegative(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return math.Max(0, v)
}
