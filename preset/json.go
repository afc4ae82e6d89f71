package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

// Patch is a complete instrument setting: the waveform plus every
// engine-wide parameter.
type Patch struct {
	Curve          curve.Curve
	Envelope       synth.EnvelopeParams
	Filter         synth.FilterParams
	Effects        synth.EffectsParams
	MasterVolume   float64
	ImpulseWAVPath string
}

// NewDefaultPatch returns the start-up settings with no curve drawn.
func NewDefaultPatch() *Patch {
	return &Patch{
		Envelope:     synth.DefaultEnvelope(),
		Filter:       synth.DefaultFilter(),
		MasterVolume: synth.DefaultMasterVolume,
	}
}

// Apply pushes the patch into a running engine. A patch without a curve
// keeps the engine's current tone. The impulse path is a construction-time
// option and is not applied here.
func (p *Patch) Apply(e *synth.Engine) {
	if len(p.Curve) > 0 {
		e.UpdateWaveform(p.Curve)
	}
	e.SetEnvelope(p.Envelope)
	e.SetFilter(p.Filter)
	e.SetEffects(p.Effects)
	e.SetMasterVolume(p.MasterVolume)
}

// File is the JSON schema for sketch presets. Every field is optional.
type File struct {
	Shape          string           `json:"shape,omitempty"`
	Curve          curve.Curve      `json:"curve,omitempty"`
	Envelope       *EnvelopeSetting `json:"envelope,omitempty"`
	Filter         *FilterSetting   `json:"filter,omitempty"`
	Effects        *EffectsSetting  `json:"effects,omitempty"`
	MasterVolume   *float64         `json:"master_volume,omitempty"`
	ImpulseWAVPath string           `json:"impulse_wav_path,omitempty"`
}

// EnvelopeSetting is a partial envelope override.
type EnvelopeSetting struct {
	AttackMs   *float64 `json:"attack_ms,omitempty"`
	DecayMs    *float64 `json:"decay_ms,omitempty"`
	SustainPct *float64 `json:"sustain_pct,omitempty"`
	ReleaseMs  *float64 `json:"release_ms,omitempty"`
}

// FilterSetting is a partial filter override.
type FilterSetting struct {
	CutoffHz  *float64 `json:"cutoff_hz,omitempty"`
	Resonance *float64 `json:"resonance,omitempty"`
	Kind      *string  `json:"kind,omitempty"`
}

// EffectsSetting is a partial effects override, each amount a percentage.
type EffectsSetting struct {
	Reverb     *float64 `json:"reverb,omitempty"`
	Delay      *float64 `json:"delay,omitempty"`
	Distortion *float64 `json:"distortion,omitempty"`
	Chorus     *float64 `json:"chorus,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of the default patch.
func LoadJSON(path string) (*Patch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p := NewDefaultPatch()
	if err := ApplyFile(p, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if p.ImpulseWAVPath != "" && !filepath.IsAbs(p.ImpulseWAVPath) {
		base := filepath.Dir(path)
		p.ImpulseWAVPath = filepath.Clean(filepath.Join(base, p.ImpulseWAVPath))
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing patch.
func ApplyFile(dst *Patch, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination patch")
	}
	if f == nil {
		return nil
	}

	switch {
	case f.Shape != "" && len(f.Curve) > 0:
		return fmt.Errorf("shape and curve are mutually exclusive")
	case f.Shape != "":
		c, err := curve.Preset(f.Shape)
		if err != nil {
			return err
		}
		dst.Curve = c
	case len(f.Curve) > 0:
		if err := validateCurve(f.Curve); err != nil {
			return err
		}
		dst.Curve = f.Curve.Clone()
	}

	if f.ImpulseWAVPath != "" {
		dst.ImpulseWAVPath = strings.TrimSpace(f.ImpulseWAVPath)
	}
	if f.MasterVolume != nil {
		if err := checkRange("master_volume", *f.MasterVolume, 0, 100); err != nil {
			return err
		}
		dst.MasterVolume = *f.MasterVolume
	}

	if env := f.Envelope; env != nil {
		if err := setNonNegative("envelope.attack_ms", env.AttackMs, &dst.Envelope.AttackMs); err != nil {
			return err
		}
		if err := setNonNegative("envelope.decay_ms", env.DecayMs, &dst.Envelope.DecayMs); err != nil {
			return err
		}
		if err := setNonNegative("envelope.release_ms", env.ReleaseMs, &dst.Envelope.ReleaseMs); err != nil {
			return err
		}
		if err := setRange("envelope.sustain_pct", env.SustainPct, 0, 100, &dst.Envelope.SustainPct); err != nil {
			return err
		}
	}

	if flt := f.Filter; flt != nil {
		if err := setRange("filter.cutoff_hz", flt.CutoffHz, synth.MinCutoffHz, synth.MaxCutoffHz, &dst.Filter.CutoffHz); err != nil {
			return err
		}
		if err := setRange("filter.resonance", flt.Resonance, 0, synth.MaxQ, &dst.Filter.Q); err != nil {
			return err
		}
		if flt.Kind != nil {
			kind, ok := synth.ParseFilterKind(*flt.Kind)
			if !ok {
				return fmt.Errorf("filter.kind %q must be lowpass, highpass, bandpass or notch", *flt.Kind)
			}
			dst.Filter.Kind = kind
		}
	}

	if fx := f.Effects; fx != nil {
		if err := setRange("effects.reverb", fx.Reverb, 0, 100, &dst.Effects.ReverbPct); err != nil {
			return err
		}
		if err := setRange("effects.delay", fx.Delay, 0, 100, &dst.Effects.DelayPct); err != nil {
			return err
		}
		if err := setRange("effects.distortion", fx.Distortion, 0, 100, &dst.Effects.DistortionPct); err != nil {
			return err
		}
		if err := setRange("effects.chorus", fx.Chorus, 0, 100, &dst.Effects.ChorusPct); err != nil {
			return err
		}
	}
	return nil
}

// FileFromPatch converts a patch into its fully populated JSON form.
func FileFromPatch(p *Patch) *File {
	env := p.Envelope
	flt := p.Filter
	fx := p.Effects
	kind := string(flt.Kind)
	master := p.MasterVolume
	return &File{
		Curve: p.Curve.Clone(),
		Envelope: &EnvelopeSetting{
			AttackMs:   &env.AttackMs,
			DecayMs:    &env.DecayMs,
			SustainPct: &env.SustainPct,
			ReleaseMs:  &env.ReleaseMs,
		},
		Filter: &FilterSetting{
			CutoffHz:  &flt.CutoffHz,
			Resonance: &flt.Q,
			Kind:      &kind,
		},
		Effects: &EffectsSetting{
			Reverb:     &fx.ReverbPct,
			Delay:      &fx.DelayPct,
			Distortion: &fx.DistortionPct,
			Chorus:     &fx.ChorusPct,
		},
		MasterVolume:   &master,
		ImpulseWAVPath: p.ImpulseWAVPath,
	}
}

// SaveJSON writes p as an indented preset file.
func SaveJSON(path string, p *Patch) error {
	if p == nil {
		return fmt.Errorf("nil patch")
	}
	b, err := json.MarshalIndent(FileFromPatch(p), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// LoadCurve reads a curve from either a bare JSON point array or a preset
// file carrying a shape or curve.
func LoadCurve(path string) (curve.Curve, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pts curve.Curve
	if err := json.Unmarshal(b, &pts); err == nil {
		if err := validateCurve(pts); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return pts, nil
	}
	p, err := LoadJSON(path)
	if err != nil {
		return nil, err
	}
	if len(p.Curve) == 0 {
		return nil, fmt.Errorf("%s: no curve or shape", path)
	}
	return p.Curve, nil
}

func validateCurve(c curve.Curve) error {
	for i, pt := range c {
		if err := checkRange(fmt.Sprintf("curve[%d].x", i), pt.X, 0, 100); err != nil {
			return err
		}
		if err := checkRange(fmt.Sprintf("curve[%d].y", i), pt.Y, 0, 100); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%s must be in [%g,%g]", name, lo, hi)
	}
	return nil
}

func setRange(name string, src *float64, lo, hi float64, dst *float64) error {
	if src == nil {
		return nil
	}
	if err := checkRange(name, *src, lo, hi); err != nil {
		return err
	}
	*dst = *src
	return nil
}

func setNonNegative(name string, src *float64, dst *float64) error {
	if src == nil {
		return nil
	}
	if math.IsNaN(*src) || math.IsInf(*src, 0) || *src < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	*dst = *src
	return nil
}
