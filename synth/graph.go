package synth

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-sketchsynth/dsp"
)

// Gain and delay-time glide.
const paramSmoothingS = 0.005

// Chorus voicing for the wet path.
const (
	chorusDepthS  = 0.003
	chorusSpeedHz = 0.35
	chorusStages  = 3
)

// signalGraph is the fixed processing chain every voice feeds:
//
//	voices -> filter -> dry ------------------------------------------> master
//	                 \-> chorus -> delay -> shaper -> diffuser -> wet --/
type signalGraph struct {
	sampleRate int

	filter  *dsp.Biquad
	chorus  *effects.Chorus
	delay   *dsp.DelayLine
	shaper  func(float64) float64
	diffuse *diffuser

	chorusMix   float64
	effectsGain float32

	dry       *dsp.Smoother
	wet       *dsp.Smoother
	master    *dsp.Smoother
	delayTime *dsp.Smoother // seconds

	filtered []float32
	wetMono  []float32
	wetL     []float32
	wetR     []float32
}

func newSignalGraph(sampleRate int) (*signalGraph, error) {
	chorus, err := effects.NewChorus()
	if err != nil {
		return nil, err
	}
	sr := float64(sampleRate)
	if err := chorus.SetSampleRate(sr); err != nil {
		return nil, err
	}
	if err := chorus.SetDepth(chorusDepthS); err != nil {
		return nil, err
	}
	if err := chorus.SetSpeedHz(chorusSpeedHz); err != nil {
		return nil, err
	}
	if err := chorus.SetStages(chorusStages); err != nil {
		return nil, err
	}

	f := DefaultFilter()
	dry, wet := EffectsParams{}.MixGains()
	g := &signalGraph{
		sampleRate:  sampleRate,
		filter:      dsp.Design(f.Kind.dspKind(), float32(f.CutoffHz), float32(sr), float32(f.Q)),
		chorus:      chorus,
		delay:       dsp.NewDelayLine(int(math.Ceil(MaxDelayTime*sr)) + 4),
		shaper:      distortionCurve(0),
		diffuse:     newDiffuser(sampleRate),
		effectsGain: 1,
		dry:         dsp.NewSmoother(dry, paramSmoothingS, sampleRate),
		wet:         dsp.NewSmoother(wet, paramSmoothingS, sampleRate),
		master:      dsp.NewSmoother(DefaultMasterVolume/100.0, paramSmoothingS, sampleRate),
		delayTime:   dsp.NewSmoother(0, paramSmoothingS, sampleRate),
	}
	return g, nil
}

// setFilter swaps the filter coefficients in place, keeping its state.
func (g *signalGraph) setFilter(p FilterParams) {
	cutoff := math.Min(p.CutoffHz, 0.49*float64(g.sampleRate))
	g.filter.Redesign(p.Kind.dspKind(), float32(cutoff), float32(g.sampleRate), float32(p.Q))
}

func (g *signalGraph) setEffects(p EffectsParams) {
	dry, wet := p.MixGains()
	g.dry.SetTarget(dry)
	g.wet.SetTarget(wet)
	g.delayTime.SetTarget(p.DelaySeconds())
	g.shaper = distortionCurve(p.DistortionAmount())

	mix := p.ChorusPct / 100
	if mix > 0 && mix != g.chorusMix {
		if err := g.chorus.SetMix(mix); err != nil {
			mix = g.chorusMix
		}
	}
	if mix == 0 && g.chorusMix > 0 {
		g.chorus.Reset()
	}
	g.chorusMix = mix
}

func (g *signalGraph) setMaster(v float64) {
	g.master.SetTarget(v)
}

// process runs the mono voice mix through the chain and writes stereo
// interleaved frames to out, which must hold 2*len(mono) samples.
func (g *signalGraph) process(mono, out []float32) {
	n := len(mono)
	g.filtered = grow(g.filtered, n)
	g.wetMono = grow(g.wetMono, n)
	g.wetL = grow(g.wetL, n)
	g.wetR = grow(g.wetR, n)

	sr := float32(g.sampleRate)
	for i, x := range mono {
		y := g.filter.Process(x)
		g.filtered[i] = y

		w := float64(y)
		if g.chorusMix > 0 {
			w = g.chorus.ProcessSample(w)
		}
		g.delay.Write(float32(w))
		w = float64(g.delay.ReadFractional(float32(g.delayTime.Next())*sr + 1))
		g.wetMono[i] = float32(g.shaper(w))
	}

	g.diffuse.Process(g.wetMono, g.wetL, g.wetR)

	for i, y := range g.filtered {
		dry := float32(g.dry.Next())
		wet := float32(g.wet.Next()) * g.effectsGain
		m := float32(g.master.Next())
		out[2*i] = (y*dry + g.wetL[i]*wet) * m
		out[2*i+1] = (y*dry + g.wetR[i]*wet) * m
	}
}

// distortionCurve is the waveshaper transfer function
// f(x) = (3+k)·x·(π/9) / (π + k·|x|) on x clamped to [-1,1].
func distortionCurve(k float64) func(float64) float64 {
	const deg20 = math.Pi / 9
	return func(x float64) float64 {
		x = clamp(x, -1, 1)
		return (3 + k) * x * deg20 / (math.Pi + k*math.Abs(x))
	}
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
