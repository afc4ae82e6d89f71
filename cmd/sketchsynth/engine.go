package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/preset"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

type globalOptions struct {
	sampleRate    int
	presetPath    string
	curvePath     string
	shape         string
	prepare       bool
	diffusionS    float64
	diffusionSeed int64
	impulsePath   string
	verbose       bool
}

func (g *globalOptions) validate() error {
	if g.sampleRate < synth.MinSampleRate {
		return fmt.Errorf("--sample-rate must be >= %d", synth.MinSampleRate)
	}
	if g.curvePath != "" && g.shape != "" {
		return fmt.Errorf("--curve and --shape are mutually exclusive")
	}
	return nil
}

func (g *globalOptions) logger() *slog.Logger {
	if !g.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadPatch resolves the preset file plus curve and impulse overrides.
func (g *globalOptions) loadPatch() (*preset.Patch, error) {
	p := preset.NewDefaultPatch()
	if g.presetPath != "" {
		loaded, err := preset.LoadJSON(g.presetPath)
		if err != nil {
			return nil, fmt.Errorf("load preset %q: %w", g.presetPath, err)
		}
		p = loaded
	}
	switch {
	case g.curvePath != "":
		c, err := preset.LoadCurve(g.curvePath)
		if err != nil {
			return nil, fmt.Errorf("load curve %q: %w", g.curvePath, err)
		}
		p.Curve = c
	case g.shape != "":
		c, err := curve.Preset(g.shape)
		if err != nil {
			return nil, err
		}
		p.Curve = c
	}
	if g.prepare {
		p.Curve = curve.Prepare(p.Curve)
	}
	if g.impulsePath != "" {
		p.ImpulseWAVPath = g.impulsePath
	}
	return p, nil
}

// newEngine builds an engine for the patch but does not start it.
func (g *globalOptions) newEngine(p *preset.Patch) (*synth.Engine, error) {
	opts := []synth.Option{
		synth.WithDiffusion(g.diffusionS, g.diffusionSeed),
		synth.WithLogger(g.logger()),
	}
	if p.ImpulseWAVPath != "" {
		opts = append(opts, synth.WithImpulseWAV(p.ImpulseWAVPath))
	}
	e, err := synth.NewEngine(g.sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	p.Apply(e)
	return e, nil
}

// offlineEngine is newEngine followed by an offline start.
func (g *globalOptions) offlineEngine(p *preset.Patch) (*synth.Engine, error) {
	e, err := g.newEngine(p)
	if err != nil {
		return nil, err
	}
	if err := e.Start(context.Background(), synth.Offline{}); err != nil {
		return nil, err
	}
	return e, nil
}

func curveLabel(g *globalOptions, p *preset.Patch) string {
	switch {
	case g.shape != "":
		return g.shape
	case g.curvePath != "":
		return g.curvePath
	case g.presetPath != "" && len(p.Curve) > 0:
		return g.presetPath
	default:
		return "default sawtooth"
	}
}
