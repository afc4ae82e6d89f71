package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
	"github.com/cwbudde/algo-sketchsynth/sequence"
)

type renderOptions struct {
	play      playOptions
	output    string
	outRate   int
	normalize float64
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render notes or a pattern to a WAV file",
		Long: `Render held notes, an arpeggio or a step pattern offline.

Examples:
  sketchsynth render --shape square --notes A4,C#5,E5 --hold 1.5 -o chord.wav
  sketchsynth render --preset pad.json --mode arp --scale minor --tempo 140
  sketchsynth render --shape bass --mode steps --grid-seed 7 --out-rate 44100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return runRender(g, o) },
	}
	o.play.register(cmd)
	cmd.Flags().StringVarP(&o.output, "output", "o", "output.wav", "Output WAV file path")
	cmd.Flags().IntVar(&o.outRate, "out-rate", 0, "Resample the result to this rate (0 keeps the engine rate)")
	cmd.Flags().Float64Var(&o.normalize, "normalize", 0, "Peak-normalize to this level (0 disables)")
	return cmd
}

func runRender(g *globalOptions, o *renderOptions) error {
	p, err := g.loadPatch()
	if err != nil {
		return err
	}
	e, err := g.offlineEngine(p)
	if err != nil {
		return err
	}
	defer e.Close()

	events, frames, err := o.play.events(g.sampleRate, p.Envelope)
	if err != nil {
		return err
	}
	fmt.Printf("Rendering %s mode, %d events, %.2f s at %d Hz (curve: %s)...\n",
		o.play.mode, len(events), float64(frames)/float64(g.sampleRate), g.sampleRate, curveLabel(g, p))

	samples := sequence.Render(e, events, frames)
	rate := g.sampleRate
	if o.outRate > 0 && o.outRate != rate {
		samples, err = wavio.ResampleInterleaved(samples, 2, rate, o.outRate)
		if err != nil {
			return fmt.Errorf("resample: %w", err)
		}
		rate = o.outRate
	}
	if o.normalize > 0 {
		wavio.PeakNormalize(samples, o.normalize)
	}
	if err := wavio.Write(o.output, samples, rate, 2); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}

	fmt.Printf("Wrote %s\n", o.output)
	fmt.Printf("SampleRate: %d Hz, Frames: %d\n", rate, len(samples)/2)
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", wavio.Peak(samples), wavio.RMS(samples))
	return nil
}
