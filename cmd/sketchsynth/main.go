package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sketchsynth: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "sketchsynth",
		Short: "Play drawn waveforms as a polyphonic synthesizer",
		Long: `sketchsynth turns a drawn curve into a band-limited tone and plays it
through an ADSR voice manager, a shared resonant filter and a send-effects
chain (chorus, delay, distortion, diffusion).

Curves come from a preset JSON file (--preset), a bare point array (--curve)
or a built-in shape (--shape).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.validate()
		},
	}

	pf := root.PersistentFlags()
	pf.IntVar(&g.sampleRate, "sample-rate", 48000, "Engine sample rate in Hz")
	pf.StringVar(&g.presetPath, "preset", "", "Preset JSON file path")
	pf.StringVar(&g.curvePath, "curve", "", "Curve JSON file (point array or preset) overriding the preset curve")
	pf.StringVar(&g.shape, "shape", "", "Built-in shape overriding the preset curve (sine, square, sawtooth, ...)")
	pf.BoolVar(&g.prepare, "prepare", false, "Smooth and normalize the curve before use")
	pf.Float64Var(&g.diffusionS, "diffusion", 2.0, "Generated diffusion impulse length in seconds (0 disables)")
	pf.Int64Var(&g.diffusionSeed, "diffusion-seed", 1, "Diffusion impulse random seed")
	pf.StringVar(&g.impulsePath, "impulse", "", "Impulse WAV overriding the generated diffusion")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Verbose engine logging on stderr")

	root.AddCommand(
		newRenderCmd(g),
		newAnalyzeCmd(g),
		newPlayCmd(g),
		newServeCmd(g),
		newFitCmd(g),
		newIRCmd(g),
	)
	return root
}
