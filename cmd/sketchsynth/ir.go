package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
	"github.com/cwbudde/algo-sketchsynth/irsynth"
)

func newIRCmd(g *globalOptions) *cobra.Command {
	cfg := irsynth.DefaultDiffusionConfig()
	var output string
	cmd := &cobra.Command{
		Use:   "ir",
		Short: "Write the diffusion impulse to a stereo WAV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SampleRate = g.sampleRate
			return runIR(cfg, output)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "diffusion.wav", "Output WAV path")
	f.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	f.Float64Var(&cfg.DecayPower, "decay-power", cfg.DecayPower, "Envelope exponent of (1-t)^p")
	f.Float64Var(&cfg.NormalizePeak, "normalize", cfg.NormalizePeak, "Peak normalization target (0 keeps raw noise)")
	f.Float64Var(&cfg.FadeS, "fade", cfg.FadeS, "Cosine fade-out length in seconds")
	return cmd
}

func runIR(cfg irsynth.DiffusionConfig, output string) error {
	left, right, err := irsynth.GenerateDiffusion(cfg)
	if err != nil {
		return err
	}
	if err := wavio.WriteStereo(output, left, right, cfg.SampleRate); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}

	interleaved := make([]float32, 0, 2*len(left))
	for i := range left {
		interleaved = append(interleaved, left[i], right[i])
	}
	fmt.Printf("Wrote %s\n", output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", wavio.Peak(interleaved), wavio.RMS(interleaved))
	return nil
}
