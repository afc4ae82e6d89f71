package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/internal/fit"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

type analyzeOptions struct {
	harmonics int
	asJSON    bool
}

type analyzeReport struct {
	Points    int             `json:"points"`
	Analysis  analysis.Result `json:"analysis"`
	Harmonics []harmonicRow   `json:"harmonics"`
}

type harmonicRow struct {
	Harmonic    int     `json:"harmonic"`
	Coefficient float64 `json:"coefficient"`
	LevelDB     float64 `json:"level_db"`
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report curve metrics and the harmonic content of its tone",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runAnalyze(g, o) },
	}
	cmd.Flags().IntVar(&o.harmonics, "harmonics", 16, "Harmonics to list (1..32)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print a JSON report")
	return cmd
}

func runAnalyze(g *globalOptions, o *analyzeOptions) error {
	p, err := g.loadPatch()
	if err != nil {
		return err
	}
	if len(p.Curve) == 0 {
		return fmt.Errorf("no curve: use --shape, --curve or a preset with a curve")
	}
	h := max(1, min(o.harmonics, synth.Harmonics))

	tone := synth.RebuildTone(p.Curve)
	profile, err := fit.Profile(p.Curve, h)
	if err != nil {
		return err
	}
	peak := 0.0
	for _, v := range profile {
		peak = math.Max(peak, v)
	}

	rep := analyzeReport{Points: len(p.Curve), Analysis: analysis.Analyze(p.Curve)}
	for i, v := range profile {
		level := math.Inf(-1)
		if peak > 0 && v > 0 {
			level = 20 * math.Log10(v/peak)
		}
		rep.Harmonics = append(rep.Harmonics, harmonicRow{Harmonic: i + 1, Coefficient: tone.Magnitude(i + 1), LevelDB: math.Max(level, -120)})
	}

	if o.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("Curve: %s (%d points)\n", curveLabel(g, p), rep.Points)
	fmt.Printf("Harmonic richness: %.0f%%\n", rep.Analysis.HarmonicRichness)
	fmt.Printf("Complexity: %s\n", rep.Analysis.Complexity)
	fmt.Printf("Fundamental (crossing estimate): %.1f\n", rep.Analysis.FundamentalFreq)
	fmt.Println("Harmonic  Coefficient  Level (dB)")
	for _, r := range rep.Harmonics {
		fmt.Printf("%8d  %11.5f  %10.1f\n", r.Harmonic, r.Coefficient, r.LevelDB)
	}
	return nil
}
