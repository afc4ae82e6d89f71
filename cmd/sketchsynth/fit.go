package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/internal/fit"
	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
	"github.com/cwbudde/algo-sketchsynth/preset"
	"github.com/cwbudde/algo-sketchsynth/sequence"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

type fitOptions struct {
	reference  string
	f0         float64
	note       string
	skip       float64
	harmonics  int
	points     int
	variant    string
	pop        int
	roundEvals int
	maxEvals   int
	budget     time.Duration
	workers    string
	seed       int64
	topK       int
	output     string
	report     string
	renderPath string
}

type fitReport struct {
	Reference  string          `json:"reference"`
	F0         float64         `json:"f0"`
	Target     []float64       `json:"target"`
	StartScore float64         `json:"start_score"`
	BestScore  float64         `json:"best_score"`
	Evals      int             `json:"evals"`
	ElapsedS   float64         `json:"elapsed_s"`
	Variant    string          `json:"variant"`
	Top        []fit.Candidate `json:"top"`
	Analysis   analysis.Result `json:"analysis"`
}

func newFitCmd(g *globalOptions) *cobra.Command {
	o := &fitOptions{}
	d := fit.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a curve to the harmonic profile of a recorded tone",
		Long: `Search for a drawn curve whose tone matches a reference recording.

The reference is analyzed at its fundamental (--f0, or --note) and the
mayfly optimizer moves the control points of a closed curve until the
harmonic profiles agree. The best curve is written as a preset.

Example:
  sketchsynth fit --reference cello_a3.wav --note A3 -o cello.json --render cello_fit.wav`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return runFit(g, o) },
	}
	f := cmd.Flags()
	f.StringVar(&o.reference, "reference", "", "Reference WAV (required)")
	f.Float64Var(&o.f0, "f0", 0, "Reference fundamental in Hz (overrides --note)")
	f.StringVar(&o.note, "note", "A4", "Reference key name when --f0 is not set")
	f.Float64Var(&o.skip, "skip", 0.1, "Seconds of attack to skip in the reference")
	f.IntVar(&o.harmonics, "harmonics", 16, "Harmonics compared (1..32)")
	f.IntVar(&o.points, "points", d.ControlPoints, "Curve control points")
	f.StringVar(&o.variant, "variant", d.Variant, "Mayfly variant")
	f.IntVar(&o.pop, "pop", d.Population, "Mayfly population")
	f.IntVar(&o.roundEvals, "round-evals", d.RoundEvals, "Evaluations per mayfly round")
	f.IntVar(&o.maxEvals, "max-evals", d.MaxEvals, "Total evaluation budget")
	f.DurationVar(&o.budget, "time-budget", d.TimeBudget, "Wall-clock budget")
	f.StringVar(&o.workers, "workers", "auto", "Parallel workers (integer >= 1 or 'auto')")
	f.Int64Var(&o.seed, "seed", d.Seed, "Random seed")
	f.IntVar(&o.topK, "top-k", d.TopK, "Candidates kept in the report")
	f.StringVarP(&o.output, "output", "o", "fit.json", "Output preset JSON")
	f.StringVar(&o.report, "report", "", "Optional JSON report path")
	f.StringVar(&o.renderPath, "render", "", "Optional WAV of the fitted tone at the reference pitch")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func runFit(g *globalOptions, o *fitOptions) error {
	workers, err := fit.ParseWorkers(o.workers)
	if err != nil {
		return fmt.Errorf("invalid --workers: %w", err)
	}
	f0 := o.f0
	if f0 <= 0 {
		f0, err = synth.NoteFrequency(o.note)
		if err != nil {
			return err
		}
	}
	samples, sr, err := wavio.ReadMono(o.reference)
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}
	if skip := int(o.skip * float64(sr)); skip > 0 && skip < len(samples) {
		samples = samples[skip:]
	}
	h := max(1, min(o.harmonics, synth.Harmonics))
	target, err := analysis.SignalProfile(samples, sr, f0, h)
	if err != nil {
		return fmt.Errorf("reference profile: %w", err)
	}

	p, err := g.loadPatch()
	if err != nil {
		return err
	}
	cfg := fit.Config{
		Target:        target,
		Initial:       p.Curve,
		ControlPoints: o.points,
		Variant:       o.variant,
		Population:    o.pop,
		RoundEvals:    o.roundEvals,
		MaxEvals:      o.maxEvals,
		TimeBudget:    o.budget,
		Workers:       workers,
		Seed:          o.seed,
		TopK:          o.topK,
		Progress: func(pr fit.Progress) {
			fmt.Printf("Improved #%d eval=%d score=%.4f dB (%.1fs)\n", pr.Improve, pr.Eval, pr.Score, pr.Elapsed.Seconds())
		},
	}
	fmt.Printf("Fitting %d harmonics of %s at %.2f Hz (%d points, variant %s)\n", h, o.reference, f0, o.points, o.variant)
	res, err := fit.Run(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Start score=%.4f dB, best score=%.4f dB after %d evals in %.1fs\n",
		res.StartScore, res.Best.Score, res.Evals, res.Elapsed.Seconds())

	p.Curve = res.Best.Curve
	if err := preset.SaveJSON(o.output, p); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	fmt.Printf("Wrote %s\n", o.output)

	if o.report != "" {
		rep := fitReport{
			Reference:  o.reference,
			F0:         f0,
			Target:     target,
			StartScore: res.StartScore,
			BestScore:  res.Best.Score,
			Evals:      res.Evals,
			ElapsedS:   res.Elapsed.Seconds(),
			Variant:    o.variant,
			Top:        res.Top,
			Analysis:   analysis.Analyze(res.Best.Curve),
		}
		if err := writeJSONFile(o.report, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Wrote %s\n", o.report)
	}

	if o.renderPath != "" {
		if err := renderFitted(g, p, f0, o.renderPath); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		fmt.Printf("Wrote %s\n", o.renderPath)
	}
	return nil
}

func renderFitted(g *globalOptions, p *preset.Patch, f0 float64, path string) error {
	e, err := g.offlineEngine(p)
	if err != nil {
		return err
	}
	defer e.Close()
	hold := int64(g.sampleRate)
	events := []sequence.Event{
		{Frame: 0, Key: "fit", Hz: f0, On: true},
		{Frame: hold, Key: "fit"},
	}
	frames := int(hold) + int(p.Envelope.ReleaseMs/1000*float64(g.sampleRate)) + g.sampleRate/4
	return wavio.Write(path, sequence.Render(e, events, frames), g.sampleRate, 2)
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
