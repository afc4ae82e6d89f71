// Package fit searches for a drawn curve whose rebuilt tone matches a target
// harmonic profile, using mayfly rounds spread over worker goroutines.
package fit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/synth"
	"github.com/cwbudde/mayfly"
)

// Config controls one fitting run.
type Config struct {
	// Target is the amplitude of harmonics 1..len(Target), any scale.
	Target []float64
	// Initial seeds the search. Nil starts from a sine.
	Initial curve.Curve

	ControlPoints int
	Variant       string
	Population    int
	RoundEvals    int
	MaxEvals      int
	TimeBudget    time.Duration
	Workers       int // 0 = GOMAXPROCS
	Seed          int64
	TopK          int

	// Progress, when set, is called after every improvement.
	Progress func(Progress)
}

// Progress describes a new best candidate.
type Progress struct {
	Eval    int
	Improve int
	Score   float64
	Elapsed time.Duration
}

// Candidate is one evaluated curve.
type Candidate struct {
	Eval  int         `json:"eval"`
	Score float64     `json:"score"`
	Curve curve.Curve `json:"curve"`
}

// Result is the outcome of Run.
type Result struct {
	Best       Candidate
	StartScore float64
	Top        []Candidate
	Evals      int
	Elapsed    time.Duration
}

// DefaultConfig returns a modest search over 16 control points.
func DefaultConfig() Config {
	return Config{
		ControlPoints: 16,
		Variant:       "ma",
		Population:    12,
		RoundEvals:    480,
		MaxEvals:      4000,
		TimeBudget:    2 * time.Minute,
		Seed:          1,
		TopK:          5,
	}
}

// Variants lists the accepted mayfly variant names.
func Variants() []string {
	return []string{"ma", "desma", "olce", "eobbma", "gsasma", "mpma", "aoblmoa"}
}

func (c *Config) validate() error {
	if len(c.Target) == 0 {
		return errors.New("empty target profile")
	}
	if len(c.Target) > synth.Harmonics {
		c.Target = c.Target[:synth.Harmonics]
	}
	if c.ControlPoints < 2 {
		return fmt.Errorf("control points must be >= 2, got %d", c.ControlPoints)
	}
	if c.Population < 2 {
		return fmt.Errorf("population must be >= 2, got %d", c.Population)
	}
	if c.MaxEvals < 1 {
		return fmt.Errorf("max evals must be >= 1, got %d", c.MaxEvals)
	}
	if c.RoundEvals < 1 {
		c.RoundEvals = c.MaxEvals
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = time.Hour
	}
	if c.TopK < 1 {
		c.TopK = 1
	}
	c.Variant = strings.ToLower(strings.TrimSpace(c.Variant))
	if c.Variant == "" {
		c.Variant = "ma"
	}
	if _, err := newMayflyConfig(c.Variant, c.Population, c.ControlPoints, 1); err != nil {
		return err
	}
	return nil
}

// CurveFromPosition maps normalized optimizer coordinates to a closed curve:
// pos[i] sets the height of the i-th of len(pos) evenly spaced points and
// the cycle ends where it started.
func CurveFromPosition(pos []float64) curve.Curve {
	k := len(pos)
	c := make(curve.Curve, k+1)
	for i, v := range pos {
		c[i] = curve.Point{X: 100 * float64(i) / float64(k), Y: 100 * clamp01(v)}
	}
	if k > 0 {
		c[k] = curve.Point{X: 100, Y: c[0].Y}
	}
	return c
}

// PositionFromCurve samples c at k evenly spaced points, the inverse of
// CurveFromPosition for curves it produced.
func PositionFromCurve(c curve.Curve, k int) []float64 {
	cycle := synth.Resample(c, k)
	pos := make([]float64, k)
	for i, v := range cycle {
		pos[i] = clamp01((v + 1) / 2)
	}
	return pos
}

// Profile is the harmonic profile of the tone an engine would build from c.
func Profile(c curve.Curve, harmonics int) ([]float64, error) {
	tbl := synth.RebuildTone(c).Wavetable(synth.Harmonics)
	cycle := make([]float64, len(tbl))
	for i, v := range tbl {
		cycle[i] = float64(v)
	}
	return analysis.HarmonicProfile(cycle, harmonics)
}

// Score is the profile distance in dB between c and target; lower is better.
func Score(c curve.Curve, target []float64) (float64, error) {
	p, err := Profile(c, len(target))
	if err != nil {
		return 0, err
	}
	return analysis.ProfileDistance(p, target), nil
}

type state struct {
	mu   sync.Mutex
	best Candidate
	top  []Candidate
}

func (s *state) bestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best.Score
}

// Run optimizes control-point heights until MaxEvals or TimeBudget runs out.
func Run(cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	deadline := start.Add(cfg.TimeBudget)

	init := cfg.Initial
	if len(init) == 0 {
		init = curve.Sine()
	}
	initPos := PositionFromCurve(init, cfg.ControlPoints)
	initCurve := CurveFromPosition(initPos)
	initScore, err := Score(initCurve, cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	first := Candidate{Eval: 1, Score: initScore, Curve: initCurve}
	st := &state{best: first, top: []Candidate{first}}

	var evals int64 = 1
	var rounds int64
	var improves int64

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(workers, 1)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				remaining := cfg.MaxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				round := atomic.AddInt64(&rounds, 1)
				budget := min(cfg.RoundEvals, remaining)
				iters := max(1, budget/(2*cfg.Population))

				mc, err := newMayflyConfig(cfg.Variant, cfg.Population, cfg.ControlPoints, iters)
				if err != nil {
					return
				}
				mc.Rand = rand.New(rand.NewSource(cfg.Seed + round*7919))
				mc.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return st.bestScore() + 1
					}
					evalNum, ok := reserveEval(&evals, cfg.MaxEvals)
					if !ok {
						return st.bestScore() + 1
					}
					c := CurveFromPosition(pos)
					score, err := Score(c, cfg.Target)
					if err != nil || math.IsNaN(score) {
						return st.bestScore() + 0.8
					}

					cand := Candidate{Eval: int(evalNum), Score: score, Curve: c}
					st.mu.Lock()
					st.top = updateTop(st.top, cfg.TopK, cand)
					improved := score < st.best.Score
					if improved {
						st.best = cand
					}
					st.mu.Unlock()

					if improved && cfg.Progress != nil {
						cfg.Progress(Progress{
							Eval:    int(evalNum),
							Improve: int(atomic.AddInt64(&improves, 1)),
							Score:   score,
							Elapsed: time.Since(start),
						})
					}
					return score
				}
				if _, err := runMayfly(mc); err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	st.mu.Lock()
	defer st.mu.Unlock()
	return &Result{
		Best:       st.best,
		StartScore: initScore,
		Top:        append([]Candidate(nil), st.top...),
		Evals:      int(atomic.LoadInt64(&evals)),
		Elapsed:    time.Since(start),
	}, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func updateTop(top []Candidate, topK int, c Candidate) []Candidate {
	top = append(top, c)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score == top[j].Score {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Score < top[j].Score
	})
	if len(top) > topK {
		top = top[:topK]
	}
	return top
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
