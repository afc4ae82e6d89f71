package synth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/irsynth"
)

// MinSampleRate is the lowest rate NewEngine accepts.
const MinSampleRate = 8000

// MaxReleaseTails bounds the released voices kept fading. The clock of a
// headless engine only moves on Process, so past the bound the oldest tail
// is dropped.
const MaxReleaseTails = 128

type engineConfig struct {
	diffusionS    float64
	diffusionSeed int64
	impulsePath   string
	logger        *slog.Logger
}

// Option configures an Engine at construction.
type Option func(*engineConfig)

// WithDiffusion sets the length and seed of the generated diffusion impulse.
// A non-positive length disables diffusion, leaving the wet path unconvolved.
func WithDiffusion(seconds float64, seed int64) Option {
	return func(c *engineConfig) {
		c.diffusionS = seconds
		c.diffusionSeed = seed
	}
}

// WithImpulseWAV replaces the generated diffusion impulse with a WAV file.
func WithImpulseWAV(path string) Option {
	return func(c *engineConfig) { c.impulsePath = path }
}

// WithLogger routes engine logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Engine is the polyphonic synthesizer: the voice manager plus the shared
// signal graph. All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	sampleRate int
	logger     *slog.Logger
	output     Output
	active     bool

	tone      *ToneTable
	envelope  EnvelopeParams
	filter    FilterParams
	effects   EffectsParams
	masterPct float64

	voices map[string]*Voice // held notes
	tails  []*Voice          // released notes still fading
	graph  *signalGraph
	frame  int64
	mono   []float32
}

// NewEngine builds the full signal graph. The engine starts inactive: note-ons
// are ignored until Start succeeds.
func NewEngine(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate < MinSampleRate {
		return nil, fmt.Errorf("sample rate too low: %d", sampleRate)
	}
	cfg := engineConfig{
		diffusionS:    2.0,
		diffusionSeed: 1,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	graph, err := newSignalGraph(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("build signal graph: %w", err)
	}
	switch {
	case cfg.impulsePath != "":
		if err := graph.diffuse.SetIRFromWAV(cfg.impulsePath); err != nil {
			return nil, fmt.Errorf("load impulse: %w", err)
		}
	case cfg.diffusionS > 0:
		ir := irsynth.DefaultDiffusionConfig()
		ir.SampleRate = sampleRate
		ir.DurationS = cfg.diffusionS
		ir.Seed = cfg.diffusionSeed
		l, r, err := irsynth.GenerateDiffusion(ir)
		if err != nil {
			return nil, fmt.Errorf("generate diffusion impulse: %w", err)
		}
		if err := graph.diffuse.SetIR(l, r); err != nil {
			return nil, fmt.Errorf("install diffusion impulse: %w", err)
		}
	}

	e := &Engine{
		sampleRate: sampleRate,
		logger:     cfg.logger,
		tone:       defaultTone,
		envelope:   DefaultEnvelope(),
		filter:     DefaultFilter(),
		masterPct:  DefaultMasterVolume,
		voices:     make(map[string]*Voice),
		graph:      graph,
	}
	e.logger.Debug("engine built", "sample_rate", sampleRate, "impulse_frames", graph.diffuse.IRLen())
	return e, nil
}

// SampleRate returns the engine's sample rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Start hands the engine to out and marks it active. Start may block while
// the output waits for the host; on failure it returns an *InitError and the
// engine stays inactive, so Start can be retried. Starting an active engine
// is a no-op.
func (e *Engine) Start(ctx context.Context, out Output) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	name := outputName(out)
	if out == nil {
		return &InitError{Output: name}
	}
	if err := out.Start(ctx, e); err != nil {
		e.logger.Error("output start failed", "output", name, "err", err)
		return &InitError{Output: name, Cause: err}
	}

	e.mu.Lock()
	e.output = out
	e.active = true
	e.mu.Unlock()
	e.logger.Info("engine active", "output", name)
	return nil
}

// Active reports whether Start has succeeded.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Close silences every voice, deactivates the engine and closes the output
// when it implements io.Closer.
func (e *Engine) Close() error {
	e.mu.Lock()
	for _, v := range e.voices {
		v.stop(e.frame)
	}
	clear(e.voices)
	e.tails = nil
	out := e.output
	e.output = nil
	e.active = false
	e.mu.Unlock()

	if c, ok := out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NoteOn starts a voice for key at hz with the current envelope.
func (e *Engine) NoteOn(key string, hz float64) {
	e.mu.Lock()
	env := e.envelope
	e.mu.Unlock()
	e.NoteOnWithEnvelope(key, hz, env)
}

// NoteOnWithEnvelope starts a voice for key at hz with an explicit envelope.
// A voice already held on key is stopped at once. Note-ons on an inactive
// engine and non-positive or non-finite frequencies are dropped.
func (e *Engine) NoteOnWithEnvelope(key string, hz float64, env EnvelopeParams) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		e.logger.Debug("note-on dropped, engine inactive", "key", key)
		return
	}
	if !isFinite(hz) || hz <= 0 {
		e.logger.Debug("note-on dropped, bad frequency", "key", key, "hz", hz)
		return
	}
	hz = math.Min(hz, 0.5*float64(e.sampleRate))

	if old, ok := e.voices[key]; ok {
		old.stop(e.frame)
	}
	e.voices[key] = newVoice(key, hz, e.sampleRate, e.tone, env, e.frame)
}

// NoteOff releases the voice held on key. Unknown keys are ignored.
func (e *Engine) NoteOff(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noteOff(key)
}

func (e *Engine) noteOff(key string) {
	v, ok := e.voices[key]
	if !ok {
		return
	}
	v.release(e.frame)
	delete(e.voices, key)
	e.tails = append(e.tails, v)
	e.pruneTails()
	if extra := len(e.tails) - MaxReleaseTails; extra > 0 {
		n := copy(e.tails, e.tails[extra:])
		clear(e.tails[n:])
		e.tails = e.tails[:n]
	}
}

// pruneTails drops released voices whose ramp has ended at the current frame.
func (e *Engine) pruneTails() {
	live := e.tails[:0]
	for _, v := range e.tails {
		if !v.finished(e.frame) {
			live = append(live, v)
		}
	}
	clear(e.tails[len(live):])
	e.tails = live
}

// StopAll releases every held voice.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.voices {
		e.noteOff(key)
	}
}

// UpdateWaveform rebuilds the tone from c. Voices already sounding keep the
// tone they started with. An empty curve leaves the tone unchanged.
func (e *Engine) UpdateWaveform(c curve.Curve) {
	if len(c) == 0 {
		e.logger.Debug("empty waveform ignored")
		return
	}
	tone := RebuildTone(c)

	e.mu.Lock()
	e.tone = tone
	e.mu.Unlock()
	e.logger.Debug("waveform updated", "points", len(c))
}

// Tone returns the table new voices will be created with.
func (e *Engine) Tone() *ToneTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tone
}

// SetEnvelope sets the envelope used by subsequent NoteOn calls.
func (e *Engine) SetEnvelope(p EnvelopeParams) {
	p = p.Sanitize()
	e.mu.Lock()
	e.envelope = p
	e.mu.Unlock()
}

// Envelope returns the envelope used by NoteOn.
func (e *Engine) Envelope() EnvelopeParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.envelope
}

// SetFilter retunes the shared filter without resetting its state.
func (e *Engine) SetFilter(p FilterParams) {
	p = p.Sanitize()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = p
	e.graph.setFilter(p)
}

// Filter returns the current filter settings after clamping.
func (e *Engine) Filter() FilterParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// SetEffects updates the send-effect amounts and the derived mix gains.
func (e *Engine) SetEffects(p EffectsParams) {
	p = p.Sanitize()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effects = p
	e.graph.setEffects(p)
}

// Effects returns the current effect amounts after clamping.
func (e *Engine) Effects() EffectsParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effects
}

// MixGains returns the dry and wet gain targets.
func (e *Engine) MixGains() (dry, wet float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.dry.Target(), e.graph.wet.Target()
}

// SetMasterVolume sets the output gain as a percentage, clamped to [0,100].
func (e *Engine) SetMasterVolume(pctValue float64) {
	v := pct(pctValue)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterPct = v
	e.graph.setMaster(v / 100)
}

// MasterVolume returns the master volume percentage.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterPct
}

// Process renders numFrames stereo interleaved frames and advances the clock.
func (e *Engine) Process(numFrames int) []float32 {
	out := make([]float32, 2*max(numFrames, 0))
	if numFrames <= 0 {
		return out
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.mono = grow(e.mono, numFrames)
	clear(e.mono)
	for _, v := range e.voices {
		v.Process(e.mono, e.frame)
	}
	for _, v := range e.tails {
		v.Process(e.mono, e.frame)
	}

	e.frame += int64(numFrames)
	e.pruneTails()

	e.graph.process(e.mono, out)
	return out
}

// Now returns the engine clock in frames.
func (e *Engine) Now() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// ActiveKeys returns the keys currently held, sorted.
func (e *Engine) ActiveKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.voices))
	for k := range e.voices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VoiceCount returns the number of sounding voices, including release tails.
func (e *Engine) VoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices) + len(e.tails)
}

// VoiceStage returns the envelope stage of the newest voice for key, or
// StageIdle when no voice is sounding.
func (e *Engine) VoiceStage(key string) Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.lookup(key)
	if v == nil {
		return StageIdle
	}
	return v.StageAt(e.frame)
}

// VoiceGain returns the envelope gain of the newest voice for key at the
// current frame, or 0 when no voice is sounding.
func (e *Engine) VoiceGain(key string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.lookup(key)
	if v == nil {
		return 0
	}
	return v.GainAt(e.frame)
}

func (e *Engine) lookup(key string) *Voice {
	if v, ok := e.voices[key]; ok {
		return v
	}
	for i := len(e.tails) - 1; i >= 0; i-- {
		if e.tails[i].key == key {
			return e.tails[i]
		}
	}
	return nil
}

func outputName(out Output) string {
	if n, ok := out.(interface{ Name() string }); ok {
		return n.Name()
	}
	if out == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", out)
}
