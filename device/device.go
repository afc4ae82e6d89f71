// Package device plays an engine through the system audio output.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-sketchsynth/synth"
)

// DefaultBufferFrames is the render block size pulled per read.
const DefaultBufferFrames = 512

// audioContext is the part of *oto.Context the output drives.
type audioContext interface {
	NewPlayer(r io.Reader) audioPlayer
	Suspend() error
	Resume() error
}

type audioPlayer interface {
	SetBufferSize(bufferSize int)
	Play()
	Close() error
}

type otoContext struct{ *oto.Context }

func (c otoContext) NewPlayer(r io.Reader) audioPlayer { return c.Context.NewPlayer(r) }

// newContext opens the process-wide oto context. oto allows this exactly
// once per process, so an Output keeps the result for every later Start.
var newContext = func(opts *oto.NewContextOptions) (audioContext, chan struct{}, error) {
	c, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, nil, err
	}
	return otoContext{c}, ready, nil
}

// Output is a synth.Output backed by the platform audio device through oto.
type Output struct {
	sampleRate   int
	bufferFrames int

	mu        sync.Mutex
	octx      audioContext
	ready     chan struct{}
	suspended bool
	player    audioPlayer
}

// New returns an unstarted output. bufferFrames <= 0 selects the default.
func New(sampleRate, bufferFrames int) *Output {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}
	return &Output{sampleRate: sampleRate, bufferFrames: bufferFrames}
}

// Name identifies the output in errors and logs.
func (o *Output) Name() string { return "oto" }

// Latency is the approximate device buffer length.
func (o *Output) Latency() time.Duration {
	return time.Duration(float64(o.bufferFrames) / float64(o.sampleRate) * float64(time.Second))
}

// Start opens the device, waits until it is ready or ctx ends and begins
// pulling stereo frames from src. A Start that gave up waiting, or one after
// Close, reuses the context opened the first time.
func (o *Output) Start(ctx context.Context, src synth.Source) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		return nil
	}

	if o.octx == nil {
		octx, ready, err := newContext(&oto.NewContextOptions{
			SampleRate:   o.sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   2 * o.Latency(),
		})
		if err != nil {
			return fmt.Errorf("open audio context: %w", err)
		}
		o.octx, o.ready = octx, ready
	}
	select {
	case <-o.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if o.suspended {
		if err := o.octx.Resume(); err != nil {
			return fmt.Errorf("resume audio context: %w", err)
		}
		o.suspended = false
	}
	p := o.octx.NewPlayer(NewReader(src, o.bufferFrames))
	p.SetBufferSize(o.bufferFrames * frameBytes)
	p.Play()
	o.player = p
	return nil
}

// Close stops playback and suspends the device. The output can be started
// again afterwards.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if serr := o.octx.Suspend(); serr != nil {
		if err == nil {
			err = serr
		}
	} else {
		o.suspended = true
	}
	return err
}

const frameBytes = 2 * 4 // stereo float32

// Reader adapts a synth.Source to the byte stream oto consumes: interleaved
// stereo float32 little-endian.
type Reader struct {
	src       synth.Source
	maxFrames int
	pending   []byte
}

// NewReader renders at most maxFrames per Process call.
func NewReader(src synth.Source, maxFrames int) *Reader {
	if maxFrames <= 0 {
		maxFrames = DefaultBufferFrames
	}
	return &Reader{src: src, maxFrames: maxFrames}
}

// Read implements io.Reader. It never returns io.EOF: the engine renders
// silence when no voice is sounding.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) == 0 {
		frames := min(max(len(p)/frameBytes, 1), r.maxFrames)
		r.pending = encodeFloat32LE(r.pending[:0], r.src.Process(frames))
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

var _ io.Reader = (*Reader)(nil)

func encodeFloat32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
