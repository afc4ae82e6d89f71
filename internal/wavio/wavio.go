// Package wavio reads and writes the WAV files the synthesizer consumes and
// produces, and converts audio between sample rates.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// BitDepth is the PCM resolution of every file this package writes.
const BitDepth = 16

// ErrInvalid marks input that is not a usable WAV stream.
var ErrInvalid = errors.New("invalid wav")

// Clip is decoded audio with interleaved samples.
type Clip struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames is the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels < 1 {
		return 0
	}
	return len(c.Data) / c.Channels
}

// Channel copies out one channel. Indexes past the last channel repeat it,
// so Channel(1) of a mono clip is the mono signal.
func (c *Clip) Channel(idx int) []float32 {
	idx = min(max(idx, 0), c.Channels-1)
	out := make([]float32, c.Frames())
	for i := range out {
		out[i] = c.Data[i*c.Channels+idx]
	}
	return out
}

// Mono averages all channels.
func (c *Clip) Mono() []float64 {
	out := make([]float64, c.Frames())
	for i := range out {
		var sum float64
		for _, v := range c.Data[i*c.Channels : (i+1)*c.Channels] {
			sum += float64(v)
		}
		out[i] = sum / float64(c.Channels)
	}
	return out
}

// Decode reads a whole WAV stream.
func Decode(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalid
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalid)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalid, buf.Format.SampleRate)
	}
	c := &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Data:       buf.Data,
	}
	if c.Frames() == 0 {
		return nil, fmt.Errorf("%w: no sample data", ErrInvalid)
	}
	return c, nil
}

// Read decodes the WAV file at path.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ReadMono decodes path and averages its channels.
func ReadMono(path string) ([]float64, int, error) {
	c, err := Read(path)
	if err != nil {
		return nil, 0, err
	}
	return c.Mono(), c.SampleRate, nil
}

// Resample converts in from fromRate to toRate. Equal rates return in as is.
func Resample(in []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", fromRate, toRate, err)
	}
	return r.Process(in), nil
}

// Resample32 is Resample for float32 signals.
func Resample32(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	out, err := Resample(widen(in), fromRate, toRate)
	if err != nil {
		return nil, err
	}
	return narrow(out), nil
}

// ResampleInterleaved converts interleaved frames channel by channel. The
// result is trimmed to the shortest converted channel.
func ResampleInterleaved(samples []float32, channels, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate || channels < 1 {
		return samples, nil
	}
	clip := &Clip{SampleRate: fromRate, Channels: channels, Data: samples}
	conv := make([][]float32, channels)
	frames := math.MaxInt
	for ch := range conv {
		c, err := Resample32(clip.Channel(ch), fromRate, toRate)
		if err != nil {
			return nil, err
		}
		conv[ch] = c
		frames = min(frames, len(c))
	}
	out := make([]float32, frames*channels)
	for i := range frames {
		for ch, c := range conv {
			out[i*channels+ch] = c[i]
		}
	}
	return out, nil
}

// Encode writes 16-bit PCM to w. The encoder patches the header on close, so
// w must be seekable.
func Encode(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, 1)
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Write stores interleaved samples at path, creating parent directories.
func Write(path string, samples []float32, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteStereo interleaves left and right and stores them at path.
func WriteStereo(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d left, %d right", len(left), len(right))
	}
	data := make([]float32, 0, 2*len(left))
	for i, l := range left {
		data = append(data, l, right[i])
	}
	return Write(path, data, sampleRate, 2)
}

// RMS is the root mean square over all samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak is the largest absolute sample.
func Peak(samples []float32) float64 {
	m := 0.0
	for _, s := range samples {
		m = math.Max(m, math.Abs(float64(s)))
	}
	return m
}

// PeakNormalize scales samples in place so the loudest one reaches peak.
// Silence is left alone.
func PeakNormalize(samples []float32, peak float64) {
	m := Peak(samples)
	if m < 1e-9 {
		return
	}
	g := float32(peak / m)
	for i := range samples {
		samples[i] *= g
	}
}

func widen(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func narrow(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}
