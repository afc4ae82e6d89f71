package wavio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestStereoRoundTripAveragesChannels(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	n := 256
	write := func(name string, l, r float32) []float64 {
		left := make([]float32, n)
		right := make([]float32, n)
		for i := range n {
			left[i] = l
			right[i] = r
		}
		path := filepath.Join(dir, name)
		if err := WriteStereo(path, left, right, 22050); err != nil {
			t.Fatalf("write: %v", err)
		}
		mono, sr, err := ReadMono(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if sr != 22050 || len(mono) != n {
			t.Fatalf("got sr=%d frames=%d", sr, len(mono))
		}
		return mono
	}
	both := write("both.wav", 0.5, 0.5)
	one := write("one.wav", 0.5, 0)
	cancel := write("cancel.wav", 0.5, -0.5)
	if both[n/2] <= 0 {
		t.Fatalf("expected positive mono sample, got %f", both[n/2])
	}
	if ratio := one[n/2] / both[n/2]; math.Abs(ratio-0.5) > 0.01 {
		t.Fatalf("single channel ratio = %f, want 0.5", ratio)
	}
	if math.Abs(cancel[n/2]) > 1e-3*math.Abs(both[n/2]) {
		t.Fatalf("opposite channels should cancel, got %f", cancel[n/2])
	}
}

func TestClipChannelRepeatsLast(t *testing.T) {
	c := &Clip{SampleRate: 8000, Channels: 1, Data: []float32{1, 2, 3}}
	if c.Frames() != 3 {
		t.Fatalf("frames = %d", c.Frames())
	}
	r := c.Channel(1)
	if len(r) != 3 || r[2] != 3 {
		t.Fatalf("Channel(1) of mono clip = %v", r)
	}
}

func TestWriteStereoRejectsMismatch(t *testing.T) {
	err := WriteStereo(filepath.Join(t.TempDir(), "x.wav"), make([]float32, 2), make([]float32, 3), 44100)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if _, err := Decode(bytes.NewReader(nil)); err == nil {
		t.Fatal("empty stream should fail")
	}
}

func TestResampleInterleavedChangesLength(t *testing.T) {
	in := make([]float32, 2*4800)
	out, err := ResampleInterleaved(in, 2, 48000, 24000)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	frames := len(out) / 2
	if frames < 2300 || frames > 2500 {
		t.Fatalf("resampled frames = %d, want about 2400", frames)
	}
	same, _ := ResampleInterleaved(in, 2, 44100, 44100)
	if len(same) != len(in) {
		t.Fatal("equal rates should pass through")
	}
}

func TestPeakNormalize(t *testing.T) {
	s := []float32{0.1, -0.4, 0.2}
	PeakNormalize(s, 0.8)
	if math.Abs(float64(s[1])+0.8) > 1e-6 {
		t.Fatalf("peak sample = %f, want -0.8", s[1])
	}
	z := []float32{0, 0}
	PeakNormalize(z, 1)
	if z[0] != 0 || z[1] != 0 {
		t.Fatal("silence must stay silent")
	}
	if RMS(nil) != 0 || Peak(nil) != 0 {
		t.Fatal("empty input should measure zero")
	}
}
