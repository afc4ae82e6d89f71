package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
	"github.com/cwbudde/algo-sketchsynth/preset"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestNotesModeEvents(t *testing.T) {
	o := playOptions{mode: "notes", notes: []string{"A4", "E5"}, hold: 0.5}
	events, frames, err := o.events(8000, synth.DefaultEnvelope())
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if !events[0].On || events[0].Frame != 0 || events[3].On || events[3].Frame != 4000 {
		t.Fatalf("unexpected schedule %+v", events)
	}
	if frames != 4000+2800 {
		t.Fatalf("frames = %d, want 6800", frames)
	}
	o.duration = 2
	if _, frames, _ = o.events(8000, synth.DefaultEnvelope()); frames != 16000 {
		t.Fatalf("explicit duration gave %d frames", frames)
	}
}

func TestPatternModes(t *testing.T) {
	arp := playOptions{mode: "arp", steps: 8, tempo: 120, arpRoot: "C", arpScale: "minor", arpPatt: "updown", arpOctave: 4}
	events, _, err := arp.events(48000, synth.DefaultEnvelope())
	if err != nil {
		t.Fatalf("arp: %v", err)
	}
	ons := 0
	for _, ev := range events {
		if ev.On {
			ons++
		}
	}
	if ons != 8 {
		t.Fatalf("arp note-ons = %d, want 8", ons)
	}

	steps := playOptions{mode: "steps", steps: 16, tempo: 100, arpOctave: 3, gridSeed: 5}
	if _, _, err := steps.events(48000, synth.DefaultEnvelope()); err != nil {
		t.Fatalf("steps: %v", err)
	}

	bad := playOptions{mode: "drone"}
	if _, _, err := bad.events(48000, synth.DefaultEnvelope()); err == nil {
		t.Fatal("expected unknown mode error")
	}
	badNote := playOptions{mode: "notes", notes: []string{"Q4"}}
	if _, _, err := badNote.events(48000, synth.DefaultEnvelope()); err == nil {
		t.Fatal("expected note parse error")
	}
}

func TestRenderCommandWritesWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "render.wav")
	err := execute(t, "render", "--sample-rate", "8000", "--diffusion", "0.05",
		"--shape", "square", "--notes", "A4,E5", "--hold", "0.1", "--normalize", "0.9", "-o", out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	mono, sr, err := wavio.ReadMono(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sr != 8000 {
		t.Fatalf("sample rate %d", sr)
	}
	if want := 800 + 2800; len(mono) != want {
		t.Fatalf("frames = %d, want %d", len(mono), want)
	}
	peak := 0.0
	for _, v := range mono {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		t.Fatal("render is silent")
	}
}

func TestRenderResamplesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "render.wav")
	err := execute(t, "render", "--sample-rate", "16000", "--diffusion", "0",
		"--duration", "0.5", "--out-rate", "8000", "-o", out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	mono, sr, err := wavio.ReadMono(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sr != 8000 || len(mono) < 3800 || len(mono) > 4200 {
		t.Fatalf("got sr=%d frames=%d", sr, len(mono))
	}
}

func TestRootRejectsConflictingCurveFlags(t *testing.T) {
	if err := execute(t, "analyze", "--shape", "sine", "--curve", "x.json"); err == nil {
		t.Fatal("expected mutual exclusion error")
	}
	if err := execute(t, "analyze", "--sample-rate", "100", "--shape", "sine"); err == nil {
		t.Fatal("expected sample rate error")
	}
	if err := execute(t, "analyze"); err == nil {
		t.Fatal("expected missing curve error")
	}
}

func TestAnalyzeCommand(t *testing.T) {
	if err := execute(t, "analyze", "--shape", "complex", "--harmonics", "8"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
}

func TestIRCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ir.wav")
	if err := execute(t, "ir", "--sample-rate", "8000", "--duration", "0.25", "--seed", "3", "-o", out); err != nil {
		t.Fatalf("ir: %v", err)
	}
	mono, sr, err := wavio.ReadMono(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sr != 8000 || len(mono) != 2000 {
		t.Fatalf("got sr=%d frames=%d", sr, len(mono))
	}
}

func TestFitCommandWritesPreset(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	sr := 22050
	n := sr
	tone := make([]float32, n)
	for i := range tone {
		ph := 2 * math.Pi * 220 * float64(i) / float64(sr)
		tone[i] = float32(0.5*math.Sin(ph) + 0.25*math.Sin(3*ph) + 0.1*math.Sin(5*ph))
	}
	if err := wavio.Write(ref, tone, sr, 1); err != nil {
		t.Fatalf("write ref: %v", err)
	}

	out := filepath.Join(dir, "fit.json")
	report := filepath.Join(dir, "report.json")
	err := execute(t, "fit", "--reference", ref, "--f0", "220", "--harmonics", "8",
		"--points", "6", "--pop", "4", "--round-evals", "40", "--max-evals", "40",
		"--workers", "1", "-o", out, "--report", report)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	p, err := preset.LoadJSON(out)
	if err != nil {
		t.Fatalf("load fitted preset: %v", err)
	}
	if len(p.Curve) != 7 {
		t.Fatalf("fitted curve has %d points, want 7", len(p.Curve))
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report missing: %v", err)
	}

	if err := execute(t, "fit", "--reference", ref, "--workers", "zero", "-o", out); err == nil {
		t.Fatal("expected workers parse error")
	}
}

func startedEngine(t *testing.T, releaseMs float64) *synth.Engine {
	t.Helper()
	e, err := synth.NewEngine(8000, synth.WithDiffusion(0, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(context.Background(), synth.Offline{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env := synth.DefaultEnvelope()
	env.ReleaseMs = releaseMs
	e.SetEnvelope(env)
	return e
}

func TestReleaseAndWaitLetsTailsFade(t *testing.T) {
	e := startedEngine(t, 150)
	e.NoteOn("A4", 440)
	e.Process(800)

	done := make(chan struct{})
	pulled := make(chan struct{})
	go func() {
		defer close(pulled)
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
				e.Process(200)
			}
		}
	}()
	releaseAndWait(context.Background(), e, 2*time.Second)
	close(done)
	<-pulled

	if n := e.VoiceCount(); n != 0 {
		t.Fatalf("release tail still sounding after wait: %d voices", n)
	}
}

func TestReleaseAndWaitIsBounded(t *testing.T) {
	e := startedEngine(t, 50)
	e.NoteOn("A4", 440)

	start := time.Now()
	releaseAndWait(context.Background(), e, 20*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 60*time.Millisecond {
		t.Fatalf("returned after %v, before the release could sound", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("wait overran its deadline: %v", elapsed)
	}
	if e.VoiceCount() != 1 {
		t.Fatalf("with no frames pulled the tail should still be pending")
	}
}
