package sequence

import (
	"context"
	"math/rand"
	"reflect"
	"testing"

	"github.com/cwbudde/algo-sketchsynth/synth"
)

type recorder struct {
	frames int64
	log    []string
}

func (r *recorder) NoteOn(key string, _ float64) { r.log = append(r.log, "+"+key) }
func (r *recorder) NoteOff(key string)           { r.log = append(r.log, "-"+key) }
func (r *recorder) Process(n int) []float32 {
	r.frames += int64(n)
	r.log = append(r.log, "@")
	return make([]float32, 2*n)
}

func TestArpeggiatorNotes(t *testing.T) {
	tests := []struct {
		arp  Arpeggiator
		want []string
	}{
		{Arpeggiator{Root: "C", Scale: "major", Pattern: PatternUp, Octave: 4}, []string{"C4", "D4", "E4", "F4"}},
		{Arpeggiator{Root: "C", Scale: "major", Pattern: PatternDown, Octave: 4}, []string{"F4", "E4", "D4", "C4"}},
		{Arpeggiator{Root: "A", Scale: "minor", Pattern: PatternUpDown, Octave: 3}, []string{"A3", "B3", "C3", "D3", "C3", "B3"}},
		{Arpeggiator{Root: "D", Scale: "pentatonic", Pattern: PatternRandom, Octave: 5}, []string{"D5", "F#5", "E5", "A5"}},
		{Arpeggiator{Root: "c#", Scale: "Blues", Pattern: PatternChord, Octave: 2}, []string{"C#2", "E2", "F#2", "G2"}},
	}
	for _, tt := range tests {
		got, err := tt.arp.Notes()
		if err != nil {
			t.Fatalf("%+v: %v", tt.arp, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%+v: got %v want %v", tt.arp, got, tt.want)
		}
	}

	for _, bad := range []Arpeggiator{
		{Root: "H", Scale: "major", Pattern: PatternUp},
		{Root: "C", Scale: "lydian", Pattern: PatternUp},
		{Root: "C", Scale: "major", Pattern: "sideways"},
	} {
		if _, err := bad.Notes(); err == nil {
			t.Fatalf("%+v: expected error", bad)
		}
	}
}

func TestArpeggiatorEventsAlternateNotes(t *testing.T) {
	arp := NewArpeggiator()
	events, err := arp.Events(5, 8000)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	// 120 BPM sixteenths are 125 ms, 1000 frames at 8 kHz.
	want := []Event{
		{Frame: 0, Key: "C4", On: true},
		{Frame: 1000, Key: "C4"},
		{Frame: 1000, Key: "D4", On: true},
		{Frame: 2000, Key: "D4"},
		{Frame: 2000, Key: "E4", On: true},
		{Frame: 3000, Key: "E4"},
		{Frame: 3000, Key: "F4", On: true},
		{Frame: 4000, Key: "F4"},
		{Frame: 4000, Key: "C4", On: true},
		{Frame: 5000, Key: "C4"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		got := events[i]
		if got.Frame != want[i].Frame || got.Key != want[i].Key || got.On != want[i].On {
			t.Fatalf("event %d = %+v, want %+v", i, got, want[i])
		}
		if got.On && got.Hz <= 0 {
			t.Fatalf("note-on without frequency: %+v", got)
		}
	}
}

func TestArpeggiatorChordStrikesAllNotes(t *testing.T) {
	arp := NewArpeggiator()
	arp.Pattern = PatternChord
	events, err := arp.Events(2, 8000)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	ons := 0
	for _, ev := range events {
		if ev.On && ev.Frame == 0 {
			ons++
		}
	}
	if ons != 4 || len(events) != 16 {
		t.Fatalf("chord step should start 4 notes, got %d of %d events", ons, len(events))
	}
}

func TestTempoIsClamped(t *testing.T) {
	arp := NewArpeggiator()
	arp.TempoBPM = 1000
	events, err := arp.Events(2, 8000)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if events[1].Frame != 600 {
		t.Fatalf("200 BPM step should be 600 frames, got %d", events[1].Frame)
	}
}

func TestStepSequencerTracksAndToggle(t *testing.T) {
	s := NewStepSequencer()
	if s.TrackKey(0) != "C4" || s.TrackKey(4) != "G5" || s.TrackKey(7) != "C5" {
		t.Fatalf("track keys: %s %s %s", s.TrackKey(0), s.TrackKey(4), s.TrackKey(7))
	}
	if err := s.Toggle(8, 0); err == nil {
		t.Fatalf("expected error for track out of range")
	}
	if err := s.Toggle(0, 0); err != nil || !s.Grid[0][0] {
		t.Fatalf("toggle on failed: %v", err)
	}
	if err := s.Toggle(0, 0); err != nil || s.Grid[0][0] {
		t.Fatalf("toggle off failed: %v", err)
	}

	s.Randomize(rand.New(rand.NewSource(3)))
	on := 0
	for _, track := range s.Grid {
		for _, cell := range track {
			if cell {
				on++
			}
		}
	}
	if on == 0 || on == Tracks*Steps {
		t.Fatalf("randomized grid should be partially filled, got %d", on)
	}
	s.Clear()
	if s.Grid != ([Tracks][Steps]bool{}) {
		t.Fatalf("Clear should empty the grid")
	}
}

func TestStepSequencerEventsLoopGrid(t *testing.T) {
	s := NewStepSequencer()
	_ = s.Toggle(0, 0)
	_ = s.Toggle(2, 0)
	_ = s.Toggle(5, 8)
	events, err := s.Events(Steps+1, 8000)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var ons []string
	for _, ev := range events {
		if ev.On {
			ons = append(ons, ev.Key)
		}
	}
	want := []string{"C4", "E4", "A5", "C4", "E4"}
	if !reflect.DeepEqual(ons, want) {
		t.Fatalf("note-ons = %v, want %v", ons, want)
	}
	last := events[len(events)-1]
	if last.On || last.Frame != int64(Steps+1)*1000 {
		t.Fatalf("final event should release at the end: %+v", last)
	}
}

func TestRenderInterleavesProcessAndEvents(t *testing.T) {
	r := &recorder{}
	events := []Event{
		{Frame: 100, Key: "B", On: true},
		{Frame: 0, Key: "A", On: true},
		{Frame: 100, Key: "A"},
		{Frame: 900, Key: "B"},
	}
	out := Render(r, events, 500)
	if len(out) != 1000 || r.frames != 500 {
		t.Fatalf("rendered %d samples over %d frames", len(out), r.frames)
	}
	want := []string{"+A", "@", "+B", "-A", "@"}
	if !reflect.DeepEqual(r.log, want) {
		t.Fatalf("log = %v, want %v", r.log, want)
	}
}

func TestRenderDrivesEngine(t *testing.T) {
	e, err := synth.NewEngine(8000, synth.WithDiffusion(0, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(context.Background(), synth.Offline{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, err := NewArpeggiator().Events(4, 8000)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	out := Render(e, events, 6000)
	if len(out) != 12000 {
		t.Fatalf("unexpected output length %d", len(out))
	}
	peak := float32(0)
	for _, v := range out {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		t.Fatalf("arpeggio should be audible")
	}
	if len(e.ActiveKeys()) != 0 {
		t.Fatalf("all notes should be released, still holding %v", e.ActiveKeys())
	}
}
