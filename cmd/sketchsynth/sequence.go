package main

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/sequence"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

// playOptions describe what to play, shared by render and play.
type playOptions struct {
	mode      string
	notes     []string
	hold      float64
	duration  float64
	tempo     float64
	steps     int
	arpRoot   string
	arpScale  string
	arpPatt   string
	arpOctave int
	gridSeed  int64
}

func (o *playOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.mode, "mode", "notes", "What to play: notes, arp or steps")
	f.StringSliceVar(&o.notes, "notes", []string{"A4"}, "Key names held together in notes mode")
	f.Float64Var(&o.hold, "hold", 1.0, "Seconds before note-off in notes mode")
	f.Float64Var(&o.duration, "duration", 0, "Total seconds; 0 sizes to the pattern plus release tail")
	f.Float64Var(&o.tempo, "tempo", 120, "Tempo in BPM for arp and steps modes")
	f.IntVar(&o.steps, "steps", 32, "Sixteenth-note steps to schedule in arp and steps modes")
	f.StringVar(&o.arpRoot, "root", "C", "Arpeggiator root note")
	f.StringVar(&o.arpScale, "scale", "major", "Arpeggiator scale (major, minor, pentatonic, blues, dorian)")
	f.StringVar(&o.arpPatt, "pattern", "up", "Arpeggiator pattern ("+strings.Join(sequence.PatternNames(), ", ")+")")
	f.IntVar(&o.arpOctave, "octave", 4, "Base octave for arp and steps modes")
	f.Int64Var(&o.gridSeed, "grid-seed", 1, "Seed for the randomized step grid")
}

// events schedules the selected mode and returns the number of frames to
// render so the last release fully decays.
func (o *playOptions) events(sampleRate int, env synth.EnvelopeParams) ([]sequence.Event, int, error) {
	var events []sequence.Event
	var err error
	switch strings.ToLower(o.mode) {
	case "notes":
		if len(o.notes) == 0 {
			return nil, 0, fmt.Errorf("no notes given")
		}
		if o.hold < 0 {
			return nil, 0, fmt.Errorf("--hold must be >= 0")
		}
		off := int64(math.Round(o.hold * float64(sampleRate)))
		for _, k := range o.notes {
			hz, ferr := synth.NoteFrequency(k)
			if ferr != nil {
				return nil, 0, ferr
			}
			events = append(events, sequence.Event{Frame: 0, Key: k, Hz: hz, On: true})
		}
		for _, k := range o.notes {
			events = append(events, sequence.Event{Frame: off, Key: k})
		}
	case "arp":
		a := sequence.Arpeggiator{
			Root:     o.arpRoot,
			Scale:    o.arpScale,
			Pattern:  sequence.Pattern(o.arpPatt),
			Octave:   o.arpOctave,
			TempoBPM: o.tempo,
		}
		events, err = a.Events(o.steps, sampleRate)
	case "steps":
		s := sequence.NewStepSequencer()
		s.Octave = o.arpOctave
		s.TempoBPM = o.tempo
		s.Randomize(rand.New(rand.NewSource(o.gridSeed)))
		events, err = s.Events(o.steps, sampleRate)
	default:
		return nil, 0, fmt.Errorf("unknown mode %q (use notes, arp or steps)", o.mode)
	}
	if err != nil {
		return nil, 0, err
	}

	if o.duration > 0 {
		return events, int(math.Round(o.duration * float64(sampleRate))), nil
	}
	var last int64
	for _, ev := range events {
		last = max(last, ev.Frame)
	}
	tail := (env.ReleaseMs/1000 + 0.25) * float64(sampleRate)
	return events, int(last) + int(math.Round(tail)), nil
}
