package sequence

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Pattern orders the four arpeggio degrees.
type Pattern string

const (
	PatternUp     Pattern = "up"
	PatternDown   Pattern = "down"
	PatternUpDown Pattern = "upDown"
	PatternRandom Pattern = "random"
	PatternChord  Pattern = "chord"
)

var patternSteps = map[Pattern][]int{
	PatternUp:     {0, 1, 2, 3},
	PatternDown:   {3, 2, 1, 0},
	PatternUpDown: {0, 1, 2, 3, 2, 1},
	PatternRandom: {0, 2, 1, 3},
	PatternChord:  {0, 1, 2, 3},
}

// Scales maps scale names to semitone intervals above the root.
var Scales = map[string][]int{
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10},
	"pentatonic": {0, 2, 4, 7, 9},
	"blues":      {0, 3, 5, 6, 7, 10},
	"dorian":     {0, 2, 3, 5, 7, 9, 10},
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Arpeggiator tempo limits in BPM.
const (
	MinArpTempo = 60
	MaxArpTempo = 200
)

// Arpeggiator cycles through scale degrees of a root note, one per
// sixteenth note, or strikes them together in chord mode.
type Arpeggiator struct {
	Root     string
	Scale    string
	Pattern  Pattern
	Octave   int
	TempoBPM float64
}

// NewArpeggiator returns the defaults: C major, upward, octave 4, 120 BPM.
func NewArpeggiator() Arpeggiator {
	return Arpeggiator{Root: "C", Scale: "major", Pattern: PatternUp, Octave: 4, TempoBPM: 120}
}

// PatternNames lists the supported patterns in alphabetical order.
func PatternNames() []string {
	names := make([]string, 0, len(patternSteps))
	for p := range patternSteps {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// Notes returns the key names of one pattern cycle. Scale degrees wrap
// within the octave; degrees past the end of the scale move up an octave.
func (a Arpeggiator) Notes() ([]string, error) {
	root := -1
	for i, n := range noteNames {
		if strings.EqualFold(n, a.Root) {
			root = i
		}
	}
	if root < 0 {
		return nil, fmt.Errorf("unknown root note %q", a.Root)
	}
	intervals, ok := Scales[strings.ToLower(a.Scale)]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q", a.Scale)
	}
	steps, ok := patternSteps[a.Pattern]
	if !ok {
		return nil, fmt.Errorf("unknown pattern %q", a.Pattern)
	}

	out := make([]string, len(steps))
	for i, s := range steps {
		degree := intervals[s%len(intervals)]
		octave := a.Octave + s/len(intervals)
		out[i] = noteNames[(root+degree)%12] + strconv.Itoa(octave)
	}
	return out, nil
}

// Events schedules the given number of sixteenth-note steps.
func (a Arpeggiator) Events(steps int, sampleRate int) ([]Event, error) {
	notes, err := a.Notes()
	if err != nil {
		return nil, err
	}
	chords := make([][]string, steps)
	for i := range chords {
		if a.Pattern == PatternChord {
			chords[i] = notes
		} else {
			chords[i] = []string{notes[i%len(notes)]}
		}
	}
	return schedule(chords, clampTempo(a.TempoBPM, MinArpTempo, MaxArpTempo), sampleRate)
}

func clampTempo(bpm, lo, hi float64) float64 {
	if math.IsNaN(bpm) || bpm < lo {
		return lo
	}
	if bpm > hi {
		return hi
	}
	return bpm
}
