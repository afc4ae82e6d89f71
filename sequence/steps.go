package sequence

import (
	"fmt"
	"math/rand"
	"strconv"
)

// Step grid geometry.
const (
	Tracks = 8
	Steps  = 16
)

// Step sequencer tempo limits in BPM.
const (
	MinStepTempo = 80
	MaxStepTempo = 180
)

var trackNotes = [Tracks]string{"C", "D", "E", "F", "G", "A", "B", "C"}

// StepSequencer is an 8-track, 16-step grid. Each track plays one note.
type StepSequencer struct {
	Grid     [Tracks][Steps]bool
	Octave   int
	TempoBPM float64
}

// NewStepSequencer returns an empty grid at octave 4 and 120 BPM.
func NewStepSequencer() *StepSequencer {
	return &StepSequencer{Octave: 4, TempoBPM: 120}
}

// TrackKey is the key name a track plays. The upper four tracks sound an
// octave higher.
func (s *StepSequencer) TrackKey(track int) string {
	return trackNotes[track] + strconv.Itoa(s.Octave+track/4)
}

// Toggle flips one cell of the grid.
func (s *StepSequencer) Toggle(track, step int) error {
	if track < 0 || track >= Tracks || step < 0 || step >= Steps {
		return fmt.Errorf("cell (%d,%d) outside %dx%d grid", track, step, Tracks, Steps)
	}
	s.Grid[track][step] = !s.Grid[track][step]
	return nil
}

// Clear turns every cell off.
func (s *StepSequencer) Clear() {
	s.Grid = [Tracks][Steps]bool{}
}

// Randomize switches each cell on with probability 0.3.
func (s *StepSequencer) Randomize(rng *rand.Rand) {
	for t := range s.Grid {
		for i := range s.Grid[t] {
			s.Grid[t][i] = rng.Float64() > 0.7
		}
	}
}

// Events schedules the given number of steps, looping the grid.
func (s *StepSequencer) Events(steps int, sampleRate int) ([]Event, error) {
	chords := make([][]string, steps)
	for i := range chords {
		col := i % Steps
		for t := 0; t < Tracks; t++ {
			if s.Grid[t][col] {
				chords[i] = append(chords[i], s.TrackKey(t))
			}
		}
	}
	return schedule(chords, clampTempo(s.TempoBPM, MinStepTempo, MaxStepTempo), sampleRate)
}
