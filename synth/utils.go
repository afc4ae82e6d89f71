package synth

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-approx"
)

// Tuning reference.
const (
	concertA     = 440.0
	concertANote = 69
)

// noteHz is the equal-tempered frequency of a MIDI note.
func noteHz(note int) float64 {
	octaves := float32(note-concertANote) / 12
	return concertA * float64(approx.FastExp(octaves*math.Ln2))
}

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5,
	"F#": 6, "GB": 6, "G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// ParseNote converts a key name such as "C4", "F#3" or "Bb5" to a MIDI note number.
func ParseNote(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') && s[i] != '-' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	pc, ok := pitchClasses[s[:i]]
	if !ok {
		return 0, fmt.Errorf("invalid pitch class in %q", name)
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in %q", name)
	}
	note := (octave+1)*12 + pc
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("note %q out of MIDI range", name)
	}
	return note, nil
}

// NoteFrequency returns the equal-tempered frequency of a key name (A4 = 440 Hz).
func NoteFrequency(name string) (float64, error) {
	note, err := ParseNote(name)
	if err != nil {
		return 0, err
	}
	return noteHz(note), nil
}

// NoteName formats a MIDI note number as a key name using sharps.
func NoteName(note int) string {
	names := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := note/12 - 1
	return names[((note%12)+12)%12] + strconv.Itoa(octave)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func msToFrames(ms float64, sampleRate int) int64 {
	return int64(math.Round(ms / 1000 * float64(sampleRate)))
}
