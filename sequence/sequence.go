// Package sequence schedules tempo-locked note patterns against an engine
// clock measured in frames.
package sequence

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-sketchsynth/synth"
)

// Event is a note change at an absolute frame.
type Event struct {
	Frame int64
	Key   string
	Hz    float64
	On    bool
}

// Player receives note changes. *synth.Engine satisfies it.
type Player interface {
	NoteOn(key string, hz float64)
	NoteOff(key string)
}

// Renderer is a Player that can also render audio.
type Renderer interface {
	Player
	Process(numFrames int) []float32
}

// StepFrames is the length of one sixteenth note in fractional frames.
func StepFrames(tempoBPM float64, sampleRate int) float64 {
	return float64(sampleRate) * 60.0 / tempoBPM / 4.0
}

// schedule turns per-step chords into events. Every step first releases the
// notes the previous step started; the final step is released one step later.
func schedule(chords [][]string, tempoBPM float64, sampleRate int) ([]Event, error) {
	step := StepFrames(tempoBPM, sampleRate)
	frameAt := func(i int) int64 { return int64(math.Round(float64(i) * step)) }

	var events []Event
	var held []string
	for i, chord := range chords {
		at := frameAt(i)
		for _, k := range held {
			events = append(events, Event{Frame: at, Key: k})
		}
		held = held[:0]
		for _, k := range chord {
			hz, err := synth.NoteFrequency(k)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			events = append(events, Event{Frame: at, Key: k, Hz: hz, On: true})
			held = append(held, k)
		}
	}
	end := frameAt(len(chords))
	for _, k := range held {
		events = append(events, Event{Frame: end, Key: k})
	}
	return events, nil
}

// Dispatch sends every event to p in order, ignoring frames.
func Dispatch(p Player, events []Event) {
	for _, ev := range events {
		if ev.On {
			p.NoteOn(ev.Key, ev.Hz)
		} else {
			p.NoteOff(ev.Key)
		}
	}
}

// Render plays events through r and returns totalFrames of stereo
// interleaved audio. Events are applied at the start of their frame;
// events at or past totalFrames are dropped.
func Render(r Renderer, events []Event, totalFrames int) []float32 {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	out := make([]float32, 0, 2*totalFrames)
	var now int64
	for i := 0; i < len(sorted); {
		at := sorted[i].Frame
		if at >= int64(totalFrames) {
			break
		}
		if at > now {
			out = append(out, r.Process(int(at-now))...)
			now = at
		}
		j := i
		for j < len(sorted) && sorted[j].Frame == at {
			j++
		}
		Dispatch(r, sorted[i:j])
		i = j
	}
	if rest := int64(totalFrames) - now; rest > 0 {
		out = append(out, r.Process(int(rest))...)
	}
	return out
}
