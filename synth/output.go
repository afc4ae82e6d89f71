package synth

import "context"

// Source produces stereo interleaved frames for an output.
type Source interface {
	Process(numFrames int) []float32
}

// Output is an audio sink the engine starts once. Start may wait for the
// host to grant playback (a permission gesture, device readiness) and must
// honour ctx while doing so.
type Output interface {
	Start(ctx context.Context, src Source) error
}

// Offline is an Output for pull-based rendering: it succeeds immediately and
// the caller drives Engine.Process itself.
type Offline struct{}

// Start implements Output.
func (Offline) Start(ctx context.Context, _ Source) error {
	return ctx.Err()
}
