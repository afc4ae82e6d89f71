package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/device"
	"github.com/cwbudde/algo-sketchsynth/sequence"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

type playCmdOptions struct {
	play         playOptions
	bufferFrames int
	startTimeout time.Duration
}

func newPlayCmd(g *globalOptions) *cobra.Command {
	o := &playCmdOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play notes or a pattern on the default audio device",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runPlay(g, o) },
	}
	o.play.register(cmd)
	cmd.Flags().IntVar(&o.bufferFrames, "buffer-frames", device.DefaultBufferFrames, "Device buffer size in frames")
	cmd.Flags().DurationVar(&o.startTimeout, "start-timeout", 5*time.Second, "How long to wait for the audio device")
	return cmd
}

func runPlay(g *globalOptions, o *playCmdOptions) error {
	p, err := g.loadPatch()
	if err != nil {
		return err
	}
	e, err := g.newEngine(p)
	if err != nil {
		return err
	}

	out := device.New(g.sampleRate, o.bufferFrames)
	startCtx, cancel := context.WithTimeout(context.Background(), o.startTimeout)
	err = e.Start(startCtx, out)
	cancel()
	if err != nil {
		return err
	}
	defer e.Close()

	events, frames, err := o.play.events(g.sampleRate, p.Envelope)
	if err != nil {
		return err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Frame < events[j].Frame })
	total := framesToDuration(int64(frames), g.sampleRate)
	fmt.Printf("Playing %s mode for %.2f s on %s (latency %v, curve: %s)\n",
		o.play.mode, total.Seconds(), out.Name(), out.Latency(), curveLabel(g, p))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	for i := 0; i < len(events); {
		j := i
		for j < len(events) && events[j].Frame == events[i].Frame {
			j++
		}
		if !sleepUntil(ctx, start.Add(framesToDuration(events[i].Frame, g.sampleRate))) {
			e.StopAll()
			return nil
		}
		sequence.Dispatch(e, events[i:j])
		i = j
	}
	if sleepUntil(ctx, start.Add(total)) {
		releaseAndWait(ctx, e, out.Latency())
		return nil
	}
	e.StopAll()
	return nil
}

// releaseAndWait releases every voice and blocks until the tails have faded,
// at most the envelope's release time plus slack for the device buffer.
func releaseAndWait(ctx context.Context, e *synth.Engine, slack time.Duration) {
	e.StopAll()
	release := time.Duration(e.Envelope().ReleaseMs * float64(time.Millisecond))
	deadline := time.Now().Add(release + slack)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for e.VoiceCount() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

// sleepUntil waits for t and reports false if ctx ended first.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
