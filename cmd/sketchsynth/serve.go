package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-sketchsynth/device"
	"github.com/cwbudde/algo-sketchsynth/internal/server"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

type serveOptions struct {
	port         int
	useDevice    bool
	bufferFrames int
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the engine over HTTP",
		Long: `Start an HTTP control surface for the engine.

With --device the engine plays on the default audio output. Without it the
engine runs headless and audio is fetched with GET /render?seconds=N.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return runServe(g, o) },
	}
	cmd.Flags().IntVarP(&o.port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&o.useDevice, "device", false, "Play on the default audio device")
	cmd.Flags().IntVar(&o.bufferFrames, "buffer-frames", device.DefaultBufferFrames, "Device buffer size in frames")
	return cmd
}

func runServe(g *globalOptions, o *serveOptions) error {
	p, err := g.loadPatch()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if g.verbose {
		logger = g.logger()
	}
	e, err := g.newEngine(p)
	if err != nil {
		return err
	}
	defer e.Close()

	var out synth.Output = synth.Offline{}
	if o.useDevice {
		out = device.New(g.sampleRate, o.bufferFrames)
	}
	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = e.Start(startCtx, out)
	cancel()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{Port: o.port, Headless: !o.useDevice, Logger: logger}, e)
	fmt.Printf("\n  sketchsynth listening on http://localhost:%d\n\n", o.port)
	return srv.Run(context.Background())
}
