//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"os"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/preset"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

const blockFrames = 128

var (
	engine       *synth.Engine
	lastCurve    curve.Curve
	outputBuffer []float32
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmStopAll", js.FuncOf(wasmStopAll))
	js.Global().Set("wasmUpdateWaveform", js.FuncOf(wasmUpdateWaveform))
	js.Global().Set("wasmAnalyze", js.FuncOf(wasmAnalyze))
	js.Global().Set("wasmSetEnvelope", js.FuncOf(wasmSetEnvelope))
	js.Global().Set("wasmSetFilter", js.FuncOf(wasmSetFilter))
	js.Global().Set("wasmSetEffects", js.FuncOf(wasmSetEffects))
	js.Global().Set("wasmSetMasterVolume", js.FuncOf(wasmSetMasterVolume))
	js.Global().Set("wasmLoadIR", js.FuncOf(wasmLoadIR))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM sketchsynth module loaded")
	<-c
}

// wasmInit(sampleRate) builds the engine. The AudioWorklet pulls blocks, so
// the engine is started against an offline output.
func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	e, err := newEngine(args[0].Int())
	if err != nil {
		println("init failed:", err.Error())
		return nil
	}
	engine = e
	outputBuffer = make([]float32, blockFrames*2)
	println("Engine initialized at", args[0].Int(), "Hz")
	return nil
}

func newEngine(sampleRate int, opts ...synth.Option) (*synth.Engine, error) {
	e, err := synth.NewEngine(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Start(context.Background(), synth.Offline{}); err != nil {
		return nil, err
	}
	return e, nil
}

// wasmNoteOn(key[, hz]) starts a voice. Without hz the key name is tuned.
func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	key := args[0].String()
	var hz float64
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		hz = args[1].Float()
	} else {
		f, err := synth.NoteFrequency(key)
		if err != nil {
			println("noteOn:", err.Error())
			return nil
		}
		hz = f
	}
	engine.NoteOn(key, hz)
	return nil
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	engine.NoteOff(args[0].String())
	return nil
}

func wasmStopAll(this js.Value, args []js.Value) interface{} {
	if engine != nil {
		engine.StopAll()
	}
	return nil
}

// wasmUpdateWaveform(pointsJSON, prepare) installs a curve and returns its
// analysis as JSON.
func wasmUpdateWaveform(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	c, ok := parseCurve(args[0])
	if !ok {
		return nil
	}
	if len(args) > 1 && args[1].Truthy() {
		c = curve.Prepare(c)
	}
	engine.UpdateWaveform(c)
	if len(c) > 0 {
		lastCurve = c
	}
	return analysisJSON(c)
}

func wasmAnalyze(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	c, ok := parseCurve(args[0])
	if !ok {
		return nil
	}
	return analysisJSON(c)
}

// wasmSetEnvelope(attackMs, decayMs, sustainPct, releaseMs)
func wasmSetEnvelope(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 || engine == nil {
		return nil
	}
	engine.SetEnvelope(synth.EnvelopeParams{
		AttackMs:   args[0].Float(),
		DecayMs:    args[1].Float(),
		SustainPct: args[2].Float(),
		ReleaseMs:  args[3].Float(),
	})
	return nil
}

// wasmSetFilter(cutoffHz, resonance, kind)
func wasmSetFilter(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || engine == nil {
		return nil
	}
	engine.SetFilter(synth.FilterParams{
		CutoffHz: args[0].Float(),
		Q:        args[1].Float(),
		Kind:     synth.FilterKind(args[2].String()),
	})
	return nil
}

// wasmSetEffects(reverb, delay, distortion[, chorus])
func wasmSetEffects(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || engine == nil {
		return nil
	}
	p := synth.EffectsParams{
		ReverbPct:     args[0].Float(),
		DelayPct:      args[1].Float(),
		DistortionPct: args[2].Float(),
	}
	if len(args) > 3 {
		p.ChorusPct = args[3].Float()
	}
	engine.SetEffects(p)
	return nil
}

func wasmSetMasterVolume(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	engine.SetMasterVolume(args[0].Float())
	return nil
}

// wasmLoadIR(arrayBuffer) rebuilds the engine around a WAV impulse, keeping
// every setting and the drawn curve. Sounding notes are dropped.
func wasmLoadIR(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}

	arrayBuffer := args[0]
	length := arrayBuffer.Get("byteLength").Int()
	if length == 0 {
		println("IR data is empty")
		return nil
	}
	irData := make([]byte, length)
	js.CopyBytesToGo(irData, js.Global().Get("Uint8Array").New(arrayBuffer))

	tmpFile := "/tmp/ir.wav"
	if err := os.WriteFile(tmpFile, irData, 0o644); err != nil {
		println("Failed to write IR file:", err.Error())
		return nil
	}

	patch := &preset.Patch{
		Curve:        lastCurve,
		Envelope:     engine.Envelope(),
		Filter:       engine.Filter(),
		Effects:      engine.Effects(),
		MasterVolume: engine.MasterVolume(),
	}
	next, err := newEngine(engine.SampleRate(), synth.WithImpulseWAV(tmpFile))
	if err != nil {
		println("IR load failed:", err.Error())
		return nil
	}
	patch.Apply(next)
	old := engine
	engine = next
	old.Close()

	println("IR loaded successfully:", length, "bytes")
	return nil
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return 0
	}
	numFrames := min(args[0].Int(), blockFrames)

	output := engine.Process(numFrames)
	copy(outputBuffer, output)

	// Pointer into WASM linear memory
	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}

func parseCurve(v js.Value) (curve.Curve, bool) {
	var c curve.Curve
	if err := json.Unmarshal([]byte(v.String()), &c); err != nil {
		println("bad curve JSON:", err.Error())
		return nil, false
	}
	return c, true
}

func analysisJSON(c curve.Curve) interface{} {
	b, err := json.Marshal(analysis.Analyze(c))
	if err != nil {
		return nil
	}
	return string(b)
}
