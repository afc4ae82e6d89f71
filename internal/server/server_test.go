package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

func newTestServer(t *testing.T, headless, start bool) (*Server, *synth.Engine) {
	t.Helper()
	e, err := synth.NewEngine(22050, synth.WithDiffusion(0.05, 3))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if start {
		if err := e.Start(context.Background(), synth.Offline{}); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	t.Cleanup(func() { e.Close() })
	s := New(Config{Headless: headless, Logger: slog.New(slog.DiscardHandler)}, e)
	return s, e
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false, false)
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
}

func TestWaveformFromPresetRebuildsTone(t *testing.T) {
	s, e := newTestServer(t, false, true)
	before := e.Tone()
	rec := do(t, s, http.MethodPut, "/waveform?prepare=1", `{"preset":"square"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[waveformResponse](t, rec)
	if resp.Points != 101 {
		t.Fatalf("points = %d, want 101", resp.Points)
	}
	if resp.Analysis.Complexity == "" {
		t.Fatal("missing analysis")
	}
	if e.Tone() == before {
		t.Fatal("tone was not rebuilt")
	}
}

func TestWaveformEmptyCurveKeepsTone(t *testing.T) {
	s, e := newTestServer(t, false, true)
	before := e.Tone()
	rec := do(t, s, http.MethodPut, "/waveform", `{"curve":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if e.Tone() != before {
		t.Fatal("empty curve replaced the tone")
	}
}

func TestWaveformRejectsBadJSON(t *testing.T) {
	s, _ := newTestServer(t, false, true)
	if rec := do(t, s, http.MethodPut, "/waveform", `{"curve":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPut, "/waveform", `{"shape":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: %d", rec.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false, false)
	rec := do(t, s, http.MethodPost, "/analyze", `{"curve":[{"x":0,"y":50},{"x":50,"y":50},{"x":100,"y":50}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	res := decodeBody[analysis.Result](t, rec)
	if res.HarmonicRichness != 0 || res.Complexity != analysis.Low {
		t.Fatalf("flat curve analysis: %+v", res)
	}
}

func TestPresetRoutes(t *testing.T) {
	s, _ := newTestServer(t, false, false)
	rec := do(t, s, http.MethodGet, "/presets", "")
	list := decodeBody[map[string][]string](t, rec)
	if len(list["presets"]) < 7 {
		t.Fatalf("presets: %v", list)
	}
	if rec := do(t, s, http.MethodGet, "/presets/Sine", ""); rec.Code != http.StatusOK {
		t.Fatalf("sine preset: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/presets/kazoo", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown preset: %d", rec.Code)
	}
}

func TestNoteLifecycle(t *testing.T) {
	s, e := newTestServer(t, false, true)

	rec := do(t, s, http.MethodPost, "/notes/A4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("note on: %d %s", rec.Code, rec.Body.String())
	}
	n := decodeBody[noteResponse](t, rec)
	if math.Abs(n.Frequency-440) > 0.5 || n.Stage != "attack" {
		t.Fatalf("note response %+v", n)
	}

	rec = do(t, s, http.MethodPost, "/notes/C%234", `{"frequency":277.18}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sharp note: %d %s", rec.Code, rec.Body.String())
	}
	if got := e.ActiveKeys(); len(got) != 2 || got[0] != "A4" || got[1] != "C#4" {
		t.Fatalf("active keys %v", got)
	}

	if rec := do(t, s, http.MethodDelete, "/notes/A4", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("note off: %d", rec.Code)
	}
	if e.VoiceStage("A4") != synth.StageRelease {
		t.Fatalf("A4 stage %v, want release", e.VoiceStage("A4"))
	}
	if rec := do(t, s, http.MethodDelete, "/notes", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("stop all: %d", rec.Code)
	}
	if len(e.ActiveKeys()) != 0 {
		t.Fatalf("keys still held: %v", e.ActiveKeys())
	}
}

func TestNoteOnErrors(t *testing.T) {
	s, _ := newTestServer(t, false, true)
	if rec := do(t, s, http.MethodPost, "/notes/H9", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad key: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/notes/pad", `{"frequency":-1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad frequency: %d", rec.Code)
	}

	idle, e := newTestServer(t, false, false)
	if rec := do(t, idle, http.MethodPost, "/notes/A4", ""); rec.Code != http.StatusConflict {
		t.Fatalf("inactive engine: %d", rec.Code)
	}
	if e.VoiceCount() != 0 {
		t.Fatal("inactive engine started a voice")
	}
}

func TestParameterUpdatesArePartial(t *testing.T) {
	s, e := newTestServer(t, false, true)

	env := decodeBody[synth.EnvelopeParams](t, do(t, s, http.MethodPut, "/envelope", `{"attack_ms":50}`))
	if env.AttackMs != 50 || env.DecayMs != synth.DefaultEnvelope().DecayMs {
		t.Fatalf("envelope %+v", env)
	}

	f := decodeBody[synth.FilterParams](t, do(t, s, http.MethodPut, "/filter", `{"kind":"weird","cutoff_hz":99999}`))
	if f.Kind != synth.FilterLowpass || f.CutoffHz != synth.MaxCutoffHz || f.Q != 1 {
		t.Fatalf("filter %+v", f)
	}

	do(t, s, http.MethodPut, "/effects", `{"reverb_pct":50}`)
	dry, wet := e.MixGains()
	if math.Abs(dry-0.65) > 1e-9 || math.Abs(wet-0.4) > 1e-9 {
		t.Fatalf("mix gains dry=%f wet=%f", dry, wet)
	}

	vol := decodeBody[map[string]float64](t, do(t, s, http.MethodPut, "/volume", `{"master_volume":150}`))
	if vol["master_volume"] != 100 {
		t.Fatalf("volume %v", vol)
	}
	if rec := do(t, s, http.MethodPut, "/volume", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing volume: %d", rec.Code)
	}

	st := decodeBody[stateResponse](t, do(t, s, http.MethodGet, "/state", ""))
	if !st.Active || st.MasterVolume != 100 || st.Envelope.AttackMs != 50 {
		t.Fatalf("state %+v", st)
	}
}

func TestRenderReturnsWAV(t *testing.T) {
	s, e := newTestServer(t, true, true)
	e.NoteOn("A4", 440)
	rec := do(t, s, http.MethodGet, "/render?seconds=0.1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("render: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.Bytes()
	if len(body) < 44 || string(body[:4]) != "RIFF" || string(body[8:12]) != "WAVE" {
		t.Fatal("body is not a WAV file")
	}
	if e.Now() != 2205 {
		t.Fatalf("engine clock %d, want 2205", e.Now())
	}
	if rec := do(t, s, http.MethodGet, "/render?seconds=90", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("long render: %d", rec.Code)
	}
}

func TestRenderDisabledWithDevice(t *testing.T) {
	s, _ := newTestServer(t, false, true)
	if rec := do(t, s, http.MethodGet, "/render", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("render without headless: %d", rec.Code)
	}
}
