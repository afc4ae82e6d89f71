package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cwbudde/algo-sketchsynth/analysis"
	"github.com/cwbudde/algo-sketchsynth/curve"
	"github.com/cwbudde/algo-sketchsynth/internal/wavio"
	"github.com/cwbudde/algo-sketchsynth/synth"
)

const maxBodyBytes = 1 << 20

type waveformRequest struct {
	Curve  curve.Curve `json:"curve"`
	Preset string      `json:"preset,omitempty"`
}

type waveformResponse struct {
	Points   int             `json:"points"`
	Curve    curve.Curve     `json:"curve"`
	Analysis analysis.Result `json:"analysis"`
}

type noteRequest struct {
	Frequency *float64 `json:"frequency,omitempty"`
}

type noteResponse struct {
	Key       string  `json:"key"`
	Frequency float64 `json:"frequency"`
	Stage     string  `json:"stage"`
}

type volumeRequest struct {
	MasterVolume *float64 `json:"master_volume"`
}

type stateResponse struct {
	Active       bool                 `json:"active"`
	Keys         []string             `json:"keys"`
	Voices       int                  `json:"voices"`
	Frame        int64                `json:"frame"`
	SampleRate   int                  `json:"sample_rate"`
	Envelope     synth.EnvelopeParams `json:"envelope"`
	Filter       synth.FilterParams   `json:"filter"`
	Effects      synth.EffectsParams  `json:"effects"`
	MasterVolume float64              `json:"master_volume"`
	Dry          float64              `json:"dry_gain"`
	Wet          float64              `json:"wet_gain"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	e := s.engine
	dry, wet := e.MixGains()
	s.writeJSON(w, http.StatusOK, stateResponse{
		Active:       e.Active(),
		Keys:         e.ActiveKeys(),
		Voices:       e.VoiceCount(),
		Frame:        e.Now(),
		SampleRate:   e.SampleRate(),
		Envelope:     e.Envelope(),
		Filter:       e.Filter(),
		Effects:      e.Effects(),
		MasterVolume: e.MasterVolume(),
		Dry:          dry,
		Wet:          wet,
	})
}

// handleWaveform installs a drawn curve or a named preset. With ?prepare=1
// the curve goes through the end-of-gesture smoothing first.
func (s *Server) handleWaveform(w http.ResponseWriter, r *http.Request) {
	var req waveformRequest
	if !s.decode(w, r, &req) {
		return
	}
	c := req.Curve
	if req.Preset != "" {
		p, err := curve.Preset(req.Preset)
		if err != nil {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		c = p
	}
	if flag(r, "prepare") {
		c = curve.Prepare(c)
	}
	s.engine.UpdateWaveform(c)
	s.logger.Debug("waveform installed", slog.Int("points", len(c)))
	s.writeJSON(w, http.StatusOK, waveformResponse{Points: len(c), Curve: c, Analysis: analysis.Analyze(c)})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req waveformRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, analysis.Analyze(req.Curve))
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"presets": curve.PresetNames()})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	c, err := curve.Preset(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, waveformResponse{Points: len(c), Curve: c, Analysis: analysis.Analyze(c)})
}

// handleNoteOn starts key at the body's frequency, or at the key's
// equal-tempered pitch when the body is empty.
func (s *Server) handleNoteOn(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	var hz float64
	if req.Frequency != nil {
		hz = *req.Frequency
		if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("frequency must be positive"))
			return
		}
	} else {
		f, err := synth.NoteFrequency(key)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		hz = f
	}
	if !s.engine.Active() {
		s.writeError(w, http.StatusConflict, synth.ErrInactive)
		return
	}
	s.engine.NoteOn(key, hz)
	s.writeJSON(w, http.StatusOK, noteResponse{Key: key, Frequency: hz, Stage: s.engine.VoiceStage(key).String()})
}

func (s *Server) handleNoteOff(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}
	s.engine.NoteOff(key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.engine.StopAll()
	w.WriteHeader(http.StatusNoContent)
}

// The parameter handlers decode over the current value so a body may name
// only the fields it changes.

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Envelope()
	if !s.decode(w, r, &p) {
		return
	}
	s.engine.SetEnvelope(p)
	s.writeJSON(w, http.StatusOK, s.engine.Envelope())
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Filter()
	if !s.decode(w, r, &p) {
		return
	}
	s.engine.SetFilter(p)
	s.writeJSON(w, http.StatusOK, s.engine.Filter())
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Effects()
	if !s.decode(w, r, &p) {
		return
	}
	s.engine.SetEffects(p)
	s.writeJSON(w, http.StatusOK, s.engine.Effects())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.MasterVolume == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("master_volume is required"))
		return
	}
	s.engine.SetMasterVolume(*req.MasterVolume)
	s.writeJSON(w, http.StatusOK, map[string]float64{"master_volume": s.engine.MasterVolume()})
}

// handleRender pulls ?seconds= of audio from the engine and returns it as a
// 16-bit stereo WAV.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	seconds := 1.0
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > MaxRenderSeconds {
			http.Error(w, "seconds must be in (0, 30]", http.StatusBadRequest)
			return
		}
		seconds = v
	}
	sr := s.engine.SampleRate()
	frames := int(math.Round(seconds * float64(sr)))
	samples := s.engine.Process(frames)

	f, err := os.CreateTemp("", "sketchsynth-render-*.wav")
	if err != nil {
		s.logger.Error("render temp file", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := wavio.Encode(f, samples, sr, 2); err != nil {
		s.logger.Error("render encode", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, "render.wav", time.Time{}, f)
}

func (s *Server) keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		http.Error(w, "Invalid key", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// decodeOptional is decode for bodies that may be empty.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func flag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
