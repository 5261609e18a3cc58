package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/kokorod/internal/history"
	"github.com/loqalabs/kokorod/internal/protocol"
	"github.com/loqalabs/kokorod/internal/synth"
	"github.com/loqalabs/kokorod/internal/wavio"
)

const modelName = "kokoro"

type ttsRequest struct {
	Text         string   `json:"text"`
	Voice        string   `json:"voice"`
	Speed        *float64 `json:"speed"`
	SplitPattern string   `json:"split_pattern"`
	SampleRate   *int     `json:"sample_rate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready.Load()
	status := "ok"
	if !ready {
		status = "error"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"model":     modelName,
		"lang_code": s.cfg.Engine.LangCode,
		"ready":     ready,
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"voices": s.cfg.Engine.Voices(),
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "synthesis engine not ready")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "field 'text' is required and must be non-empty")
		return
	}

	// Per-field fallback: each omitted field independently takes its
	// configured default.
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Engine.DefaultVoice
	}
	speed := s.cfg.Engine.DefaultSpeed
	if req.Speed != nil {
		speed = *req.Speed
	}
	splitPattern := req.SplitPattern
	if splitPattern == "" {
		splitPattern = s.cfg.Engine.SplitPattern
	}
	sampleRate := s.cfg.Engine.SampleRate
	if req.SampleRate != nil {
		sampleRate = *req.SampleRate
	}
	if sampleRate <= 0 {
		writeError(w, http.StatusBadRequest, "field 'sample_rate' must be positive")
		return
	}

	requestID := uuid.NewString()
	start := time.Now()

	result, err := s.adapter.Synthesize(r.Context(), synth.Request{
		Text:         text,
		Voice:        voice,
		Speed:        speed,
		SplitPattern: splitPattern,
	})
	if err != nil {
		s.recordOutcome(requestID, voice, speed, len(text), result, time.Since(start), err)
		var vErr *synth.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, synth.ErrEmptyOutput):
			writeError(w, http.StatusInternalServerError, "no audio produced")
		default:
			writeError(w, http.StatusInternalServerError, "TTS generation failed: "+err.Error())
		}
		return
	}

	// A requested rate that differs from the engine's native output would
	// only mislabel the raw samples and shift pitch on playback. Encode at
	// the honest rate and say so.
	if result.SampleRate != sampleRate {
		s.logger.Warn("requested sample rate differs from engine output, using engine rate",
			slog.Int("requested", sampleRate),
			slog.Int("engine", result.SampleRate))
		sampleRate = result.SampleRate
	}

	payload, err := wavio.Encode(result.PCM(), sampleRate, result.Channels)
	if err != nil {
		s.recordOutcome(requestID, voice, speed, len(text), result, time.Since(start), err)
		writeError(w, http.StatusInternalServerError, "WAV encoding failed: "+err.Error())
		return
	}

	s.recordOutcome(requestID, voice, speed, len(text), result, time.Since(start), nil)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "query parameter 'limit' must be a positive integer")
			return
		}
		limit = parsed
	}

	var records []history.Record
	if s.history != nil {
		var err error
		records, err = s.history.ListRecent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read history: "+err.Error())
			return
		}
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": records})
}

// recordOutcome feeds metrics, the request log and the event bus. None of
// these may fail the synthesis response.
func (s *Server) recordOutcome(requestID, voice string, speed float64, textChars int, result synth.Result, elapsed time.Duration, synthErr error) {
	status := "ok"
	errText := ""
	if synthErr != nil {
		status = "failed"
		errText = synthErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.metrics.record(ctx, status, len(result.Chunks), elapsed)

	if s.history != nil {
		rec := history.Record{
			ID:         requestID,
			Voice:      voice,
			Speed:      speed,
			TextChars:  textChars,
			Chunks:     len(result.Chunks),
			SampleRate: result.SampleRate,
			DurationMS: elapsed.Milliseconds(),
			Status:     status,
			Error:      errText,
		}
		if err := s.history.Append(ctx, rec); err != nil {
			s.logger.Warn("failed to append history record", slog.String("error", err.Error()))
		}
	}

	if s.events != nil {
		evt := protocol.SynthesisEvent{
			RequestID:  requestID,
			Voice:      voice,
			Speed:      speed,
			TextChars:  textChars,
			Chunks:     len(result.Chunks),
			SampleRate: result.SampleRate,
			DurationMS: elapsed.Milliseconds(),
			Error:      errText,
			Timestamp:  time.Now().UTC(),
		}
		if err := s.events.PublishSynthesis(evt); err != nil {
			s.logger.Warn("failed to publish synthesis event", slog.String("error", err.Error()))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
