package protocol

import "time"

// SynthesisEvent announces the outcome of one synthesis request on the bus.
type SynthesisEvent struct {
	RequestID  string    `json:"request_id"`
	Voice      string    `json:"voice"`
	Speed      float64   `json:"speed"`
	TextChars  int       `json:"text_chars"`
	Chunks     int       `json:"chunks"`
	SampleRate int       `json:"sample_rate"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisCompleted = "tts.synthesis.completed"
	SubjectSynthesisFailed    = "tts.synthesis.failed"
)
