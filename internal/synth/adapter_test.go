package synth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/loqalabs/kokorod/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngineConfig() config.EngineConfig {
	cfg := config.Default().Engine
	cfg.Mode = "mock"
	return cfg
}

// stubEngine records its calls and plays back a fixed script.
type stubEngine struct {
	mu     sync.Mutex
	calls  []Request
	chunks []Chunk
	err    error
}

func (s *stubEngine) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	chunks := make(chan Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range s.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return chunks, errs
}

func constantChunk(value byte, samples int) Chunk {
	pcm := bytes.Repeat([]byte{value, 0}, samples)
	return Chunk{SampleRate: 24000, Channels: 1, PCM: pcm}
}

func TestSynthesizePreservesChunkOrder(t *testing.T) {
	engine := &stubEngine{chunks: []Chunk{
		constantChunk(0, 10),
		constantChunk(1, 20),
		constantChunk(2, 15),
	}}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	result, err := adapter.Synthesize(context.Background(), Request{Text: "hello", Voice: "af_heart", Speed: 1.0, SplitPattern: `\n+`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(result.Chunks))
	}
	for i, c := range result.Chunks {
		if c.Sequence != i {
			t.Fatalf("chunk %d has sequence %d", i, c.Sequence)
		}
	}

	want := append(append(
		bytes.Repeat([]byte{0, 0}, 10),
		bytes.Repeat([]byte{1, 0}, 20)...),
		bytes.Repeat([]byte{2, 0}, 15)...)
	if !bytes.Equal(result.PCM(), want) {
		t.Fatal("concatenated PCM does not match chunk order")
	}
	if result.SampleRate != 24000 || result.Channels != 1 {
		t.Fatalf("unexpected format: %d Hz, %d channels", result.SampleRate, result.Channels)
	}
}

func TestSynthesizeEmptyOutputIsError(t *testing.T) {
	engine := &stubEngine{}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	_, err := adapter.Synthesize(context.Background(), Request{Text: "hello", Speed: 1.0, SplitPattern: `\n+`})
	if !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	engine := &stubEngine{chunks: []Chunk{constantChunk(1, 5)}}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := adapter.Synthesize(context.Background(), Request{Text: text, Speed: 1.0})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "text" {
			t.Fatalf("expected text validation error for %q, got %v", text, err)
		}
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine must not be invoked for empty text, got %d calls", len(engine.calls))
	}
}

func TestSynthesizeRejectsNonPositiveSpeed(t *testing.T) {
	engine := &stubEngine{chunks: []Chunk{constantChunk(1, 5)}}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	for _, speed := range []float64{0, -0.5} {
		_, err := adapter.Synthesize(context.Background(), Request{Text: "hello", Speed: speed})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "speed" {
			t.Fatalf("expected speed validation error for %v, got %v", speed, err)
		}
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine must not be invoked for invalid speed, got %d calls", len(engine.calls))
	}
}

func TestSynthesizePassesArgumentsThrough(t *testing.T) {
	engine := &stubEngine{chunks: []Chunk{constantChunk(1, 5)}}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	req := Request{Text: "hello", Voice: "am_adam", Speed: 1.5, SplitPattern: `[.!?]+`}
	if _, err := adapter.Synthesize(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engine.calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(engine.calls))
	}
	if engine.calls[0] != req {
		t.Fatalf("engine saw %+v, want %+v", engine.calls[0], req)
	}
}

func TestSynthesizePropagatesEngineError(t *testing.T) {
	engineErr := errors.New("model assets missing")
	engine := &stubEngine{chunks: []Chunk{constantChunk(1, 5)}, err: engineErr}
	adapter := NewWithEngine(testEngineConfig(), engine, testLogger())

	_, err := adapter.Synthesize(context.Background(), Request{Text: "hello", Speed: 1.0})
	if !errors.Is(err, engineErr) {
		t.Fatalf("expected wrapped engine error, got %v", err)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Mode = "remote"
	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown engine mode")
	}
}

func TestNewExecEngineRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecEngine("", "a", 24000, 1); err == nil {
		t.Fatal("expected error for empty command")
	}
}
