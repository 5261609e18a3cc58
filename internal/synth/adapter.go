package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/kokorod/internal/config"
)

// Result is the fully drained output of one synthesis call, chunks in the
// order the engine produced them. SampleRate and Channels report the engine's
// native format taken from the first chunk.
type Result struct {
	Chunks     []Chunk
	SampleRate int
	Channels   int
}

// PCM returns the chunk buffers concatenated along the time axis, in chunk
// order.
func (r Result) PCM() []byte {
	var total int
	for _, c := range r.Chunks {
		total += len(c.PCM)
	}
	out := make([]byte, 0, total)
	for _, c := range r.Chunks {
		out = append(out, c.PCM...)
	}
	return out
}

// Adapter hides the external engine behind a single eager operation. The
// engine handle is constructed exactly once, before any request is served.
type Adapter struct {
	cfg     config.EngineConfig
	engine  Engine
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs the engine handle according to config. Construction failure
// is fatal to the caller; there is no retry, a model that fails to load will
// not succeed on an implicit retry within the same process.
func New(cfg config.EngineConfig, log *slog.Logger) (*Adapter, error) {
	var (
		engine Engine
		err    error
	)
	switch cfg.Mode {
	case "mock":
		engine = NewMockEngine(cfg.SampleRate, cfg.Channels)
	case "exec":
		engine, err = NewExecEngine(cfg.Command, cfg.LangCode, cfg.SampleRate, cfg.Channels)
	default:
		err = fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize synthesis engine: %w", err)
	}
	return NewWithEngine(cfg, engine, log), nil
}

// NewWithEngine wires an already constructed engine, letting tests substitute
// a stub without touching model assets.
func NewWithEngine(cfg config.EngineConfig, engine Engine, log *slog.Logger) *Adapter {
	return &Adapter{
		cfg:     cfg,
		engine:  engine,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		logger:  log.With(slog.String("component", "synth-adapter")),
	}
}

// Synthesize validates the request, invokes the engine once and drains its
// lazy chunk sequence eagerly. Chunk order is preserved exactly as produced;
// nothing is reordered, parallelized or deduplicated.
func (a *Adapter) Synthesize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, &ValidationError{Field: "text", Reason: "is required and must be non-empty"}
	}
	if req.Speed <= 0 {
		return Result{}, &ValidationError{Field: "speed", Reason: "must be positive"}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	chunks, errs := a.engine.Synthesize(ctx, req)
	var out []Chunk
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			chunk.Sequence = len(out)
			out = append(out, chunk)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return Result{}, fmt.Errorf("synthesis failed: %w", err)
			}
		case <-ctx.Done():
			return Result{}, fmt.Errorf("synthesis cancelled: %w", ctx.Err())
		}
	}

	if len(out) == 0 {
		return Result{}, ErrEmptyOutput
	}

	a.logger.Info("synthesis complete",
		slog.Int("chunks", len(out)),
		slog.String("voice", req.Voice),
		slog.Duration("latency", time.Since(start)))

	return Result{
		Chunks:     out,
		SampleRate: out[0].SampleRate,
		Channels:   out[0].Channels,
	}, nil
}
