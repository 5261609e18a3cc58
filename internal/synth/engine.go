package synth

import "context"

// Request carries the effective parameters of one synthesis call. The engine
// splits Text internally according to SplitPattern and yields one chunk per
// segment, in segment order.
type Request struct {
	Text         string
	Voice        string
	Speed        float64
	SplitPattern string
}

// Chunk is one engine-produced audio buffer for one text segment.
type Chunk struct {
	Sequence   int
	Text       string
	SampleRate int
	Channels   int
	PCM        []byte // 16-bit little-endian samples
	Final      bool
}

// Engine is the contract for producing audio. Implementations yield chunks in
// the order the corresponding segments appear in the source text and close
// both channels when done.
type Engine interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
