package synth

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
)

type mockEngine struct {
	sampleRate int
	channels   int
}

// NewMockEngine returns a deterministic local engine for development and
// tests. It honors the split pattern and speed, producing a short tone per
// segment so ordering and aggregation stay observable.
func NewMockEngine(sampleRate, channels int) Engine {
	return &mockEngine{sampleRate: sampleRate, channels: channels}
}

func (m *mockEngine) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		re, err := regexp.Compile(req.SplitPattern)
		if err != nil {
			errs <- fmt.Errorf("compile split pattern: %w", err)
			return
		}
		var segments []string
		for _, part := range re.Split(req.Text, -1) {
			if s := strings.TrimSpace(part); s != "" {
				segments = append(segments, s)
			}
		}

		for i, segment := range segments {
			chunk := Chunk{
				Sequence:   i,
				Text:       segment,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        m.segmentPCM(i, segment, req.Speed),
				Final:      i == len(segments)-1,
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}

// segmentPCM emits roughly 40ms of audio per rune, scaled by speed, with a
// constant amplitude unique to the segment index.
func (m *mockEngine) segmentPCM(index int, segment string, speed float64) []byte {
	samplesPerRune := float64(m.sampleRate) * 0.04
	count := int(samplesPerRune*float64(len([]rune(segment)))/speed) * m.channels
	if count < m.channels {
		count = m.channels
	}
	amplitude := int16((index + 1) * 1000)
	pcm := make([]byte, count*2)
	for i := 0; i < count; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(amplitude))
	}
	return pcm
}
