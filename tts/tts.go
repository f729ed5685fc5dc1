package tts

import (
	"context"
	"io"
)

// Synthesizer defines the interface for text-to-speech synthesis
type Synthesizer interface {
	// SynthesizeToStreamWithContext sends encoded audio chunks to audioData
	// and closes it when synthesis ends.
	SynthesizeToStreamWithContext(ctx context.Context, text string, options SynthesisOptions, audioData chan<- []byte) error
	Close() error
}

// Container is the encoding of synthesized audio.
type Container string

const (
	ContainerWAV Container = "wav"
	ContainerMP3 Container = "mp3"
)

// SynthesisOptions represents the configuration for speech synthesis
type SynthesisOptions struct {
	Voice     string
	Speed     float64
	Volume    float64
	Model     string
	Container Container
	// NormalizeLoudness selects LUFS normalization instead of peak.
	NormalizeLoudness bool
}

// ChunkReader reads the chunks sent on a channel as one byte stream.
type ChunkReader struct {
	ctx    context.Context
	chunks <-chan []byte
	cur    []byte
}

func NewChunkReader(ctx context.Context, chunks <-chan []byte) *ChunkReader {
	return &ChunkReader{ctx: ctx, chunks: chunks}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		select {
		case chunk, ok := <-r.chunks:
			if !ok {
				return 0, io.EOF
			}
			r.cur = chunk
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}
