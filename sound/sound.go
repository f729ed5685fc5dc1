package sound

import (
	"context"
	"io"
)

// DefaultChunkFrames is how many frames the pumps move per stream call.
const DefaultChunkFrames = 1024

// Player defines the interface for audio playback
type Player interface {
	// Play copies PCM from r to the stream until EOF and waits until it was
	// heard. The stream is closed when Play returns.
	Play(ctx context.Context, r io.Reader) error
}

// Recorder defines the interface for audio capture
type Recorder interface {
	// StartCapture sends captured chunks to out until ctx is done or the
	// source goes away.
	StartCapture(ctx context.Context, out chan<- []byte) error

	// Record copies at most max bytes to w. max <= 0 records until ctx is
	// done or the source goes away.
	Record(ctx context.Context, w io.Writer, max int64) (int64, error)
}
