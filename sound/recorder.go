package sound

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/d1nch8g/pasimple/simple"
)

// StreamRecorder captures from one capture stream.
type StreamRecorder struct {
	stream *simple.CaptureStream
	frames int
}

var _ Recorder = (*StreamRecorder)(nil)

func NewStreamRecorder(stream *simple.CaptureStream) *StreamRecorder {
	return &StreamRecorder{stream: stream, frames: DefaultChunkFrames}
}

// read returns captured bytes, skipping overruns. done is true when the
// source ended the stream.
func (r *StreamRecorder) read(ctx context.Context, buf []byte) (int, bool, error) {
	for {
		n, err := r.stream.Read(buf)
		if err == nil {
			return n, false, nil
		}
		if ctx.Err() != nil {
			return n, true, ctx.Err()
		}
		if errors.Is(err, simple.ErrOverflow) {
			log.Printf("sound: %s: capture overflow", r.stream.Name())
			if n > 0 {
				return n, false, nil
			}
			continue
		}
		if errors.Is(err, simple.ErrStreamClosed) {
			log.Printf("sound: %s: capture ended: %v", r.stream.Name(), err)
			return n, true, nil
		}
		return n, true, err
	}
}

func (r *StreamRecorder) StartCapture(ctx context.Context, out chan<- []byte) error {
	defer r.stream.Close()
	stop := context.AfterFunc(ctx, func() { r.stream.Close() })
	defer stop()

	size := r.frames * r.stream.Spec().FrameSize()
	for {
		buf := make([]byte, size)
		n, done, err := r.read(ctx, buf)
		if n > 0 {
			select {
			case out <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if done {
			return err
		}
	}
}

func (r *StreamRecorder) Record(ctx context.Context, w io.Writer, max int64) (int64, error) {
	defer r.stream.Close()
	stop := context.AfterFunc(ctx, func() { r.stream.Close() })
	defer stop()

	fs := int64(r.stream.Spec().FrameSize())
	if max > 0 {
		if max = max / fs * fs; max == 0 {
			return 0, nil
		}
	}
	buf := make([]byte, int64(r.frames)*fs)

	var total int64
	for max <= 0 || total < max {
		chunk := buf
		if max > 0 && max-total < int64(len(chunk)) {
			chunk = chunk[:max-total]
		}
		n, done, err := r.read(ctx, chunk)
		if n > 0 {
			written, werr := w.Write(chunk[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if done {
			return total, err
		}
	}
	return total, nil
}
