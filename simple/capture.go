package simple

import (
	"context"
	"io"
)

// CaptureStream is a stream that receives PCM data from the server.
type CaptureStream struct {
	*stream
}

var _ io.Reader = (*CaptureStream)(nil)

// OpenCapture connects a capture stream.
func OpenCapture(ctx context.Context, srv Server, name string, spec SampleSpec, opts ...Option) (*CaptureStream, error) {
	s, err := open(ctx, srv, name, Capture, spec, opts)
	if err != nil {
		return nil, err
	}
	return &CaptureStream{stream: s}, nil
}

// Read blocks until at least one frame is available and returns up to
// len(b) bytes of whole frames. An Overflow error does not end the stream.
func (c *CaptureStream) Read(b []byte) (int, error) {
	conn, err := c.acquire("read")
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	fs := c.spec.FrameSize()
	if len(b) < fs {
		return 0, c.frameError("read", len(b))
	}

	n, err := conn.Read(b[:len(b)/fs*fs])
	if err != nil {
		return n, c.fail("read", err)
	}
	return n, nil
}
