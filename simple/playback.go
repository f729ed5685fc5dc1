package simple

import (
	"context"
	"errors"
	"io"
)

// PlaybackStream is a stream that sends PCM data to the server.
type PlaybackStream struct {
	*stream
}

var _ io.Writer = (*PlaybackStream)(nil)

// OpenPlayback connects a playback stream.
func OpenPlayback(ctx context.Context, srv Server, name string, spec SampleSpec, opts ...Option) (*PlaybackStream, error) {
	s, err := open(ctx, srv, name, Playback, spec, opts)
	if err != nil {
		return nil, err
	}
	return &PlaybackStream{stream: s}, nil
}

// Write blocks until the server accepted all of p or the stream failed.
// p must hold whole frames. On error n is the number of bytes accepted and
// the caller retries p[n:]. An Underflow error does not end the stream.
func (p *PlaybackStream) Write(b []byte) (int, error) {
	conn, err := p.acquire("write")
	if err != nil {
		return 0, err
	}
	if len(b)%p.spec.FrameSize() != 0 {
		return 0, p.frameError("write", len(b))
	}

	written := 0
	for written < len(b) {
		n, err := conn.Write(b[written:])
		written += n
		if err != nil {
			return written, p.fail("write", err)
		}
		if n == 0 {
			return written, p.fail("write", io.ErrShortWrite)
		}
	}
	return written, nil
}

// Drain blocks until everything written has been played, then releases the
// handle. Only Close is valid afterwards.
func (p *PlaybackStream) Drain() error {
	p.mu.Lock()
	if p.state != StateOpen {
		err := p.stateError("drain")
		p.mu.Unlock()
		return err
	}
	p.state = StateDraining
	conn := p.conn
	p.mu.Unlock()

	if err := conn.Drain(); err != nil {
		return p.fail("drain", err)
	}
	p.release(StateClosed)
	return nil
}

// Flush discards data that was written but not played yet.
func (p *PlaybackStream) Flush() error {
	conn, err := p.acquire("flush")
	if err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return p.fail("flush", err)
	}
	return nil
}

// IsXrun reports whether err is an Underflow or Overflow, after which the
// stream keeps running.
func IsXrun(err error) bool {
	return errors.Is(err, ErrUnderflow) || errors.Is(err, ErrOverflow)
}
