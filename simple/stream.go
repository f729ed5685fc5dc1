package simple

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a stream handle.
type State int

const (
	StateCreated State = iota
	StateOpen
	StateDraining
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stream is the part of the handle API shared by playback and capture streams.
type Stream interface {
	ID() string
	Name() string
	Direction() Direction
	Spec() SampleSpec
	State() State
	Latency() (LatencyInfo, error)
	Close() error
}

var (
	_ Stream = (*PlaybackStream)(nil)
	_ Stream = (*CaptureStream)(nil)
)

// Open connects a stream in the given direction. The returned value is a
// *PlaybackStream or a *CaptureStream.
func Open(ctx context.Context, srv Server, name string, dir Direction, spec SampleSpec, opts ...Option) (Stream, error) {
	switch dir {
	case Playback:
		p, err := OpenPlayback(ctx, srv, name, spec, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case Capture:
		c, err := OpenCapture(ctx, srv, name, spec, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, &Error{Kind: InvalidSpec, Op: "open", Stream: name, Err: fmt.Errorf("invalid direction %s", dir)}
}

// stream owns one server connection.
type stream struct {
	id   uuid.UUID
	name string
	dir  Direction
	spec SampleSpec

	mu      sync.Mutex // guards state, conn and last; never held across server I/O
	state   State
	conn    Conn
	cleanup runtime.Cleanup
	last    LatencyInfo
}

func open(ctx context.Context, srv Server, name string, dir Direction, spec SampleSpec, opts []Option) (*stream, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		return nil, &Error{Kind: InvalidSpec, Op: "open", Err: errors.New("stream name is required")}
	}
	if err := spec.Validate(); err != nil {
		return nil, classify(err, "open", name, InvalidSpec)
	}
	if srv == nil {
		return nil, &Error{Kind: ConnectionFailed, Op: "open", Stream: name, Err: errors.New("no audio server")}
	}

	s := &stream{
		id:    uuid.New(),
		name:  name,
		dir:   dir,
		spec:  spec,
		state: StateCreated,
	}

	conn, err := srv.Connect(ctx, ConnectRequest{
		AppName:    o.appName,
		StreamName: name,
		Device:     o.device,
		Direction:  dir,
		Spec:       spec,
		Buffer:     o.buffer,
	})
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, classify(err, "open", name, ConnectionFailed)
	}

	s.conn = conn
	s.state = StateOpen
	// Release the connection if the handle is dropped without Close.
	s.cleanup = runtime.AddCleanup(s, func(c Conn) { c.Close() }, conn)

	log.Printf("Opened %s stream %q (%s) id=%s", dir, name, spec, s.id)
	return s, nil
}

// ID is a unique identifier of the handle.
func (s *stream) ID() string { return s.id.String() }

func (s *stream) Name() string { return s.name }

func (s *stream) Direction() Direction { return s.dir }

func (s *stream) Spec() SampleSpec { return s.spec }

func (s *stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latency returns a best-effort snapshot without waiting for in-flight I/O.
// When the server cannot answer, the previous snapshot is returned.
func (s *stream) Latency() (LatencyInfo, error) {
	s.mu.Lock()
	if s.state != StateOpen && s.state != StateDraining {
		err := s.stateError("latency")
		s.mu.Unlock()
		return LatencyInfo{}, err
	}
	conn := s.conn
	s.mu.Unlock()

	info, err := conn.Latency()
	if err != nil {
		e := classify(err, "latency", s.name, StreamClosed)
		if e.Kind.Fatal() {
			return LatencyInfo{}, s.fail("latency", e)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.last, nil
	}

	s.mu.Lock()
	s.last = info
	s.mu.Unlock()
	return info, nil
}

// Close releases the handle. It is idempotent and always returns nil;
// disconnect failures are logged. A call blocked in Write, Read or Drain on
// another goroutine returns a StreamClosed error.
func (s *stream) Close() error {
	s.release(StateClosed)
	return nil
}

func (s *stream) release(to State) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.state = to
	s.mu.Unlock()

	if conn == nil {
		return
	}
	s.cleanup.Stop()
	if err := conn.Close(); err != nil {
		log.Printf("Stream %q: disconnect failed: %v", s.name, err)
	}
	log.Printf("Closed %s stream %q id=%s", s.dir, s.name, s.id)
}

// acquire returns the connection if the handle is open.
func (s *stream) acquire(op string) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, s.stateError(op)
	}
	return s.conn, nil
}

// fail classifies a server error and applies its state transition.
func (s *stream) fail(op string, err error) error {
	e := classify(err, op, s.name, StreamClosed)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateClosed:
		// Close aborted the call.
		e.Kind = StreamClosed
	case e.Kind.Fatal() || s.state == StateDraining:
		if s.state != StateFailed {
			log.Printf("Stream %q failed during %s: %v", s.name, op, e)
		}
		s.state = StateFailed
	}
	return e
}

func (s *stream) stateError(op string) error {
	return &Error{Kind: InvalidState, Op: op, Stream: s.name, Err: fmt.Errorf("stream is %s", s.state)}
}

func (s *stream) frameError(op string, n int) error {
	return &Error{
		Kind:   InvalidSpec,
		Op:     op,
		Stream: s.name,
		Err:    fmt.Errorf("%d bytes is not a whole number of %d byte frames", n, s.spec.FrameSize()),
	}
}
