// Package loopback is an in-process audio server for the simple client.
//
// Playback streams behave like a null sink that plays in real time (scaled
// by WithSpeed): writes block while the buffer is full and Drain waits until
// the device consumed everything. Capture streams read from named Sources
// that tests or pipelines feed. Faults can be injected with Shutdown,
// Disconnect and Xrun.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/d1nch8g/pasimple/simple"
)

var (
	errServerDown   = errors.New("loopback server is down")
	errDisconnected = errors.New("peer disconnected")
	errClosed       = errors.New("connection closed")
)

// Stats counts the traffic of every stream opened under one name.
type Stats struct {
	Streams    int
	Written    int64
	Consumed   int64
	Discarded  int64
	Read       int64
	Underflows int
	Overflows  int
}

type counters struct {
	streams    atomic.Int64
	written    atomic.Int64
	consumed   atomic.Int64
	discarded  atomic.Int64
	read       atomic.Int64
	underflows atomic.Int64
	overflows  atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithSpeed plays and records faster than real time. Values <= 0 are ignored.
func WithSpeed(factor float64) Option {
	return func(s *Server) {
		if factor > 0 {
			s.speed = factor
		}
	}
}

// WithFormats restricts the sample formats the server accepts.
func WithFormats(formats ...simple.SampleFormat) Option {
	return func(s *Server) {
		s.formats = make(map[simple.SampleFormat]bool, len(formats))
		for _, f := range formats {
			s.formats[f] = true
		}
	}
}

// WithBufferDuration sets the default playback buffer length.
func WithBufferDuration(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.bufferDuration = d
		}
	}
}

// Server implements simple.Server in memory.
type Server struct {
	speed          float64
	formats        map[simple.SampleFormat]bool
	bufferDuration time.Duration

	mu      sync.Mutex
	down    bool
	live    map[*conn]struct{}
	stats   map[string]*counters
	sources map[string]*Source
}

var _ simple.Server = (*Server)(nil)

// NewServer creates a running loopback server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		speed:          1,
		bufferDuration: 250 * time.Millisecond,
		live:           make(map[*conn]struct{}),
		stats:          make(map[string]*counters),
		sources:        make(map[string]*Source),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a stream.
func (s *Server) Connect(ctx context.Context, req simple.ConnectRequest) (simple.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, simple.NewError(simple.ConnectionFailed, "open", err)
	}
	if err := req.Spec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return nil, simple.NewError(simple.ConnectionFailed, "open", errServerDown)
	}
	if s.formats != nil && !s.formats[req.Spec.Format] {
		return nil, simple.NewError(simple.InvalidSpec, "open", fmt.Errorf("sample format %s not supported", req.Spec.Format))
	}

	c := &conn{
		srv:   s,
		req:   req,
		frame: req.Spec.FrameSize(),
		bps:   float64(req.Spec.BytesPerSecond()) * s.speed,
		stats: s.countersLocked(req.StreamName),
		done:  make(chan struct{}),
		mark:  time.Now(),
	}

	switch req.Direction {
	case simple.Playback:
		c.capacity = s.capacity(req)
	case simple.Capture:
		c.src = s.sourceLocked(req.StreamName)
	default:
		return nil, simple.NewError(simple.InvalidSpec, "open", fmt.Errorf("unsupported direction %s", req.Direction))
	}

	c.stats.streams.Add(1)
	s.live[c] = struct{}{}
	return c, nil
}

func (s *Server) capacity(req simple.ConnectRequest) int64 {
	frame := int64(req.Spec.FrameSize())
	n := int64(req.Buffer.TargetLength)
	if n == 0 {
		n = int64(req.Buffer.MaxLength)
	}
	if n == 0 {
		n = req.Spec.DurationToBytes(s.bufferDuration)
	}
	n = n / frame * frame
	if n < frame {
		n = frame
	}
	return n
}

func (s *Server) countersLocked(name string) *counters {
	c, ok := s.stats[name]
	if !ok {
		c = &counters{}
		s.stats[name] = c
	}
	return c
}

func (s *Server) sourceLocked(name string) *Source {
	src, ok := s.sources[name]
	if !ok {
		src = newSource()
		s.sources[name] = src
	}
	return src
}

// Source returns the capture source of streams named name, creating it.
func (s *Server) Source(name string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLocked(name)
}

// Stats returns the counters of streams named name.
func (s *Server) Stats(name string) Stats {
	s.mu.Lock()
	c := s.countersLocked(name)
	s.mu.Unlock()

	return Stats{
		Streams:    int(c.streams.Load()),
		Written:    c.written.Load(),
		Consumed:   c.consumed.Load(),
		Discarded:  c.discarded.Load(),
		Read:       c.read.Load(),
		Underflows: int(c.underflows.Load()),
		Overflows:  int(c.overflows.Load()),
	}
}

// Shutdown makes the server unreachable and ends every live stream.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.down = true
	live := s.snapshotLocked("")
	s.mu.Unlock()

	for _, c := range live {
		c.end(errServerDown)
	}
}

// Disconnect ends the live streams named name as if their peer went away.
func (s *Server) Disconnect(name string) {
	s.mu.Lock()
	live := s.snapshotLocked(name)
	s.mu.Unlock()

	for _, c := range live {
		c.end(errDisconnected)
	}
}

// Xrun makes the next write (read) on streams named name report an
// underflow (overflow).
func (s *Server) Xrun(name string) {
	s.mu.Lock()
	live := s.snapshotLocked(name)
	s.mu.Unlock()

	for _, c := range live {
		c.mu.Lock()
		c.xrun = true
		c.mu.Unlock()
	}
}

func (s *Server) snapshotLocked(name string) []*conn {
	var out []*conn
	for c := range s.live {
		if name == "" || c.req.StreamName == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) forget(c *conn) {
	s.mu.Lock()
	delete(s.live, c)
	s.mu.Unlock()
}
