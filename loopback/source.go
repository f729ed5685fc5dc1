package loopback

import (
	"errors"
	"io"
	"sync"
)

var errSourceGone = errors.New("source disconnected")

// Source feeds capture streams. Data written to it is read by every capture
// stream opened under its name, first come first served.
type Source struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
	notify chan struct{}
}

func newSource() *Source {
	return &Source{notify: make(chan struct{})}
}

// Write appends captured audio.
func (s *Source) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.buf = append(s.buf, p...)
	s.wakeLocked()
	return len(p), nil
}

// Close disconnects the source. Pending and later reads fail once the
// buffered data is gone.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.wakeLocked()
	}
	return nil
}

func (s *Source) wakeLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// take copies whole frames into p. With nothing to read it returns a channel
// that is closed on the next change.
func (s *Source) take(p []byte, frame int) (int, <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	avail := len(s.buf) / frame * frame
	if avail > 0 {
		n := len(p) / frame * frame
		if n > avail {
			n = avail
		}
		copy(p, s.buf[:n])
		s.buf = s.buf[n:]
		return n, nil, nil
	}
	if s.closed {
		return 0, nil, errSourceGone
	}
	return 0, s.notify, nil
}

func (s *Source) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *Source) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
