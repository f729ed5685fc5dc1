package loopback

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/d1nch8g/pasimple/simple"
)

var stereo = simple.SampleSpec{Format: simple.S16LE, Rate: 44100, Channels: 2}

func connect(t *testing.T, s *Server, name string, dir simple.Direction, attr simple.BufferAttr) *conn {
	t.Helper()
	c, err := s.Connect(context.Background(), simple.ConnectRequest{
		AppName:    "test",
		StreamName: name,
		Direction:  dir,
		Spec:       stereo,
		Buffer:     attr,
	})
	if err != nil {
		t.Fatalf("Connect(%q): %v", name, err)
	}
	t.Cleanup(func() { c.Close() })
	return c.(*conn)
}

func TestCapacity(t *testing.T) {
	s := NewServer()

	tests := []struct {
		attr simple.BufferAttr
		want int64
	}{
		{simple.BufferAttr{}, 44100},
		{simple.BufferAttr{TargetLength: 4097}, 4096},
		{simple.BufferAttr{MaxLength: 800}, 800},
		{simple.BufferAttr{TargetLength: 1}, 4},
	}
	for _, tt := range tests {
		c := connect(t, s, "cap", simple.Playback, tt.attr)
		if c.capacity != tt.want {
			t.Errorf("%+v: capacity %d, want %d", tt.attr, c.capacity, tt.want)
		}
	}
}

func TestWriteFillsBufferThenBlocks(t *testing.T) {
	s := NewServer()
	c := connect(t, s, "music", simple.Playback, simple.BufferAttr{TargetLength: 4000})

	n, err := c.Write(make([]byte, 10000))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4000 {
		t.Fatalf("expected the buffer size to be accepted, got %d", n)
	}

	n, err = c.Write(make([]byte, 400))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n == 0 || n > 400 || n%4 != 0 {
		t.Fatalf("expected whole frames once the device played, got %d bytes", n)
	}
	if stats := s.Stats("music"); stats.Written-stats.Consumed > 4000 {
		t.Errorf("buffer overfilled: %+v", stats)
	}
}

func TestDrainPlaysEverything(t *testing.T) {
	s := NewServer(WithSpeed(20))
	c := connect(t, s, "music", simple.Playback, simple.BufferAttr{})

	if _, err := c.Write(make([]byte, 8000)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	stats := s.Stats("music")
	if stats.Written != 8000 || stats.Consumed != 8000 || stats.Streams != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	info, err := c.Latency()
	if err != nil {
		t.Fatalf("Latency: %v", err)
	}
	if info.BufferedFrames != 0 {
		t.Errorf("expected nothing buffered after drain, got %d frames", info.BufferedFrames)
	}
	if want := stereo.BytesToDuration(8000); info.DeviceClock != want {
		t.Errorf("device clock %v, want %v", info.DeviceClock, want)
	}
}

func TestWrongDirection(t *testing.T) {
	s := NewServer()
	play := connect(t, s, "music", simple.Playback, simple.BufferAttr{})
	rec := connect(t, s, "mic", simple.Capture, simple.BufferAttr{})

	if _, err := play.Read(make([]byte, 4)); simple.KindOf(err) != simple.InvalidState {
		t.Errorf("Read on playback: %v", err)
	}
	if _, err := rec.Write(make([]byte, 4)); simple.KindOf(err) != simple.InvalidState {
		t.Errorf("Write on capture: %v", err)
	}
	if err := rec.Drain(); simple.KindOf(err) != simple.InvalidState {
		t.Errorf("Drain on capture: %v", err)
	}
}

func TestConnectErrors(t *testing.T) {
	s := NewServer(WithFormats(simple.S16LE))

	_, err := s.Connect(context.Background(), simple.ConnectRequest{
		StreamName: "x",
		Direction:  simple.Playback,
		Spec:       simple.SampleSpec{Format: simple.U8, Rate: 8000, Channels: 1},
	})
	if simple.KindOf(err) != simple.InvalidSpec {
		t.Errorf("expected InvalidSpec, got %v", err)
	}

	_, err = s.Connect(context.Background(), simple.ConnectRequest{StreamName: "x", Spec: stereo})
	if simple.KindOf(err) != simple.InvalidSpec {
		t.Errorf("expected InvalidSpec for a missing direction, got %v", err)
	}

	s.Shutdown()
	_, err = s.Connect(context.Background(), simple.ConnectRequest{StreamName: "x", Direction: simple.Playback, Spec: stereo})
	if simple.KindOf(err) != simple.ConnectionFailed {
		t.Errorf("expected ConnectionFailed, got %v", err)
	}
}

func TestShutdownEndsLiveStreams(t *testing.T) {
	s := NewServer()
	c := connect(t, s, "mic", simple.Capture, simple.BufferAttr{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Read(make([]byte, 64))
		done <- err
	}()

	s.Shutdown()
	select {
	case err := <-done:
		if simple.KindOf(err) != simple.StreamClosed {
			t.Errorf("expected StreamClosed, got %v", err)
		}
		if !errors.Is(err, errServerDown) {
			t.Errorf("expected the shutdown reason, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Shutdown")
	}
}

func TestSourceDeliversWholeFrames(t *testing.T) {
	s := NewServer()
	c := connect(t, s, "mic", simple.Capture, simple.BufferAttr{})
	src := s.Source("mic")

	src.Write([]byte{1, 2, 3})
	src.Write([]byte{4, 5, 6, 7, 8, 9})

	buf := make([]byte, 64)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected two frames, got %d bytes", n)
	}

	info, err := c.Latency()
	if err != nil {
		t.Fatalf("Latency: %v", err)
	}
	if info.BufferedFrames != 0 {
		t.Errorf("expected a partial frame to not count, got %d frames", info.BufferedFrames)
	}
	if got := s.Stats("mic").Read; got != 8 {
		t.Errorf("expected 8 bytes read, got %d", got)
	}

	src.Close()
	if _, err := src.Write([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected ErrClosedPipe after Close, got %v", err)
	}
	if _, err := c.Read(buf); simple.KindOf(err) != simple.StreamClosed {
		t.Errorf("expected StreamClosed after the source went away, got %v", err)
	}
}

func TestFlushCapture(t *testing.T) {
	s := NewServer()
	c := connect(t, s, "mic", simple.Capture, simple.BufferAttr{})
	s.Source("mic").Write(make([]byte, 64))

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := s.Source("mic").buffered(); got != 0 {
		t.Errorf("expected an empty source, got %d bytes", got)
	}
}
