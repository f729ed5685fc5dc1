package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/d1nch8g/pasimple/simple"
)

func TestServerAddress(t *testing.T) {
	tests := []struct {
		in      string
		network string
		address string
	}{
		{"unix:/run/user/1000/pulse/native", "unix", "/run/user/1000/pulse/native"},
		{"/tmp/pulse.sock", "unix", "/tmp/pulse.sock"},
		{"tcp:localhost", "tcp", "localhost:4713"},
		{"tcp:10.0.0.2:4000", "tcp", "10.0.0.2:4000"},
		{"tcp6:[::1]", "tcp6", "[::1]:4713"},
		{"tcp4:127.0.0.1", "tcp4", "127.0.0.1:4713"},
		{"media-box", "tcp", "media-box:4713"},
		{"{4a3b}unix:/run/pulse/native", "unix", "/run/pulse/native"},
	}
	for _, tt := range tests {
		network, address, err := serverAddress(tt.in)
		if err != nil {
			t.Errorf("serverAddress(%q): %v", tt.in, err)
			continue
		}
		if network != tt.network || address != tt.address {
			t.Errorf("serverAddress(%q) = %s %s, want %s %s", tt.in, network, address, tt.network, tt.address)
		}
	}

	for _, bad := range []string{"", "{unterminated", "{id}"} {
		if _, _, err := serverAddress(bad); err == nil {
			t.Errorf("serverAddress(%q): expected an error", bad)
		}
	}
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	// The first entry refuses connections, the second one listens.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	dead := closed.Addr().String()
	closed.Close()

	servers := fmt.Sprintf("tcp:%s tcp:%s", dead, ln.Addr())
	if err := probe(context.Background(), servers, time.Second); err != nil {
		t.Errorf("probe(%q): %v", servers, err)
	}
	if err := probe(context.Background(), "tcp:"+dead, time.Second); err == nil {
		t.Error("expected an unreachable server to fail")
	}
	if err := probe(context.Background(), "", time.Second); err != nil {
		t.Errorf("an empty server list uses the default: %v", err)
	}
}

func TestConnectUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := NewServer(Config{Server: "tcp:" + addr, DialTimeout: time.Second})
	_, err = srv.Connect(context.Background(), simple.ConnectRequest{
		StreamName: "music",
		Direction:  simple.Playback,
		Spec:       simple.DefaultSpec(),
	})
	if simple.KindOf(err) != simple.ConnectionFailed {
		t.Errorf("expected ConnectionFailed, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		op   string
		err  error
		want simple.ErrorKind
	}{
		{"write", portaudio.OutputUnderflowed, simple.Underflow},
		{"read", portaudio.InputOverflowed, simple.Overflow},
		{"open", portaudio.InvalidSampleRate, simple.InvalidSpec},
		{"open", portaudio.SampleFormatNotSupported, simple.InvalidSpec},
		{"open", portaudio.DeviceUnavailable, simple.ConnectionFailed},
		{"open", portaudio.NoDefaultOutputDevice, simple.ConnectionFailed},
		{"open", portaudio.TimedOut, simple.ConnectionFailed},
		{"write", portaudio.TimedOut, simple.StreamClosed},
		{"write", portaudio.CanNotWriteToAnInputOnlyStream, simple.InvalidState},
		{"read", portaudio.UnanticipatedHostError{Text: "broken pipe"}, simple.StreamClosed},
		{"open", errors.New("no playback device named \"hdmi\""), simple.ConnectionFailed},
		{"drain", errors.New("boom"), simple.StreamClosed},
		{"write", simple.NewError(simple.InvalidSpec, "write", nil), simple.InvalidSpec},
	}
	for _, tt := range tests {
		err := classify(tt.op, tt.err)
		if got := simple.KindOf(err); got != tt.want {
			t.Errorf("classify(%s, %v) = %s, want %s", tt.op, tt.err, got, tt.want)
		}
		if !errors.Is(err, tt.err) && simple.KindOf(tt.err) == simple.KindUnknown {
			t.Errorf("classify(%s, %v) lost the cause", tt.op, tt.err)
		}
	}
	if classify("write", nil) != nil {
		t.Error("classify(nil) must be nil")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	formats := []simple.SampleFormat{
		simple.U8,
		simple.S16LE, simple.S16BE,
		simple.S32LE, simple.S32BE,
		simple.Float32LE, simple.Float32BE,
		simple.S24LE, simple.S24BE,
	}
	for _, f := range formats {
		spec := simple.SampleSpec{Format: f, Rate: 8000, Channels: 2}
		c, err := newCodec(spec, 16)
		if err != nil {
			t.Fatalf("newCodec(%s): %v", f, err)
		}

		in := make([]byte, 3*spec.FrameSize())
		for i := range in {
			in[i] = byte(i*7 + 1)
		}
		// Keep float payloads away from NaN bit patterns.
		if f == simple.Float32LE || f == simple.Float32BE {
			in = floats(spec, 0.5, -0.25, 1, -1, 0.125, 0)
		}

		if n := c.load(in); n != len(in) {
			t.Fatalf("%s: load consumed %d of %d bytes", f, n, len(in))
		}
		out := make([]byte, len(in))
		if n := c.store(out); n != len(in) {
			t.Fatalf("%s: store wrote %d of %d bytes", f, n, len(in))
		}
		if !bytes.Equal(in, out) {
			t.Errorf("%s: round trip changed the data\n in: %v\nout: %v", f, in, out)
		}
	}
}

func floats(spec simple.SampleSpec, vals ...float32) []byte {
	c, _ := newCodec(spec, len(vals))
	sc := c.(*sampleCodec[float32])
	sc.buf = append(sc.buf[:0], vals...)
	out := make([]byte, len(vals)*4)
	sc.store(out)
	return out
}

func TestCodecWholeFrames(t *testing.T) {
	spec := simple.SampleSpec{Format: simple.S16LE, Rate: 8000, Channels: 2}
	c, err := newCodec(spec, 4)
	if err != nil {
		t.Fatalf("newCodec: %v", err)
	}

	if n := c.load(make([]byte, 7)); n != 4 {
		t.Errorf("expected one whole frame from 7 bytes, got %d", n)
	}
	if n := c.load(make([]byte, 100)); n != 16 {
		t.Errorf("expected the buffer to cap the load at 4 frames, got %d", n)
	}
	if n := c.reserve(make([]byte, 10)); n != 8 {
		t.Errorf("expected two frames reserved, got %d", n)
	}
	if n := c.load(make([]byte, 3)); n != 0 {
		t.Errorf("expected nothing loaded from a partial frame, got %d", n)
	}
}

func TestCodecS24In32(t *testing.T) {
	spec := simple.SampleSpec{Format: simple.S24_32LE, Rate: 8000, Channels: 1}
	c, err := newCodec(spec, 2)
	if err != nil {
		t.Fatalf("newCodec: %v", err)
	}
	sc := c.(*sampleCodec[int32])

	in := []byte{0x56, 0x34, 0x12, 0x00, 0xff, 0xff, 0xff, 0x00}
	c.load(in)
	if sc.buf[0] != 0x12345600 {
		t.Errorf("got %#x, want %#x", sc.buf[0], 0x12345600)
	}
	if sc.buf[1] != -256 {
		t.Errorf("expected -1 scaled to -256, got %d", sc.buf[1])
	}

	out := make([]byte, len(in))
	c.store(out)
	if !bytes.Equal(in, out) {
		t.Errorf("round trip changed the data: %v", out)
	}
}

func TestCodecUnsupported(t *testing.T) {
	for _, f := range []simple.SampleFormat{simple.ALaw, simple.ULaw} {
		if _, err := newCodec(simple.SampleSpec{Format: f, Rate: 8000, Channels: 1}, 16); err == nil {
			t.Errorf("newCodec(%s): expected an error", f)
		}
	}
}

func TestFramesPerBuffer(t *testing.T) {
	spec := simple.SampleSpec{Format: simple.S16LE, Rate: 44100, Channels: 2}
	tests := []struct {
		config Config
		req    simple.ConnectRequest
		want   int
	}{
		{Config{}, simple.ConnectRequest{Direction: simple.Playback, Spec: spec}, 1024},
		{Config{FramesPerBuffer: 256}, simple.ConnectRequest{Direction: simple.Playback, Spec: spec}, 256},
		{Config{FramesPerBuffer: 256}, simple.ConnectRequest{Direction: simple.Playback, Spec: spec,
			Buffer: simple.BufferAttr{MinReq: 4000}}, 1000},
		{Config{}, simple.ConnectRequest{Direction: simple.Capture, Spec: spec,
			Buffer: simple.BufferAttr{MinReq: 4000, FragSize: 800}}, 200},
	}
	for _, tt := range tests {
		if got := NewServer(tt.config).framesPerBuffer(tt.req); got != tt.want {
			t.Errorf("framesPerBuffer(%+v, %+v) = %d, want %d", tt.config, tt.req.Buffer, got, tt.want)
		}
	}
}

func TestDeviceDirections(t *testing.T) {
	d := Device{Name: "duplex", MaxInputChannels: 2, MaxOutputChannels: 2}
	if dirs := d.Directions(); len(dirs) != 2 {
		t.Errorf("expected both directions, got %v", dirs)
	}
	if dirs := (Device{MaxInputChannels: 1}).Directions(); len(dirs) != 1 || dirs[0] != simple.Capture {
		t.Errorf("expected capture only, got %v", dirs)
	}
}

func TestLatencyDuringIO(t *testing.T) {
	c := &conn{spec: simple.DefaultSpec(), dir: simple.Playback}

	c.io.Lock()
	_, err := c.Latency()
	c.io.Unlock()
	if simple.KindOf(err) != simple.InvalidState || simple.KindOf(err).Fatal() {
		t.Errorf("expected a non-fatal InvalidState while busy, got %v", err)
	}

	c.closed.Store(true)
	if _, err := c.Latency(); simple.KindOf(err) != simple.StreamClosed {
		t.Errorf("expected StreamClosed after close, got %v", err)
	}
}
