package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/d1nch8g/pasimple/simple"
)

var (
	errClosed = errors.New("stream closed by client")
	errBusy   = errors.New("stream busy with i/o")
)

// Server opens blocking PortAudio streams. On Linux PortAudio reaches
// PulseAudio through its ALSA or PulseAudio host API.
type Server struct {
	config Config
}

var _ simple.Server = (*Server)(nil)

func NewServer(config Config) *Server {
	return &Server{config: config}
}

func (s *Server) Connect(ctx context.Context, req simple.ConnectRequest) (simple.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, simple.NewError(simple.ConnectionFailed, "open", err)
	}
	if s.config.Server != "" {
		if err := probe(ctx, s.config.Server, s.config.DialTimeout); err != nil {
			return nil, simple.NewError(simple.ConnectionFailed, "open", err)
		}
		if os.Getenv("PULSE_SERVER") != s.config.Server {
			os.Setenv("PULSE_SERVER", s.config.Server)
		}
	}

	frames := s.framesPerBuffer(req)
	cd, err := newCodec(req.Spec, frames)
	if err != nil {
		return nil, simple.NewError(simple.InvalidSpec, "open", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, classify("open", err)
	}
	stream, err := s.open(req, frames, cd)
	if err != nil {
		portaudio.Terminate()
		return nil, classify("open", err)
	}

	log.Printf("audio: %s: opened %s stream %q (%s, %d frames per buffer)",
		req.AppName, req.Direction, req.StreamName, req.Spec, frames)
	return &conn{
		stream: stream,
		codec:  cd,
		spec:   req.Spec,
		dir:    req.Direction,
	}, nil
}

func (s *Server) open(req simple.ConnectRequest, frames int, cd codec) (*portaudio.Stream, error) {
	dev, err := findDevice(req.Device, req.Direction)
	if err != nil {
		return nil, err
	}
	if limit := maxChannels(dev, req.Direction); req.Spec.Channels > limit {
		return nil, simple.NewError(simple.InvalidSpec, "open",
			fmt.Errorf("device %q supports %d channels, %d requested", dev.Name, limit, req.Spec.Channels))
	}

	params := portaudio.StreamParameters{
		SampleRate:      float64(req.Spec.Rate),
		FramesPerBuffer: frames,
	}
	dp := portaudio.StreamDeviceParameters{
		Device:   dev,
		Channels: req.Spec.Channels,
		Latency:  s.latency(req, dev),
	}
	if req.Direction == simple.Playback {
		params.Output = dp
	} else {
		params.Input = dp
	}

	stream, err := portaudio.OpenStream(params, cd.buffer())
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// framesPerBuffer takes the request size from the buffer attributes when set.
func (s *Server) framesPerBuffer(req simple.ConnectRequest) int {
	fs := req.Spec.FrameSize()
	size := req.Buffer.MinReq
	if req.Direction == simple.Capture {
		size = req.Buffer.FragSize
	}
	if fs > 0 && size >= fs {
		return size / fs
	}
	if s.config.FramesPerBuffer > 0 {
		return s.config.FramesPerBuffer
	}
	return GetDefaultConfig().FramesPerBuffer
}

func (s *Server) latency(req simple.ConnectRequest, dev *portaudio.DeviceInfo) time.Duration {
	if req.Buffer.TargetLength > 0 {
		return req.Spec.BytesToDuration(int64(req.Buffer.TargetLength))
	}
	if s.config.Latency > 0 {
		return s.config.Latency
	}
	if req.Direction == simple.Playback {
		return dev.DefaultHighOutputLatency
	}
	return dev.DefaultHighInputLatency
}

func maxChannels(dev *portaudio.DeviceInfo, dir simple.Direction) int {
	if dir == simple.Playback {
		return dev.MaxOutputChannels
	}
	return dev.MaxInputChannels
}

func findDevice(name string, dir simple.Direction) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if dir == simple.Playback {
			return portaudio.DefaultOutputDevice()
		}
		return portaudio.DefaultInputDevice()
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devs {
		if dev.Name == name && maxChannels(dev, dir) > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no %s device named %q", dir, name)
}

// Devices lists the devices PortAudio can open.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, classify("open", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, classify("open", err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	list := make([]Device, 0, len(devs))
	for _, dev := range devs {
		d := Device{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefaultInput:    dev == defIn,
			IsDefaultOutput:   dev == defOut,
		}
		if dev.HostApi != nil {
			d.HostAPI = dev.HostApi.Name
		}
		list = append(list, d)
	}
	return list, nil
}

// conn is one started blocking stream. io serializes buffer access; Close
// aborts the stream first so a blocked Write or Read returns.
type conn struct {
	stream *portaudio.Stream
	codec  codec
	spec   simple.SampleSpec
	dir    simple.Direction

	io        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *conn) check(op string, want simple.Direction) error {
	if c.closed.Load() {
		return simple.NewError(simple.StreamClosed, op, errClosed)
	}
	if want != 0 && c.dir != want {
		return simple.NewError(simple.InvalidState, op, fmt.Errorf("%s on a %s stream", op, c.dir))
	}
	return nil
}

func (c *conn) Write(p []byte) (int, error) {
	c.io.Lock()
	defer c.io.Unlock()
	if err := c.check("write", simple.Playback); err != nil {
		return 0, err
	}

	n := c.codec.load(p)
	if n == 0 {
		return 0, nil
	}
	if err := c.stream.Write(); err != nil {
		if c.closed.Load() {
			return 0, simple.NewError(simple.StreamClosed, "write", errClosed)
		}
		err = classify("write", err)
		// The buffer was still queued behind the gap.
		if simple.KindOf(err) == simple.Underflow {
			return n, err
		}
		return 0, err
	}
	return n, nil
}

func (c *conn) Read(p []byte) (int, error) {
	c.io.Lock()
	defer c.io.Unlock()
	if err := c.check("read", simple.Capture); err != nil {
		return 0, err
	}

	if c.codec.reserve(p) == 0 {
		return 0, nil
	}
	if err := c.stream.Read(); err != nil {
		if c.closed.Load() {
			return 0, simple.NewError(simple.StreamClosed, "read", errClosed)
		}
		err = classify("read", err)
		// Samples before the overrun were lost, the buffer itself is valid.
		if simple.KindOf(err) == simple.Overflow {
			return c.codec.store(p), err
		}
		return 0, err
	}
	return c.codec.store(p), nil
}

// Drain stops the stream, which returns once every queued buffer played.
func (c *conn) Drain() error {
	c.io.Lock()
	defer c.io.Unlock()
	if err := c.check("drain", simple.Playback); err != nil {
		return err
	}
	return classify("drain", c.stream.Stop())
}

// Flush drops queued buffers by aborting and restarting the stream.
func (c *conn) Flush() error {
	c.io.Lock()
	defer c.io.Unlock()
	if err := c.check("flush", 0); err != nil {
		return err
	}
	if err := c.stream.Abort(); err != nil {
		return classify("flush", err)
	}
	return classify("flush", c.stream.Start())
}

// Latency estimates the frames queued in the host buffer. For playback the
// host buffer is taken to be the reported output latency.
//
// It does not wait for a Write or Read in progress; it reports a non-fatal
// error instead so the caller keeps its previous snapshot. Holding io also
// keeps Close from releasing the stream underneath the query.
func (c *conn) Latency() (simple.LatencyInfo, error) {
	if !c.io.TryLock() {
		return simple.LatencyInfo{}, simple.NewError(simple.InvalidState, "latency", errBusy)
	}
	defer c.io.Unlock()
	if err := c.check("latency", 0); err != nil {
		return simple.LatencyInfo{}, err
	}

	var buffered int
	if c.dir == simple.Playback {
		avail, err := c.stream.AvailableToWrite()
		if err != nil {
			return simple.LatencyInfo{}, classify("latency", err)
		}
		if info := c.stream.Info(); info != nil {
			buffered = int(info.OutputLatency.Seconds()*float64(c.spec.Rate)) - avail
		}
	} else {
		avail, err := c.stream.AvailableToRead()
		if err != nil {
			return simple.LatencyInfo{}, classify("latency", err)
		}
		buffered = avail
	}

	return simple.LatencyInfo{
		BufferedFrames: uint64(max(buffered, 0)),
		DeviceClock:    c.stream.Time(),
	}, nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		abortErr := c.stream.Abort()
		if errors.Is(abortErr, portaudio.StreamIsStopped) {
			abortErr = nil
		}

		c.io.Lock()
		defer c.io.Unlock()
		c.closeErr = errors.Join(abortErr, c.stream.Close(), portaudio.Terminate())
	})
	return c.closeErr
}
