package loopback

import (
	"errors"
	"sync"
	"time"

	"github.com/d1nch8g/pasimple/simple"
)

var errWrongDirection = errors.New("operation does not match the stream direction")

// conn is one stream. Playback fields model a device that consumes bps bytes
// per second from a buffer of capacity bytes; played is advanced lazily from
// mark whenever the connection is touched.
type conn struct {
	srv   *Server
	req   simple.ConnectRequest
	frame int
	bps   float64
	stats *counters

	done    chan struct{}
	endOnce sync.Once
	reason  error

	mu       sync.Mutex
	xrun     bool
	capacity int64
	written  int64
	played   int64
	mark     time.Time
	read     int64
	src      *Source
}

func (c *conn) end(reason error) {
	c.endOnce.Do(func() {
		c.reason = reason
		close(c.done)
		c.srv.forget(c)
	})
}

// ended returns a StreamClosed error once the connection is over.
func (c *conn) ended(op string) error {
	select {
	case <-c.done:
		return simple.NewError(simple.StreamClosed, op, c.reason)
	default:
		return nil
	}
}

// advance moves the device clock to now. Callers hold c.mu.
func (c *conn) advance(now time.Time) {
	if c.played >= c.written {
		c.mark = now
		return
	}
	n := int64(now.Sub(c.mark).Seconds()*c.bps) / int64(c.frame) * int64(c.frame)
	if n <= 0 {
		return
	}
	if c.played+n >= c.written {
		c.stats.consumed.Add(c.written - c.played)
		c.played = c.written
		c.mark = now
		return
	}
	c.played += n
	c.stats.consumed.Add(n)
	c.mark = c.mark.Add(c.duration(n))
}

func (c *conn) duration(n int64) time.Duration {
	return time.Duration(float64(n) / c.bps * float64(time.Second))
}

// until returns how long the device needs to consume n more bytes.
func (c *conn) until(n int64, now time.Time) time.Duration {
	d := c.duration(n) - now.Sub(c.mark)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (c *conn) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.done:
	}
}

func (c *conn) Write(p []byte) (int, error) {
	if c.req.Direction != simple.Playback {
		return 0, simple.NewError(simple.InvalidState, "write", errWrongDirection)
	}
	for {
		if err := c.ended("write"); err != nil {
			return 0, err
		}

		c.mu.Lock()
		now := time.Now()
		c.advance(now)
		if c.xrun {
			c.xrun = false
			c.mu.Unlock()
			c.stats.underflows.Add(1)
			return 0, simple.NewError(simple.Underflow, "write", nil)
		}

		space := c.capacity - (c.written - c.played)
		if space >= int64(c.frame) {
			n := int64(len(p))
			if n > space {
				n = space
			}
			n = n / int64(c.frame) * int64(c.frame)
			c.written += n
			c.mu.Unlock()
			c.stats.written.Add(n)
			return int(n), nil
		}
		wait := c.until(int64(c.frame), now)
		c.mu.Unlock()

		c.sleep(wait)
	}
}

func (c *conn) Drain() error {
	if c.req.Direction != simple.Playback {
		return simple.NewError(simple.InvalidState, "drain", errWrongDirection)
	}
	for {
		if err := c.ended("drain"); err != nil {
			return err
		}

		c.mu.Lock()
		now := time.Now()
		c.advance(now)
		pending := c.written - c.played
		if pending == 0 {
			c.mu.Unlock()
			return nil
		}
		wait := c.until(pending, now)
		c.mu.Unlock()

		c.sleep(wait)
	}
}

func (c *conn) Read(p []byte) (int, error) {
	if c.req.Direction != simple.Capture {
		return 0, simple.NewError(simple.InvalidState, "read", errWrongDirection)
	}
	for {
		if err := c.ended("read"); err != nil {
			return 0, err
		}

		c.mu.Lock()
		xrun := c.xrun
		c.xrun = false
		c.mu.Unlock()
		if xrun {
			c.stats.overflows.Add(1)
			return 0, simple.NewError(simple.Overflow, "read", nil)
		}

		n, wait, err := c.src.take(p, c.frame)
		if n > 0 {
			c.mu.Lock()
			c.read += int64(n)
			c.mu.Unlock()
			c.stats.read.Add(int64(n))
			return n, nil
		}
		if err != nil {
			return 0, simple.NewError(simple.StreamClosed, "read", err)
		}

		select {
		case <-wait:
		case <-c.done:
		}
	}
}

func (c *conn) Flush() error {
	if err := c.ended("flush"); err != nil {
		return err
	}
	if c.req.Direction == simple.Capture {
		c.src.discard()
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(time.Now())
	c.stats.discarded.Add(c.written - c.played)
	c.written = c.played
	return nil
}

func (c *conn) Latency() (simple.LatencyInfo, error) {
	if err := c.ended("latency"); err != nil {
		return simple.LatencyInfo{}, err
	}

	if c.req.Direction == simple.Capture {
		buffered := c.src.buffered()
		c.mu.Lock()
		read := c.read
		c.mu.Unlock()
		return simple.LatencyInfo{
			BufferedFrames: uint64(buffered / c.frame),
			DeviceClock:    c.req.Spec.BytesToDuration(read + int64(buffered)),
		}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(time.Now())
	return simple.LatencyInfo{
		BufferedFrames: uint64((c.written - c.played) / int64(c.frame)),
		DeviceClock:    c.req.Spec.BytesToDuration(c.played),
	}, nil
}

func (c *conn) Close() error {
	c.end(errClosed)
	return nil
}
