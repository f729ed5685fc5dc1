package sound

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/d1nch8g/pasimple/simple"
)

// StreamPlayer plays through one playback stream.
type StreamPlayer struct {
	stream *simple.PlaybackStream
	frames int
}

var _ Player = (*StreamPlayer)(nil)

func NewStreamPlayer(stream *simple.PlaybackStream) *StreamPlayer {
	return &StreamPlayer{stream: stream, frames: DefaultChunkFrames}
}

func (p *StreamPlayer) Play(ctx context.Context, r io.Reader) error {
	defer p.stream.Close()
	// Closing the stream is the only way to abort a blocked write.
	stop := context.AfterFunc(ctx, func() { p.stream.Close() })
	defer stop()

	fs := p.stream.Spec().FrameSize()
	buf := make([]byte, p.frames*fs)
	for {
		n, rerr := io.ReadFull(r, buf)
		if whole := n / fs * fs; whole > 0 {
			if err := p.write(ctx, buf[:whole]); err != nil {
				return err
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			if n%fs != 0 {
				log.Printf("sound: dropping %d trailing bytes of a partial frame", n%fs)
			}
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if err := p.stream.Drain(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *StreamPlayer) write(ctx context.Context, b []byte) error {
	for len(b) > 0 {
		n, err := p.stream.Write(b)
		b = b[n:]
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, simple.ErrUnderflow) {
			log.Printf("sound: %s: playback underflow", p.stream.Name())
			continue
		}
		return err
	}
	return nil
}
