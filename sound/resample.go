package sound

import (
	"errors"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/d1nch8g/pasimple/simple"
)

// Resample converts 16 bit little endian audio to rate. The returned audio
// closes a when closed.
func Resample(a *Audio, rate int) (*Audio, error) {
	if a.Spec.Rate == rate {
		return a, nil
	}
	if a.Spec.Format != simple.S16LE {
		return nil, simple.NewError(simple.InvalidSpec, "resample",
			fmt.Errorf("resampling needs s16le samples, got %s", a.Spec.Format))
	}
	spec := a.Spec
	spec.Rate = rate
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// Process filters a single channel, so every channel gets its own resampler.
	rs := make([]resampling.Resampler, a.Spec.Channels)
	for i := range rs {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(a.Spec.Rate),
			OutputRate: float64(rate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
		rs[i] = r
	}

	return &Audio{
		Spec:   spec,
		Length: -1,
		r: &resampleReader{
			src:   a,
			rs:    rs,
			frame: a.Spec.FrameSize(),
			buf:   make([]byte, DefaultChunkFrames*a.Spec.FrameSize()),
		},
		closer: a,
	}, nil
}

type resampleReader struct {
	src   io.Reader
	rs    []resampling.Resampler
	frame int
	buf   []byte
	out   []byte
	err   error
}

func (r *resampleReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

// fill resamples the next chunk of whole frames from src. At the end of src
// the filters are flushed so the tail is not lost.
func (r *resampleReader) fill() {
	n, err := io.ReadFull(r.src, r.buf)
	n = n / r.frame * r.frame
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	channels := len(r.rs)
	frames := n / r.frame
	output := make([][]float64, channels)
	for c, rs := range r.rs {
		if frames > 0 {
			input := make([]float64, frames)
			for i := range input {
				off := (i*channels + c) * 2
				sample := int16(r.buf[off]) | int16(r.buf[off+1])<<8
				input[i] = float64(sample) / 32768.0
			}
			out, perr := rs.Process(input)
			if perr != nil {
				r.err = fmt.Errorf("resample error: %w", perr)
				return
			}
			output[c] = out
		}
		if err != nil {
			tail, ferr := rs.Flush()
			if ferr != nil {
				r.err = fmt.Errorf("resample error: %w", ferr)
				return
			}
			output[c] = append(output[c], tail...)
		}
	}
	r.err = err
	r.out = interleave(output)
}

// interleave converts per channel samples back to 16 bit frames, cut to the
// shortest channel.
func interleave(channels [][]float64) []byte {
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		frames = min(frames, len(ch))
	}

	out := make([]byte, frames*len(channels)*2)
	for i := range frames {
		for c, ch := range channels {
			s := ch[i]
			sample := int16(s * 32767.0)
			if s > 1.0 {
				sample = 32767
			} else if s < -1.0 {
				sample = -32768
			}
			off := (i*len(channels) + c) * 2
			out[off] = byte(sample)
			out[off+1] = byte(sample >> 8)
		}
	}
	return out
}
