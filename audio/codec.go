package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"

	"github.com/d1nch8g/pasimple/simple"
)

// codec moves interleaved PCM bytes in and out of the typed buffer PortAudio
// reads and writes. The buffer is resliced in place, so the pointer handed to
// OpenStream always sees the current length.
type codec interface {
	// buffer returns the pointer passed to portaudio.OpenStream.
	buffer() any
	// load encodes the whole frames of p that fit into the buffer and
	// returns the number of bytes consumed.
	load(p []byte) int
	// reserve sizes the buffer for reading into p and returns its length in bytes.
	reserve(p []byte) int
	// store decodes the buffer into p and returns the number of bytes written.
	store(p []byte) int
}

type sample interface {
	uint8 | int16 | int32 | float32 | portaudio.Int24
}

type sampleCodec[T sample] struct {
	buf      []T
	width    int
	channels int
	get      func([]byte) T
	put      func([]byte, T)
}

func newSampleCodec[T sample](spec simple.SampleSpec, frames int, get func([]byte) T, put func([]byte, T)) *sampleCodec[T] {
	return &sampleCodec[T]{
		buf:      make([]T, frames*int(spec.Channels)),
		width:    spec.Format.SampleSize(),
		channels: int(spec.Channels),
		get:      get,
		put:      put,
	}
}

func (c *sampleCodec[T]) buffer() any {
	return &c.buf
}

func (c *sampleCodec[T]) size(p []byte) int {
	n := min(len(p)/c.width, cap(c.buf))
	return n - n%c.channels
}

func (c *sampleCodec[T]) load(p []byte) int {
	c.buf = c.buf[:c.size(p)]
	for i := range c.buf {
		c.buf[i] = c.get(p[i*c.width:])
	}
	return len(c.buf) * c.width
}

func (c *sampleCodec[T]) reserve(p []byte) int {
	c.buf = c.buf[:c.size(p)]
	return len(c.buf) * c.width
}

func (c *sampleCodec[T]) store(p []byte) int {
	for i, v := range c.buf {
		c.put(p[i*c.width:], v)
	}
	return len(c.buf) * c.width
}

func byteOrder(f simple.SampleFormat) binary.ByteOrder {
	if f.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// nativeLittle reports whether the host stores PortAudio samples little endian.
var nativeLittle = simple.S16NE == simple.S16LE

// newCodec returns a codec holding frames frames of spec. Formats the
// host cannot represent natively are byte swapped on the way through.
func newCodec(spec simple.SampleSpec, frames int) (codec, error) {
	order := byteOrder(spec.Format)

	switch spec.Format {
	case simple.U8:
		return newSampleCodec(spec, frames,
			func(b []byte) uint8 { return b[0] },
			func(b []byte, v uint8) { b[0] = v }), nil

	case simple.S16LE, simple.S16BE:
		return newSampleCodec(spec, frames,
			func(b []byte) int16 { return int16(order.Uint16(b)) },
			func(b []byte, v int16) { order.PutUint16(b, uint16(v)) }), nil

	case simple.S32LE, simple.S32BE:
		return newSampleCodec(spec, frames,
			func(b []byte) int32 { return int32(order.Uint32(b)) },
			func(b []byte, v int32) { order.PutUint32(b, uint32(v)) }), nil

	case simple.Float32LE, simple.Float32BE:
		return newSampleCodec(spec, frames,
			func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) },
			func(b []byte, v float32) { order.PutUint32(b, math.Float32bits(v)) }), nil

	case simple.S24LE, simple.S24BE:
		swap := spec.Format.LittleEndian() != nativeLittle
		return newSampleCodec(spec, frames,
			func(b []byte) portaudio.Int24 {
				if swap {
					return portaudio.Int24{b[2], b[1], b[0]}
				}
				return portaudio.Int24{b[0], b[1], b[2]}
			},
			func(b []byte, v portaudio.Int24) {
				if swap {
					b[0], b[1], b[2] = v[2], v[1], v[0]
					return
				}
				copy(b, v[:])
			}), nil

	case simple.S24_32LE, simple.S24_32BE:
		// 24 significant bits in the low bytes of a 32 bit word; PortAudio
		// expects them in the high bytes.
		return newSampleCodec(spec, frames,
			func(b []byte) int32 { return int32(order.Uint32(b) << 8) },
			func(b []byte, v int32) { order.PutUint32(b, uint32(v>>8)&0xffffff) }), nil
	}
	return nil, fmt.Errorf("sample format %s is not supported by the portaudio backend", spec.Format)
}
