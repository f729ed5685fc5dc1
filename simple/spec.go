package simple

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Limits accepted by Validate.
const (
	MaxRate     = 48000 * 8
	MaxChannels = 32
)

// SampleFormat is a PCM sample encoding.
type SampleFormat int

const (
	FormatInvalid SampleFormat = iota
	U8
	ALaw
	ULaw
	S16LE
	S16BE
	Float32LE
	Float32BE
	S32LE
	S32BE
	S24LE
	S24BE
	S24_32LE
	S24_32BE
)

// Native endian aliases.
var (
	S16NE     = nativeFormat(S16LE, S16BE)
	Float32NE = nativeFormat(Float32LE, Float32BE)
	S32NE     = nativeFormat(S32LE, S32BE)
)

var littleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

func nativeFormat(le, be SampleFormat) SampleFormat {
	if littleEndian {
		return le
	}
	return be
}

var formatNames = map[SampleFormat]string{
	U8:        "u8",
	ALaw:      "alaw",
	ULaw:      "ulaw",
	S16LE:     "s16le",
	S16BE:     "s16be",
	Float32LE: "float32le",
	Float32BE: "float32be",
	S32LE:     "s32le",
	S32BE:     "s32be",
	S24LE:     "s24le",
	S24BE:     "s24be",
	S24_32LE:  "s24-32le",
	S24_32BE:  "s24-32be",
}

func (f SampleFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", int(f))
}

// Valid reports whether f is a known format.
func (f SampleFormat) Valid() bool {
	_, ok := formatNames[f]
	return ok
}

// SampleSize returns the size of one sample in bytes, or 0 for invalid formats.
func (f SampleFormat) SampleSize() int {
	switch f {
	case U8, ALaw, ULaw:
		return 1
	case S16LE, S16BE:
		return 2
	case S24LE, S24BE:
		return 3
	case Float32LE, Float32BE, S32LE, S32BE, S24_32LE, S24_32BE:
		return 4
	}
	return 0
}

// LittleEndian reports whether multi-byte samples are little endian.
func (f SampleFormat) LittleEndian() bool {
	switch f {
	case S16LE, Float32LE, S32LE, S24LE, S24_32LE:
		return true
	}
	return false
}

// ParseSampleFormat parses names such as "s16le", "float32le" or "s16ne".
func ParseSampleFormat(s string) (SampleFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "s16ne", "s16":
		return S16NE, nil
	case "float32ne", "float32", "f32":
		return Float32NE, nil
	case "s32ne", "s32":
		return S32NE, nil
	case "s24_32le":
		return S24_32LE, nil
	case "s24_32be":
		return S24_32BE, nil
	}
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatInvalid, &Error{Kind: InvalidSpec, Err: fmt.Errorf("unknown sample format %q", s)}
}

// Direction is the direction of a stream.
type Direction int

const (
	Playback Direction = iota + 1
	Capture
)

func (d Direction) String() string {
	switch d {
	case Playback:
		return "playback"
	case Capture:
		return "capture"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection accepts "playback" and "capture" (or "record").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "playback", "play":
		return Playback, nil
	case "capture", "record":
		return Capture, nil
	}
	return 0, &Error{Kind: InvalidSpec, Err: fmt.Errorf("invalid direction %q", s)}
}

// SampleSpec describes the PCM data carried by a stream.
type SampleSpec struct {
	Format   SampleFormat
	Rate     int
	Channels int
}

// DefaultSpec is native endian 16 bit mono at 44.1 kHz.
func DefaultSpec() SampleSpec {
	return SampleSpec{Format: S16NE, Rate: 44100, Channels: 1}
}

func (s SampleSpec) String() string {
	return fmt.Sprintf("%s %dch %dHz", s.Format, s.Channels, s.Rate)
}

// Validate returns an InvalidSpec error when s cannot describe a stream.
func (s SampleSpec) Validate() error {
	switch {
	case !s.Format.Valid():
		return &Error{Kind: InvalidSpec, Err: fmt.Errorf("unsupported sample format %s", s.Format)}
	case s.Rate <= 0 || s.Rate > MaxRate:
		return &Error{Kind: InvalidSpec, Err: fmt.Errorf("sample rate %d out of range", s.Rate)}
	case s.Channels <= 0 || s.Channels > MaxChannels:
		return &Error{Kind: InvalidSpec, Err: fmt.Errorf("channel count %d out of range", s.Channels)}
	}
	return nil
}

// FrameSize is the size in bytes of one sample for every channel.
func (s SampleSpec) FrameSize() int {
	return s.Format.SampleSize() * s.Channels
}

// BytesPerSecond is the data rate of the stream.
func (s SampleSpec) BytesPerSecond() int {
	return s.FrameSize() * s.Rate
}

// BytesToDuration converts a byte count into playback time.
func (s SampleSpec) BytesToDuration(n int64) time.Duration {
	bps := int64(s.BytesPerSecond())
	if bps == 0 {
		return 0
	}
	return time.Duration(n / int64(s.FrameSize()) * int64(time.Second) / int64(s.Rate))
}

// DurationToBytes converts a duration into a frame aligned byte count.
func (s SampleSpec) DurationToBytes(d time.Duration) int64 {
	frames := int64(d) * int64(s.Rate) / int64(time.Second)
	return frames * int64(s.FrameSize())
}

// LatencyInfo is a snapshot of the stream's buffering state.
type LatencyInfo struct {
	BufferedFrames uint64
	DeviceClock    time.Duration
}

// Latency converts the buffered frames into a duration at rate.
func (l LatencyInfo) Latency(rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(l.BufferedFrames) * time.Second / time.Duration(rate)
}

// BufferAttr tunes the server side buffer. Zero fields use server defaults.
// All values are in bytes.
type BufferAttr struct {
	MaxLength    int
	TargetLength int
	Prebuf       int
	MinReq       int
	FragSize     int
}
