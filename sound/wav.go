package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/d1nch8g/pasimple/simple"
)

// WAV format tags.
const (
	wavePCM        = 1
	waveFloat      = 3
	waveALaw       = 6
	waveULaw       = 7
	waveExtensible = 0xfffe
)

// streamingSize marks a data chunk whose length was unknown when the
// header was written.
const streamingSize = 0xffffffff

// maxFmtSize bounds the fmt chunk; the extensible layout needs 40 bytes.
const maxFmtSize = 1024

type riffHeader struct {
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32
	Format    [4]byte // "WAVE"
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeWAV reads a RIFF/WAVE header from r and returns the audio that
// follows. The data is streamed, r is not read ahead of the caller.
func DecodeWAV(r io.Reader) (*Audio, error) {
	var riff riffHeader
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if string(riff.ChunkID[:]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var spec *simple.SampleSpec
	for {
		var ch chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("invalid WAV file: missing data chunk")
			}
			return nil, fmt.Errorf("failed to read WAV chunk: %w", err)
		}

		// Chunks are padded to an even size.
		size := int64(ch.Size) + int64(ch.Size%2)
		switch string(ch.ID[:]) {
		case "fmt ":
			if size > maxFmtSize {
				return nil, fmt.Errorf("invalid WAV file: fmt chunk of %d bytes", ch.Size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			s, err := parseFmt(body[:ch.Size])
			if err != nil {
				return nil, err
			}
			spec = &s

		case "data":
			if spec == nil {
				return nil, fmt.Errorf("invalid WAV file: data before fmt chunk")
			}
			a := &Audio{Spec: *spec, r: r, Length: -1}
			if ch.Size != 0 && ch.Size != streamingSize {
				a.r = io.LimitReader(r, int64(ch.Size))
				a.Length = int64(ch.Size)
			}
			return a, nil

		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return nil, fmt.Errorf("failed to skip %q chunk: %w", ch.ID[:], err)
			}
		}
	}
}

func parseFmt(body []byte) (simple.SampleSpec, error) {
	var f fmtChunk
	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &f); err != nil {
		return simple.SampleSpec{}, fmt.Errorf("failed to read fmt chunk: %w", err)
	}
	tag := f.AudioFormat
	// WAVE_FORMAT_EXTENSIBLE carries the real tag at the start of the sub format GUID.
	if tag == waveExtensible && len(body) >= 26 {
		tag = binary.LittleEndian.Uint16(body[24:26])
	}

	spec := simple.SampleSpec{
		Rate:     int(f.SampleRate),
		Channels: int(f.NumChannels),
	}
	switch {
	case tag == wavePCM && f.BitsPerSample == 8:
		spec.Format = simple.U8
	case tag == wavePCM && f.BitsPerSample == 16:
		spec.Format = simple.S16LE
	case tag == wavePCM && f.BitsPerSample == 24:
		spec.Format = simple.S24LE
	case tag == wavePCM && f.BitsPerSample == 32:
		spec.Format = simple.S32LE
	case tag == waveFloat && f.BitsPerSample == 32:
		spec.Format = simple.Float32LE
	case tag == waveALaw && f.BitsPerSample == 8:
		spec.Format = simple.ALaw
	case tag == waveULaw && f.BitsPerSample == 8:
		spec.Format = simple.ULaw
	default:
		return simple.SampleSpec{}, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", tag, f.BitsPerSample)
	}

	if err := spec.Validate(); err != nil {
		return simple.SampleSpec{}, fmt.Errorf("invalid WAV file: %w", err)
	}
	return spec, nil
}

func wavTag(f simple.SampleFormat) (uint16, error) {
	switch f {
	case simple.U8, simple.S16LE, simple.S24LE, simple.S32LE:
		return wavePCM, nil
	case simple.Float32LE:
		return waveFloat, nil
	case simple.ALaw:
		return waveALaw, nil
	case simple.ULaw:
		return waveULaw, nil
	}
	return 0, fmt.Errorf("sample format %s cannot be stored in a WAV file", f)
}

// WAVWriter writes a WAV file. The sizes in the header are filled in by Close.
type WAVWriter struct {
	w    io.WriteSeeker
	size int64
}

const wavHeaderSize = 44

// NewWAVWriter writes a header for spec and returns a writer for the samples.
func NewWAVWriter(w io.WriteSeeker, spec simple.SampleSpec) (*WAVWriter, error) {
	tag, err := wavTag(spec.Format)
	if err != nil {
		return nil, err
	}
	header := struct {
		riffHeader
		Fmt chunkHeader
		fmtChunk
		Data chunkHeader
	}{
		riffHeader: riffHeader{
			ChunkID:   [4]byte{'R', 'I', 'F', 'F'},
			ChunkSize: streamingSize,
			Format:    [4]byte{'W', 'A', 'V', 'E'},
		},
		Fmt: chunkHeader{ID: [4]byte{'f', 'm', 't', ' '}, Size: 16},
		fmtChunk: fmtChunk{
			AudioFormat:   tag,
			NumChannels:   uint16(spec.Channels),
			SampleRate:    uint32(spec.Rate),
			ByteRate:      uint32(spec.BytesPerSecond()),
			BlockAlign:    uint16(spec.FrameSize()),
			BitsPerSample: uint16(spec.Format.SampleSize() * 8),
		},
		Data: chunkHeader{ID: [4]byte{'d', 'a', 't', 'a'}, Size: streamingSize},
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return &WAVWriter{w: w}, nil
}

func (ww *WAVWriter) Write(p []byte) (int, error) {
	n, err := ww.w.Write(p)
	ww.size += int64(n)
	return n, err
}

// Close patches the RIFF and data sizes. It does not close the underlying writer.
func (ww *WAVWriter) Close() error {
	if ww.size%2 == 1 {
		if _, err := ww.w.Write([]byte{0}); err != nil {
			return fmt.Errorf("failed to pad WAV data: %w", err)
		}
	}
	riffSize := uint32(wavHeaderSize - 8 + ww.size + ww.size%2)
	if _, err := ww.w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("failed to update WAV header: %w", err)
	}
	if err := binary.Write(ww.w, binary.LittleEndian, riffSize); err != nil {
		return fmt.Errorf("failed to update WAV header: %w", err)
	}
	if _, err := ww.w.Seek(wavHeaderSize-4, io.SeekStart); err != nil {
		return fmt.Errorf("failed to update WAV header: %w", err)
	}
	if err := binary.Write(ww.w, binary.LittleEndian, uint32(ww.size)); err != nil {
		return fmt.Errorf("failed to update WAV header: %w", err)
	}
	_, err := ww.w.Seek(0, io.SeekEnd)
	return err
}
