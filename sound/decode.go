package sound

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"

	"github.com/d1nch8g/pasimple/simple"
)

// Audio is a stream of PCM data in Spec.
type Audio struct {
	Spec simple.SampleSpec
	// Length is the size of the PCM data in bytes, or -1 when unknown.
	Length int64

	r      io.Reader
	closer io.Closer
}

func (a *Audio) Read(p []byte) (int, error) {
	return a.r.Read(p)
}

// Close releases the file behind the audio, if any.
func (a *Audio) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// DecodeMP3 decodes r to signed 16 bit little endian stereo at the file's rate.
func DecodeMP3(r io.Reader) (*Audio, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &Audio{
		Spec: simple.SampleSpec{
			Format:   simple.S16LE,
			Rate:     decoder.SampleRate(),
			Channels: 2,
		},
		Length: decoder.Length(),
		r:      decoder,
	}, nil
}

// RawAudio wraps headerless PCM in spec.
func RawAudio(r io.Reader, spec simple.SampleSpec) *Audio {
	return &Audio{Spec: spec, Length: -1, r: r}
}

// OpenFile opens an audio file, picking the decoder by extension. Files
// that are neither .mp3 nor .wav are read as raw PCM in fallback.
func OpenFile(path string, fallback simple.SampleSpec) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var a *Audio
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		a, err = DecodeMP3(f)
	case ".wav", ".wave":
		a, err = DecodeWAV(f)
	default:
		a = RawAudio(f, fallback)
		if st, statErr := f.Stat(); statErr == nil {
			a.Length = st.Size()
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.closer = f
	return a, nil
}
