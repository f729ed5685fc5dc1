package stt

import (
	"context"
	"fmt"

	"github.com/d1nch8g/pasimple/simple"
)

// STTClient defines the interface for speech-to-text implementations
type STTClient interface {
	// StreamRecognize performs streaming speech recognition
	// audioData: channel receiving PCM chunks in spec, closed at the end of speech
	// results: channel for sending recognized text, closed when recognition ends
	StreamRecognize(ctx context.Context, audioData <-chan []byte, results chan<- string, spec simple.SampleSpec) error

	// Close closes the STT client and cleans up resources
	Close() error
}

// CaptureSpec is the sample spec recognizers accept: 16 bit little endian mono.
func CaptureSpec(rate int) simple.SampleSpec {
	return simple.SampleSpec{Format: simple.S16LE, Rate: rate, Channels: 1}
}

func checkSpec(spec simple.SampleSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.Format != simple.S16LE {
		return simple.NewError(simple.InvalidSpec, "recognize",
			fmt.Errorf("recognition needs s16le samples, got %s", spec.Format))
	}
	return nil
}
