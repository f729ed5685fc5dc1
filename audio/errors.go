package audio

import (
	"errors"

	"github.com/gordonklaus/portaudio"

	"github.com/d1nch8g/pasimple/simple"
)

// kindOf maps a PortAudio error to the stream error taxonomy. ok is false
// for errors PortAudio did not produce.
func kindOf(err error) (kind simple.ErrorKind, ok bool) {
	var hostErr portaudio.UnanticipatedHostError
	if errors.As(err, &hostErr) {
		return simple.StreamClosed, true
	}

	var paErr portaudio.Error
	if !errors.As(err, &paErr) {
		return simple.KindUnknown, false
	}

	switch paErr {
	case portaudio.OutputUnderflowed:
		return simple.Underflow, true
	case portaudio.InputOverflowed:
		return simple.Overflow, true

	case portaudio.InvalidChannelCount,
		portaudio.InvalidSampleRate,
		portaudio.InvalidFlag,
		portaudio.SampleFormatNotSupported,
		portaudio.BadIODeviceCombination,
		portaudio.BufferTooBig,
		portaudio.BufferTooSmall,
		portaudio.BadBufferPtr:
		return simple.InvalidSpec, true

	case portaudio.NotInitialized,
		portaudio.InvalidDevice,
		portaudio.DeviceUnavailable,
		portaudio.HostApiNotFound,
		portaudio.InvalidHostApi,
		portaudio.NoDefaultInputDevice,
		portaudio.NoDefaultOutputDevice,
		portaudio.InsufficientMemory:
		return simple.ConnectionFailed, true

	case portaudio.StreamIsStopped,
		portaudio.StreamIsNotStopped,
		portaudio.CanNotReadFromACallbackStream,
		portaudio.CanNotWriteToACallbackStream,
		portaudio.CanNotReadFromAnOutputOnlyStream,
		portaudio.CanNotWriteToAnInputOnlyStream:
		return simple.InvalidState, true
	}
	return simple.StreamClosed, true
}

// classify wraps err for the stream layer. Unknown errors during open mean
// the server could not be reached; afterwards they end the stream.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if simple.KindOf(err) != simple.KindUnknown {
		return err
	}
	kind, _ := kindOf(err)
	switch {
	case op == "open" && (kind == simple.KindUnknown || kind == simple.StreamClosed):
		kind = simple.ConnectionFailed
	case kind == simple.KindUnknown:
		kind = simple.StreamClosed
	}
	return simple.NewError(kind, op, err)
}
