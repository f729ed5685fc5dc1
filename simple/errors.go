package simple

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure reported by a stream.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors that did not come from this package.
	KindUnknown ErrorKind = iota
	// ConnectionFailed means the audio server could not be reached.
	ConnectionFailed
	// InvalidSpec means the sample spec or the data does not fit the stream.
	InvalidSpec
	// InvalidState means the handle is closed, drained or failed.
	InvalidState
	// StreamClosed means the server or the peer ended the stream.
	StreamClosed
	// Underflow means the playback buffer ran dry.
	Underflow
	// Overflow means the capture buffer overran.
	Overflow
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection failed"
	case InvalidSpec:
		return "invalid spec"
	case InvalidState:
		return "invalid state"
	case StreamClosed:
		return "stream closed"
	case Underflow:
		return "underflow"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind moves an open stream to the failed state.
func (k ErrorKind) Fatal() bool {
	return k == ConnectionFailed || k == StreamClosed
}

// Error is the error type returned by every stream operation.
type Error struct {
	Kind   ErrorKind
	Op     string // open, write, read, drain, flush, latency
	Stream string // stream name, empty when unknown
	Err    error  // underlying server error, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Stream != "" {
		msg = fmt.Sprintf("stream %q: %s", e.Stream, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is.
var (
	ErrConnectionFailed = &Error{Kind: ConnectionFailed}
	ErrInvalidSpec      = &Error{Kind: InvalidSpec}
	ErrInvalidState     = &Error{Kind: InvalidState}
	ErrStreamClosed     = &Error{Kind: StreamClosed}
	ErrUnderflow        = &Error{Kind: Underflow}
	ErrOverflow         = &Error{Kind: Overflow}
)

// NewError builds an *Error. Server implementations use it to report
// classified failures.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// classify turns any server error into an *Error bound to the stream.
// Errors the server did not classify get the fallback kind.
func classify(err error, op, stream string, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Op == "" {
			out.Op = op
		}
		out.Stream = stream
		return &out
	}
	return &Error{Kind: fallback, Op: op, Stream: stream, Err: err}
}
