package simple

import "context"

// ConnectRequest carries everything a server needs to open one stream.
type ConnectRequest struct {
	AppName    string
	StreamName string
	Device     string // sink or source name, empty for the default
	Direction  Direction
	Spec       SampleSpec
	Buffer     BufferAttr
}

// Server is the audio server a stream connects to.
//
// Implementations should report failures as *Error values built with
// NewError; anything else is classified by the operation that saw it.
type Server interface {
	Connect(ctx context.Context, req ConnectRequest) (Conn, error)
}

// Conn is one server side stream. Write, Read and Drain block. Close must be
// safe to call while another goroutine is blocked in one of them and must
// make that call return.
type Conn interface {
	// Write may accept a prefix of p; the caller retries the rest.
	Write(p []byte) (int, error)
	// Read fills p with at least one whole frame.
	Read(p []byte) (int, error)
	Drain() error
	Flush() error
	// Latency must not block on in-flight I/O.
	Latency() (LatencyInfo, error)
	Close() error
}
