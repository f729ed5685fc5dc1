package simple

// DefaultAppName is reported to the server when WithAppName is not used.
const DefaultAppName = "pasimple"

type options struct {
	appName string
	device  string
	buffer  BufferAttr
}

func defaultOptions() options {
	return options{appName: DefaultAppName}
}

// Option configures Open.
type Option func(*options)

// WithAppName sets the application name shown by the audio server.
func WithAppName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.appName = name
		}
	}
}

// WithDevice selects a sink (playback) or source (capture) by name.
func WithDevice(device string) Option {
	return func(o *options) {
		o.device = device
	}
}

// WithBufferAttr overrides the server's buffering defaults.
func WithBufferAttr(attr BufferAttr) Option {
	return func(o *options) {
		o.buffer = attr
	}
}
