package audio

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/d1nch8g/pasimple/simple"
)

// Config holds the settings of the PortAudio backed server.
type Config struct {
	// Server is a PulseAudio server address such as "unix:/run/user/1000/pulse/native".
	// It is exported as PULSE_SERVER for the host backend and probed on connect.
	Server          string
	FramesPerBuffer int
	// Latency is the suggested device latency; zero uses the device's high latency default.
	Latency     time.Duration
	DialTimeout time.Duration
}

func GetDefaultConfig() Config {
	return Config{
		FramesPerBuffer: 1024,
		DialTimeout:     2 * time.Second,
	}
}

// Device describes an audio device available to streams.
type Device struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Directions reports which stream directions the device can serve.
func (d Device) Directions() []simple.Direction {
	var dirs []simple.Direction
	if d.MaxOutputChannels > 0 {
		dirs = append(dirs, simple.Playback)
	}
	if d.MaxInputChannels > 0 {
		dirs = append(dirs, simple.Capture)
	}
	return dirs
}

// serverAddress splits one PulseAudio server string into a dialable
// network and address.
func serverAddress(s string) (network, address string, err error) {
	s = strings.TrimSpace(s)
	// A "{machine-id}" prefix restricts the entry to one host.
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", "", fmt.Errorf("malformed server address %q", s)
		}
		s = s[end+1:]
	}

	switch {
	case s == "":
		return "", "", fmt.Errorf("empty server address")
	case strings.HasPrefix(s, "unix:"):
		return "unix", strings.TrimPrefix(s, "unix:"), nil
	case strings.HasPrefix(s, "/"):
		return "unix", s, nil
	case strings.HasPrefix(s, "tcp6:"):
		return "tcp6", withDefaultPort(strings.TrimPrefix(s, "tcp6:")), nil
	case strings.HasPrefix(s, "tcp4:"):
		return "tcp4", withDefaultPort(strings.TrimPrefix(s, "tcp4:")), nil
	case strings.HasPrefix(s, "tcp:"):
		return "tcp", withDefaultPort(strings.TrimPrefix(s, "tcp:")), nil
	}
	return "tcp", withDefaultPort(s), nil
}

const defaultPort = "4713"

func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), defaultPort)
}

// probe checks that at least one of the configured server addresses accepts
// connections.
func probe(ctx context.Context, servers string, timeout time.Duration) error {
	entries := strings.Fields(servers)
	if len(entries) == 0 {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var lastErr error
	var d net.Dialer
	for _, entry := range entries {
		network, address, err := serverAddress(entry)
		if err != nil {
			lastErr = err
			continue
		}
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("audio server %q unreachable: %w", servers, lastErr)
}
