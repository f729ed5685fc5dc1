package simple

import (
	"testing"
	"time"
)

func TestParseSampleFormat(t *testing.T) {
	tests := []struct {
		in   string
		want SampleFormat
	}{
		{"s16le", S16LE},
		{"S16BE", S16BE},
		{" float32le ", Float32LE},
		{"s16ne", S16NE},
		{"float32", Float32NE},
		{"s24-32le", S24_32LE},
		{"s24_32be", S24_32BE},
		{"u8", U8},
		{"ulaw", ULaw},
	}
	for _, tt := range tests {
		got, err := ParseSampleFormat(tt.in)
		if err != nil {
			t.Errorf("ParseSampleFormat(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSampleFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	_, err := ParseSampleFormat("mp3")
	if KindOf(err) != InvalidSpec {
		t.Errorf("expected InvalidSpec for an unknown name, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"playback": Playback, "record": Capture, "Capture": Capture} {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("upload"); KindOf(err) != InvalidSpec {
		t.Errorf("expected InvalidSpec for upload, got %v", err)
	}
}

func TestSampleSpecSizes(t *testing.T) {
	tests := []struct {
		spec      SampleSpec
		frame     int
		perSecond int
	}{
		{SampleSpec{S16LE, 44100, 2}, 4, 176400},
		{SampleSpec{U8, 8000, 1}, 1, 8000},
		{SampleSpec{Float32BE, 48000, 6}, 24, 1152000},
		{SampleSpec{S24LE, 96000, 2}, 6, 576000},
	}
	for _, tt := range tests {
		if err := tt.spec.Validate(); err != nil {
			t.Errorf("%s: %v", tt.spec, err)
		}
		if got := tt.spec.FrameSize(); got != tt.frame {
			t.Errorf("%s: frame size %d, want %d", tt.spec, got, tt.frame)
		}
		if got := tt.spec.BytesPerSecond(); got != tt.perSecond {
			t.Errorf("%s: %d bytes/s, want %d", tt.spec, got, tt.perSecond)
		}
	}
}

func TestDurationConversions(t *testing.T) {
	spec := SampleSpec{S16LE, 44100, 2}

	if got := spec.DurationToBytes(time.Second); got != 176400 {
		t.Errorf("DurationToBytes(1s) = %d", got)
	}
	if got := spec.DurationToBytes(250 * time.Millisecond); got != 44100 {
		t.Errorf("DurationToBytes(250ms) = %d", got)
	}
	if got := spec.BytesToDuration(176400); got != time.Second {
		t.Errorf("BytesToDuration(176400) = %v", got)
	}
	if got := (SampleSpec{}).BytesToDuration(100); got != 0 {
		t.Errorf("expected 0 for an empty spec, got %v", got)
	}

	info := LatencyInfo{BufferedFrames: 22050}
	if got := info.Latency(44100); got != 500*time.Millisecond {
		t.Errorf("Latency = %v", got)
	}
}

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec()
	if err := spec.Validate(); err != nil {
		t.Fatal(err)
	}
	if spec.Format.SampleSize() != 2 || spec.Channels != 1 || spec.Rate != 44100 {
		t.Errorf("unexpected default spec %s", spec)
	}
}
