package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/d1nch8g/pasimple/audio"
	"github.com/d1nch8g/pasimple/simple"
)

type Config struct {
	// Audio server and stream
	Server     string
	AppName    string
	StreamName string
	Device     string

	Spec            simple.SampleSpec
	FramesPerBuffer int
	Latency         time.Duration

	// Speech services
	IamToken string
	APIKey   string
	FolderID string
	Language string
}

// LoadConfig reads the environment after loading the given .env files.
// Without files it loads ./.env when it exists.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	def := simple.DefaultSpec()
	cfg := &Config{
		Server:     os.Getenv("PULSE_SERVER"),
		AppName:    getenv("APP_NAME", simple.DefaultAppName),
		StreamName: getenv("STREAM_NAME", "pasimple"),
		Device:     os.Getenv("AUDIO_DEVICE"),
		IamToken:   os.Getenv("IAM_TOKEN"),
		APIKey:     os.Getenv("API_KEY"),
		FolderID:   os.Getenv("FOLDER_ID"),
		Language:   getenv("LANGUAGE", "en-US"),
		Spec:       def,
	}

	var err error
	if v := os.Getenv("SAMPLE_FORMAT"); v != "" {
		if cfg.Spec.Format, err = simple.ParseSampleFormat(v); err != nil {
			return nil, fmt.Errorf("SAMPLE_FORMAT: %w", err)
		}
	}
	if cfg.Spec.Rate, err = getint("SAMPLE_RATE", def.Rate); err != nil {
		return nil, err
	}
	if cfg.Spec.Channels, err = getint("CHANNELS", def.Channels); err != nil {
		return nil, err
	}
	if cfg.FramesPerBuffer, err = getint("FRAMES_PER_BUFFER", audio.GetDefaultConfig().FramesPerBuffer); err != nil {
		return nil, err
	}
	ms, err := getint("LATENCY_MS", 0)
	if err != nil {
		return nil, err
	}
	cfg.Latency = time.Duration(ms) * time.Millisecond

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// AudioConfig is the PortAudio server configuration.
func (c *Config) AudioConfig() audio.Config {
	ac := audio.GetDefaultConfig()
	ac.Server = c.Server
	if c.FramesPerBuffer > 0 {
		ac.FramesPerBuffer = c.FramesPerBuffer
	}
	ac.Latency = c.Latency
	return ac
}

// StreamOptions are the options every stream opened by the CLI uses.
func (c *Config) StreamOptions() []simple.Option {
	return []simple.Option{
		simple.WithAppName(c.AppName),
		simple.WithDevice(c.Device),
	}
}
