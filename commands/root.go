package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/audio"
	"github.com/d1nch8g/pasimple/config"
	"github.com/d1nch8g/pasimple/loopback"
	"github.com/d1nch8g/pasimple/simple"
)

// LoopbackServer selects the in-process null sink instead of a real device.
const LoopbackServer = "loopback"

var (
	// Global flags
	envFile    string
	serverAddr string
	device     string
	streamName string
	appName    string
	format     string
	rate       int
	channels   int

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pasimple",
	Short: "Play and record audio through blocking streams",
	Long: `pasimple - play, record, speak and transcribe through simple audio streams.

Settings come from the environment and an optional .env file:
  PULSE_SERVER, AUDIO_DEVICE, APP_NAME, STREAM_NAME,
  SAMPLE_FORMAT, SAMPLE_RATE, CHANNELS, FRAMES_PER_BUFFER, LATENCY_MS,
  IAM_TOKEN, API_KEY, FOLDER_ID, LANGUAGE
Flags override them.

Use --server loopback to play into an in-process null sink.

Examples:
  pasimple play song.mp3
  pasimple record take.wav --duration 5s --rate 48000 --channels 2
  pasimple say "hello there"
  pasimple transcribe --duration 30s`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env", "", "env file to load (default ./.env when present)")
	flags.StringVar(&serverAddr, "server", "", "audio server address, or \"loopback\"")
	flags.StringVarP(&device, "device", "d", "", "sink or source name")
	flags.StringVarP(&streamName, "name", "n", "", "stream name")
	flags.StringVar(&appName, "app", "", "application name")
	flags.StringVarP(&format, "format", "f", "", "sample format (u8, s16le, s16ne, float32le, s32le, s24le...)")
	flags.IntVarP(&rate, "rate", "r", 0, "sample rate in Hz")
	flags.IntVarP(&channels, "channels", "c", 0, "channel count")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(devicesCmd)
}

func loadConfig(cmd *cobra.Command) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	c, err := config.LoadConfig(files...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		c.Server = serverAddr
	}
	if flags.Changed("device") {
		c.Device = device
	}
	if flags.Changed("name") {
		c.StreamName = streamName
	}
	if flags.Changed("app") {
		c.AppName = appName
	}
	if flags.Changed("format") {
		if c.Spec.Format, err = simple.ParseSampleFormat(format); err != nil {
			return err
		}
	}
	if flags.Changed("rate") {
		c.Spec.Rate = rate
	}
	if flags.Changed("channels") {
		c.Spec.Channels = channels
	}

	cfg = c
	return nil
}

// newServer returns the audio server selected by the configuration.
func newServer() simple.Server {
	if cfg.Server == LoopbackServer {
		return loopback.NewServer()
	}
	return audio.NewServer(cfg.AudioConfig())
}
