package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/simple"
	"github.com/d1nch8g/pasimple/sound"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play an mp3, wav or raw PCM file",
	Long: `Play an audio file and wait until it was heard.

MP3 and WAV files carry their own sample spec. Any other file is read as raw
PCM in the configured format, rate and channel count. With --output-rate
16 bit audio is resampled before it reaches the stream.

Example:
  pasimple play take.raw --format s16le --rate 44100 --channels 2
  pasimple play voice.wav --output-rate 48000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := sound.OpenFile(args[0], cfg.Spec)
		if err != nil {
			return err
		}
		defer a.Close()

		if outputRate > 0 {
			if a, err = sound.Resample(a, outputRate); err != nil {
				return err
			}
		}

		return play(ctx, cfg.StreamName, a)
	},
}

var outputRate int

func init() {
	playCmd.Flags().IntVar(&outputRate, "output-rate", 0, "resample to this rate before playing")
}

// play opens a playback stream in the audio's spec and plays it to the end.
func play(ctx context.Context, name string, a *sound.Audio) error {
	stream, err := simple.OpenPlayback(ctx, newServer(), name, a.Spec, cfg.StreamOptions()...)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Playing %s as %q (%s)\n", a.Spec, name, stream.ID())
	if err := sound.NewStreamPlayer(stream).Play(ctx, a); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Stopped.")
			return nil
		}
		return err
	}
	return nil
}
