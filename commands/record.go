package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/simple"
	"github.com/d1nch8g/pasimple/sound"
)

var recordDuration time.Duration

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record to a wav or raw PCM file",
	Long: `Record from the default or selected source until Ctrl-C or --duration.

Files ending in .wav get a WAV header, anything else is raw PCM.

Example:
  pasimple record take.wav --duration 10s --format s16le --rate 48000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		stream, err := simple.OpenCapture(ctx, newServer(), cfg.StreamName, cfg.Spec, cfg.StreamOptions()...)
		if err != nil {
			return err
		}

		var limit int64
		if recordDuration > 0 {
			limit = cfg.Spec.DurationToBytes(recordDuration)
		}
		fmt.Fprintf(os.Stderr, "Recording %s to %s. Press Ctrl-C to stop.\n", cfg.Spec, args[0])

		ext := strings.ToLower(filepath.Ext(args[0]))
		n, err := record(ctx, sound.NewStreamRecorder(stream), f, cfg.Spec, ext == ".wav" || ext == ".wave", limit)
		fmt.Fprintf(os.Stderr, "Recorded %v (%d bytes)\n", cfg.Spec.BytesToDuration(n), n)
		if err != nil {
			return err
		}
		return f.Close()
	},
}

// record copies up to limit bytes from rec into f, framed as WAV when wav is
// set. Cancelling ctx ends the recording without an error.
func record(ctx context.Context, rec sound.Recorder, f io.WriteSeeker, spec simple.SampleSpec, wav bool, limit int64) (int64, error) {
	var w io.Writer = f
	var ww *sound.WAVWriter
	if wav {
		var err error
		if ww, err = sound.NewWAVWriter(f, spec); err != nil {
			return 0, err
		}
		w = ww
	}

	n, err := rec.Record(ctx, w, limit)
	if err != nil && ctx.Err() == nil {
		return n, err
	}
	if ww != nil {
		if err := ww.Close(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop after this long (default until Ctrl-C)")
}
