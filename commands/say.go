package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/sound"
	"github.com/d1nch8g/pasimple/tts"
)

var (
	sayVoice string
	saySpeed float64
	sayMP3   bool
)

var sayCmd = &cobra.Command{
	Use:   "say <text...>",
	Short: "Speak text with Yandex SpeechKit",
	Long: `Synthesize text with Yandex SpeechKit and play it while it streams in.

Requires API_KEY (or IAM_TOKEN) and FOLDER_ID.

Example:
  pasimple say --voice alena "The build is green"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (cfg.APIKey == "" && cfg.IamToken == "") || cfg.FolderID == "" {
			return fmt.Errorf("API_KEY or IAM_TOKEN, and FOLDER_ID must be set")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		client, err := tts.NewYandexTTSClient(tts.YandexConfig{
			ApiKey:   cfg.APIKey,
			IamToken: cfg.IamToken,
			FolderID: cfg.FolderID,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		opts := tts.GetDefaultSynthesisOptions()
		opts.Voice = sayVoice
		opts.Speed = saySpeed
		if sayMP3 {
			opts.Container = tts.ContainerMP3
		}

		chunks := make(chan []byte, 16)
		synthErr := make(chan error, 1)
		go func() {
			synthErr <- client.SynthesizeToStreamWithContext(ctx, strings.Join(args, " "), opts, chunks)
		}()

		r := tts.NewChunkReader(ctx, chunks)
		var a *sound.Audio
		if sayMP3 {
			a, err = sound.DecodeMP3(r)
		} else {
			a, err = sound.DecodeWAV(r)
		}
		if err != nil {
			cancel()
			if serr := <-synthErr; serr != nil && !errors.Is(serr, context.Canceled) {
				return serr
			}
			return fmt.Errorf("failed to decode synthesized audio: %w", err)
		}

		if err := play(ctx, cfg.StreamName, a); err != nil {
			return err
		}
		if err := <-synthErr; err != nil && ctx.Err() == nil {
			log.Printf("synthesis ended with an error: %v", err)
		}
		return nil
	},
}

func init() {
	sayCmd.Flags().StringVar(&sayVoice, "voice", "marina", "voice name")
	sayCmd.Flags().Float64Var(&saySpeed, "speed", 1.0, "speech speed")
	sayCmd.Flags().BoolVar(&sayMP3, "mp3", false, "stream mp3 instead of wav")
}
