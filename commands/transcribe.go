package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/simple"
	"github.com/d1nch8g/pasimple/sound"
	"github.com/d1nch8g/pasimple/stt"
)

var transcribeDuration time.Duration

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe speech from the microphone with Yandex SpeechKit",
	Long: `Capture 16 bit mono audio and print recognized phrases as they arrive.

Requires IAM_TOKEN and FOLDER_ID. LANGUAGE selects the recognition language.

Example:
  pasimple transcribe --duration 30s --rate 16000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IamToken == "" || cfg.FolderID == "" {
			return fmt.Errorf("IAM_TOKEN and FOLDER_ID must be set")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		client, err := stt.NewYandexSTTClient(stt.YandexConfig{
			IamToken: cfg.IamToken,
			FolderID: cfg.FolderID,
			Language: cfg.Language,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		spec := stt.CaptureSpec(cfg.Spec.Rate)
		stream, err := simple.OpenCapture(ctx, newServer(), cfg.StreamName, spec, cfg.StreamOptions()...)
		if err != nil {
			return err
		}

		// Capture stops on Ctrl-C or after the duration; recognition then
		// flushes its final results.
		captureCtx, cancel := ctx, context.CancelFunc(func() {})
		if transcribeDuration > 0 {
			captureCtx, cancel = context.WithTimeout(ctx, transcribeDuration)
		}
		defer cancel()

		audioData := make(chan []byte, 10)
		results := make(chan string, 10)
		go func() {
			defer close(audioData)
			if err := sound.NewStreamRecorder(stream).StartCapture(captureCtx, audioData); err != nil && captureCtx.Err() == nil {
				log.Printf("Audio capture error: %v", err)
			}
		}()

		recognized := make(chan error, 1)
		go func() {
			recognized <- client.StreamRecognize(context.WithoutCancel(ctx), audioData, results, spec)
		}()

		fmt.Fprintf(os.Stderr, "Listening (%s, %s). Press Ctrl-C to stop.\n", cfg.Language, spec)
		for text := range results {
			fmt.Println(text)
		}
		return <-recognized
	},
}

func init() {
	transcribeCmd.Flags().DurationVar(&transcribeDuration, "duration", 0, "stop listening after this long")
}
