// Command pasimple plays, records, speaks and transcribes audio through
// blocking simple streams.
//
// Usage:
//
//	pasimple [flags] <command> [args]
//
// Commands:
//
//	play        - play an mp3, wav or raw PCM file
//	record      - record to a wav or raw PCM file
//	say         - speak text with Yandex SpeechKit
//	transcribe  - print speech recognized from the microphone
//	devices     - list audio devices
package main

import (
	"fmt"
	"os"

	"github.com/d1nch8g/pasimple/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
