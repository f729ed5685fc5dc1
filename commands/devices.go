package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/d1nch8g/pasimple/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devs, err := audio.Devices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tHOST API\tIN\tOUT\tRATE\tDEFAULT")
		for _, d := range devs {
			def := ""
			switch {
			case d.IsDefaultInput && d.IsDefaultOutput:
				def = "input, output"
			case d.IsDefaultInput:
				def = "input"
			case d.IsDefaultOutput:
				def = "output"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\t%s\n",
				d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
		}
		return w.Flush()
	},
}
