package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/aspectratio"
)

func newRatiosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ratios",
		Short: "List the supported aspect ratios and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RATIO\tWIDTH\tHEIGHT")
			for _, key := range aspectratio.Keys() {
				size, _ := aspectratio.SizeOf(key)
				fmt.Fprintf(tw, "%s\t%d\t%d\n", key, size.Width, size.Height)
			}
			return tw.Flush()
		},
	}
}
