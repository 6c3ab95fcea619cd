package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer"
)

func newOnceCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single transfer cycle and print its run-log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			daemon, err := a.newDaemon(cmd.Context(), nil, nil)
			if err != nil {
				return err
			}
			summary, err := daemon.Tick(cmd.Context())
			printSummary(cmd.OutOrStdout(), summary, daemon.RunLog().Last())

			return err
		},
	}
}

func printSummary(w io.Writer, summary filetransfer.CycleSummary, last filetransfer.LastRun) {
	if summary.Skipped {
		fmt.Fprintln(w, "cycle skipped: lease held by another process")
		return
	}
	fmt.Fprint(w, last.Text())
	fmt.Fprintf(w, "selected=%d succeeded=%d failed=%d record_errors=%d\n",
		summary.Selected, summary.Succeeded, summary.Failed, summary.RecordErrors)
}
