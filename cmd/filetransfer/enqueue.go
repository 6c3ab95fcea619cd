package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer"
)

func newEnqueueCmd(flags *rootFlags) *cobra.Command {
	var (
		from  string
		to    string
		at    string
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "enqueue <file-key>...",
		Short: "Create pending transfer requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			due := time.Now().Add(delay)
			if at != "" {
				if due, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			for _, key := range args {
				id, err := a.requests.Enqueue(cmd.Context(), a.db, filetransfer.Request{
					FileKey:       key,
					SourceService: from,
					TargetService: to,
					ExecutionTime: due,
				})
				if err != nil {
					return fmt.Errorf("enqueue %s: %w", key, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, key)
			}

			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source service name")
	cmd.Flags().StringVar(&to, "to", "", "target service name")
	cmd.Flags().StringVar(&at, "at", "", "due time (RFC 3339); defaults to now")
	cmd.Flags().DurationVar(&delay, "delay", 0, "due time relative to now")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
