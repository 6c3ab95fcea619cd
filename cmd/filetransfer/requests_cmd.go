package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRequestsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect and adjust transfer requests",
	}
	cmd.AddCommand(
		newRequestsShowCmd(flags),
		newRequestsPendingCmd(flags),
		newRequestsRescheduleCmd(flags),
		newRequestsCancelCmd(flags),
	)

	return cmd
}

func parseRequestID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}

	return id, nil
}

func newRequestsShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRequestID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			req, ok, err := a.requests.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("request %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s -> %s\t%s\tdue %s\n",
				req.ID, req.FileKey, req.SourceService, req.TargetService, req.Status,
				req.ExecutionTime.UTC().Format(time.RFC3339))

			return nil
		},
	}
}

func newRequestsPendingCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Print the number of pending requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.requests.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)

			return nil
		},
	}
}

func newRequestsRescheduleCmd(flags *rootFlags) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move the due time of a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRequestID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return a.requests.Reschedule(cmd.Context(), id, time.Now().Add(delay))
		},
	}
	cmd.Flags().DurationVar(&delay, "in", time.Hour, "new due time relative to now")

	return cmd
}

func newRequestsCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Withdraw a request so it is never selected again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRequestID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return a.requests.Cancel(cmd.Context(), id)
		},
	}
}
