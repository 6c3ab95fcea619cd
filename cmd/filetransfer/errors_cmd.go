package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer"
)

func newErrorsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect and correct the error ledger",
	}
	cmd.AddCommand(newErrorsListCmd(flags), newErrorsRefsCmd(flags), newErrorsShowCmd(flags), newErrorsDeleteCmd(flags))

	return cmd
}

func newErrorsListCmd(flags *rootFlags) *cobra.Command {
	var requestID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List error records, optionally for one request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var records []filetransfer.ErrorRecord
			if cmd.Flags().Changed("request") {
				records, err = a.ledger.ListByRequestID(cmd.Context(), requestID)
			} else {
				records, err = a.ledger.ListAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No error records found.")
				return nil
			}
			for _, rec := range records {
				printRecordLine(cmd.OutOrStdout(), rec)
			}

			return nil
		},
	}
	cmd.Flags().Int64Var(&requestID, "request", 0, "only records of this request id")

	return cmd
}

func newErrorsRefsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "List error record ids with their request and message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			refs, err := a.ledger.ListReferences(cmd.Context())
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\n", ref.ID, ref.RequestID, oneLine(ref.Message))
			}

			return nil
		},
	}
}

func newErrorsShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one error record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			rec, ok, err := a.ledger.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("error record %d not found", id)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(rec)
		},
	}
}

func newErrorsDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete error records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", arg)
				}
				ids = append(ids, id)
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range ids {
				if err := a.ledger.Delete(cmd.Context(), id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", len(ids))

			return nil
		},
	}
}

func printRecordLine(w io.Writer, rec filetransfer.ErrorRecord) {
	fmt.Fprintf(w, "%d\trequest=%d\tcode=%d\t%s\t%s\n",
		rec.ID, rec.RequestID, rec.Code, rec.ExecutionTime.UTC().Format(time.RFC3339), oneLine(rec.Message))
}

func oneLine(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > 80 {
		msg = msg[:77] + "..."
	}

	return msg
}
