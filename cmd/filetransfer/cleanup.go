package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer/sqlstore"
)

func newCleanupCmd(flags *rootFlags) *cobra.Command {
	var (
		retention  time.Duration
		checkEvery time.Duration
		limit      int
		lockName   string
		once       bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old error records",
		Long: "Deletes error records older than the retention period. Runs periodically " +
			"unless --once is given; only one process cleans at a time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := sqlstore.CleanupMaintainerConfig{
				Retention:  a.cfg.Cleanup.Retention,
				CheckEvery: a.cfg.Cleanup.Interval,
				Limit:      a.cfg.Cleanup.Limit,
				LockName:   lockName,
				Logger:     a.logger,
			}
			if cmd.Flags().Changed("retention") {
				cfg.Retention = retention
			}
			if cmd.Flags().Changed("check-every") {
				cfg.CheckEvery = checkEvery
			}
			if cmd.Flags().Changed("limit") {
				cfg.Limit = limit
			}
			maintainer, err := sqlstore.NewCleanupMaintainer(a.db, a.errors, cfg)
			if err != nil {
				return fmt.Errorf("init maintainer: %w", err)
			}

			if once {
				deleted, err := maintainer.Ensure(ctx)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d error record(s)\n", deleted)

				return nil
			}

			if err := maintainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run maintainer: %w", err)
			}

			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "delete records older than this (overrides cleanup.retention)")
	cmd.Flags().DurationVar(&checkEvery, "check-every", time.Hour, "how often to run cleanup")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records deleted per run")
	cmd.Flags().StringVar(&lockName, "lock-name", "", "advisory lock name (optional)")
	cmd.Flags().BoolVar(&once, "once", false, "run once and exit")

	return cmd
}
