package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer/sqlstore"
)

func newSchemaCmd(flags *rootFlags) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print (or apply) the request and error table DDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apply {
				a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer a.Close()

				if err := sqlstore.ApplySchema(cmd.Context(), a.db, a.storeOptions()...); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")

				return nil
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			dialect, err := cfg.Database.Dialect()
			if err != nil {
				return err
			}
			stmts, err := sqlstore.Schema(
				sqlstore.WithDialect(dialect),
				sqlstore.WithErrorTable(cfg.Database.ErrorTable),
				sqlstore.WithRequestTable(cfg.Database.RequestTable),
			)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(stmt)+";")
				fmt.Fprintln(cmd.OutOrStdout())
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "execute the DDL against the configured database")

	return cmd
}
