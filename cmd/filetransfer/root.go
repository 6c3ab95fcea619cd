package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/velmie/filetransfer/internal/config"
)

type rootFlags struct {
	configPath string
	dbDriver   string
	dbDSN      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "filetransfer",
		Short:         "Transfer files between file services in scheduled batches",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to the YAML config file")
	root.PersistentFlags().StringVar(&flags.dbDriver, "db-driver", "", "database driver (mysql, postgres, sqlite); overrides the config")
	root.PersistentFlags().StringVar(&flags.dbDSN, "db-dsn", "", "database DSN; overrides the config")

	root.AddCommand(
		newRunCmd(flags),
		newOnceCmd(flags),
		newEnqueueCmd(flags),
		newRequestsCmd(flags),
		newErrorsCmd(flags),
		newCleanupCmd(flags),
		newSchemaCmd(flags),
	)

	return root
}

// lookup layers command line overrides over the process environment.
func (f *rootFlags) lookup(key string) (string, bool) {
	switch {
	case key == config.EnvPrefix+"DB_DRIVER" && f.dbDriver != "":
		return f.dbDriver, true
	case key == config.EnvPrefix+"DB_DSN" && f.dbDSN != "":
		return f.dbDSN, true
	}

	return os.LookupEnv(key)
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.LoadWithEnv(f.configPath, f.lookup)
}
