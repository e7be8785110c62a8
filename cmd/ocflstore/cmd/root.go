package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/muesli/coral"
	"github.com/srerickson/ocflstore/logger"
)

const defaultCfg = `.ocflstore.yaml`

var (
	rootFlags = struct {
		cfgFile  string
		repoName string
		driver   string
		path     string
		bucket   string
	}{}

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &coral.Command{
		Use:          "ocflstore",
		Short:        "A command line tool for OCFL storage roots",
		Long:         "A command line tool for working with OCFL storage roots and versioned objects.",
		SilenceUsage: true,
	}

	log = logger.DefaultLogger()
)

// Execute runs the root command, exiting with status 1 on error. Child
// commands and flags are registered by the package's init functions. This is
// called by main.main().
func Execute() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	coral.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&rootFlags.cfgFile, "config", "c", "", "config file (default is $HOME/.ocflstore.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.repoName, "repo", "r", "", "name of repo in configuration to use")
	rootCmd.PersistentFlags().StringVar(&rootFlags.driver, "driver", "", "storage driver: file, s3, or azure")
	rootCmd.PersistentFlags().StringVar(&rootFlags.path, "path", "", "path of the storage root in the driver's namespace")
	rootCmd.PersistentFlags().StringVar(&rootFlags.bucket, "bucket", "", "bucket or container for cloud drivers")
}

func initConfig() {
	if rootFlags.cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Error(err, "could not get home dir")
		}
		rootFlags.cfgFile = filepath.Join(home, defaultCfg)
	}
}
